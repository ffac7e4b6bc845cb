package repository

import (
	"context"

	"gorm.io/gorm"

	"verbapost/internal/model"
)

type ReceiptRepository interface {
	Create(ctx context.Context, receipt *model.DispatchReceipt) error
	ListByOrder(ctx context.Context, orderID string) ([]*model.DispatchReceipt, error)
}

type receiptRepoImpl struct {
	db *gorm.DB
}

func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepoImpl{
		db: db,
	}
}

func (r *receiptRepoImpl) Create(ctx context.Context, receipt *model.DispatchReceipt) error {
	return r.db.WithContext(ctx).Create(receipt).Error
}

func (r *receiptRepoImpl) ListByOrder(ctx context.Context, orderID string) ([]*model.DispatchReceipt, error) {
	var receipts []*model.DispatchReceipt
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id").
		Find(&receipts).Error

	if err != nil {
		return nil, err
	}

	return receipts, nil
}
