package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"verbapost/internal/model"
)

// FulfillmentRepository is the heirloom manual queue: a durable list the
// operator drains by hand.
type FulfillmentRepository interface {
	Enqueue(ctx context.Context, item *model.FulfillmentItem) error
	Pending(ctx context.Context) ([]*model.FulfillmentItem, error)
	Get(ctx context.Context, id uint) (*model.FulfillmentItem, error)
	MarkSent(ctx context.Context, id uint) error
}

type fulfillmentRepoImpl struct {
	db *gorm.DB
}

func NewFulfillmentRepository(db *gorm.DB) FulfillmentRepository {
	return &fulfillmentRepoImpl{
		db: db,
	}
}

func (r *fulfillmentRepoImpl) Enqueue(ctx context.Context, item *model.FulfillmentItem) error {
	item.Status = model.FulfillmentPending
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *fulfillmentRepoImpl) Pending(ctx context.Context) ([]*model.FulfillmentItem, error) {
	var items []*model.FulfillmentItem
	err := r.db.WithContext(ctx).
		Where("status = ?", model.FulfillmentPending).
		Order("created_at").
		Find(&items).Error

	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *fulfillmentRepoImpl) Get(ctx context.Context, id uint) (*model.FulfillmentItem, error) {
	var item model.FulfillmentItem
	err := r.db.WithContext(ctx).First(&item, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrDraftNotFound
		}
		return nil, err
	}

	return &item, nil
}

func (r *fulfillmentRepoImpl) MarkSent(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&model.FulfillmentItem{}).
		Where("id = ? AND status = ?", id, model.FulfillmentPending).
		Updates(map[string]interface{}{
			"status":     model.FulfillmentSent,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrDraftNotFound
	}
	return nil
}
