package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"verbapost/internal/model"
)

// DraftRepository is the durable draft store. It is the single source of
// truth across the off-site payment redirect; the processed-set methods
// serialize concurrent reconciliation attempts for the same session.
type DraftRepository interface {
	Save(ctx context.Context, order *model.Order) error
	Load(ctx context.Context, id string) (*model.Order, error)
	Update(ctx context.Context, order *model.Order) error
	Delete(ctx context.Context, id string) error

	// MarkProcessed inserts the session into the processed-set. It returns
	// false when another request already inserted it (compare-and-set lost).
	MarkProcessed(ctx context.Context, sessionID, orderID string) (bool, error)
	IsProcessed(ctx context.Context, sessionID string) (bool, error)
}

type draftRepoImpl struct {
	db *gorm.DB
}

func NewDraftRepository(db *gorm.DB) DraftRepository {
	return &draftRepoImpl{
		db: db,
	}
}

func (r *draftRepoImpl) Save(ctx context.Context, order *model.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *draftRepoImpl) Load(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load draft %s: %w", id, model.ErrDraftNotFound)
		}
		return nil, err
	}

	return &order, nil
}

func (r *draftRepoImpl) Update(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *draftRepoImpl) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.Order{}).Error
}

func (r *draftRepoImpl) MarkProcessed(ctx context.Context, sessionID, orderID string) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoNothing: true,
	}).Create(&model.ProcessedSession{
		SessionID:   sessionID,
		OrderID:     orderID,
		ProcessedAt: time.Now(),
	})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *draftRepoImpl) IsProcessed(ctx context.Context, sessionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ProcessedSession{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error

	return count > 0, err
}
