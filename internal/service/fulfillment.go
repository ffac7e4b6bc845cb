package service

import (
	"context"

	"verbapost/internal/model"
	"verbapost/internal/repository"
)

// FulfillmentService backs the operator view of the heirloom queue.
type FulfillmentService interface {
	Pending(ctx context.Context) ([]*model.FulfillmentItem, error)
	Document(ctx context.Context, id uint) ([]byte, error)
	MarkSent(ctx context.Context, id uint) error
}

type fulfillmentServiceImpl struct {
	fulfillmentRepo repository.FulfillmentRepository
}

func NewFulfillmentService(
	fulfillmentRepo repository.FulfillmentRepository,
) FulfillmentService {
	return &fulfillmentServiceImpl{
		fulfillmentRepo: fulfillmentRepo,
	}
}

func (s *fulfillmentServiceImpl) Pending(ctx context.Context) ([]*model.FulfillmentItem, error) {
	return s.fulfillmentRepo.Pending(ctx)
}

func (s *fulfillmentServiceImpl) Document(ctx context.Context, id uint) ([]byte, error) {
	item, err := s.fulfillmentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return item.Document, nil
}

func (s *fulfillmentServiceImpl) MarkSent(ctx context.Context, id uint) error {
	return s.fulfillmentRepo.MarkSent(ctx, id)
}
