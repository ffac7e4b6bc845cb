package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"verbapost/internal/client"
	"verbapost/internal/dto"
	"verbapost/internal/model"
	"verbapost/internal/repository"
)

// Dispatcher routes a reviewed order to its fulfillment path: direct mail
// for standard, the manual queue for heirloom, representative fan-out for
// civic. It fills order.Document with the user's downloadable copy.
type Dispatcher interface {
	Dispatch(ctx context.Context, order *model.Order) (*dto.DispatchSummary, error)
}

type dispatcherImpl struct {
	renderClient    client.RenderClient
	mailClient      client.MailClient
	civicClient     client.CivicClient
	fulfillmentRepo repository.FulfillmentRepository
	receiptRepo     repository.ReceiptRepository
	logger          *zap.Logger
}

func NewDispatcher(
	renderClient client.RenderClient,
	mailClient client.MailClient,
	civicClient client.CivicClient,
	fulfillmentRepo repository.FulfillmentRepository,
	receiptRepo repository.ReceiptRepository,
	logger *zap.Logger,
) Dispatcher {
	return &dispatcherImpl{
		renderClient:    renderClient,
		mailClient:      mailClient,
		civicClient:     civicClient,
		fulfillmentRepo: fulfillmentRepo,
		receiptRepo:     receiptRepo,
		logger:          logger,
	}
}

func (d *dispatcherImpl) Dispatch(ctx context.Context, order *model.Order) (*dto.DispatchSummary, error) {
	switch order.Tier {
	case model.TierStandard:
		return d.dispatchStandard(ctx, order)
	case model.TierHeirloom:
		return d.dispatchHeirloom(ctx, order)
	case model.TierCivic:
		return d.dispatchCivic(ctx, order)
	}
	return nil, model.Invalid("tier", "unknown tier")
}

func (d *dispatcherImpl) render(ctx context.Context, order *model.Order, recipient model.Address) ([]byte, error) {
	return d.renderClient.Render(ctx, &client.RenderRequest{
		Content:        order.Content,
		RecipientBlock: recipient.Block(),
		SenderBlock:    order.Sender.Block(),
		Heirloom:       order.Tier == model.TierHeirloom,
		Language:       order.Language,
		SignatureImage: order.SignatureImage,
	})
}

func (d *dispatcherImpl) dispatchStandard(ctx context.Context, order *model.Order) (*dto.DispatchSummary, error) {
	document, err := d.render(ctx, order, order.Recipient)
	if err != nil {
		return nil, fmt.Errorf("render letter: %w", err)
	}

	confirmationID, err := d.mailClient.Submit(ctx, document, order.Recipient, order.Sender)
	if err != nil {
		return nil, fmt.Errorf("submit letter: %w", err)
	}

	if rerr := d.receiptRepo.Create(ctx, &model.DispatchReceipt{
		OrderID:        order.ID,
		TargetName:     order.Recipient.Name,
		ConfirmationID: confirmationID,
	}); rerr != nil {
		d.logger.Error("failed to record dispatch receipt",
			zap.String("order_id", order.ID), zap.Error(rerr))
	}

	order.Document = document

	return &dto.DispatchSummary{
		OrderID: order.ID,
		Targets: []dto.TargetResult{{
			Name:           order.Recipient.Name,
			ConfirmationID: confirmationID,
		}},
	}, nil
}

// dispatchHeirloom never touches the mail provider: the letter goes to the
// manual fulfillment queue and the user still gets a downloadable copy.
func (d *dispatcherImpl) dispatchHeirloom(ctx context.Context, order *model.Order) (*dto.DispatchSummary, error) {
	document, err := d.render(ctx, order, order.Recipient)
	if err != nil {
		return nil, fmt.Errorf("render letter: %w", err)
	}

	if err := d.fulfillmentRepo.Enqueue(ctx, &model.FulfillmentItem{
		OrderID:       order.ID,
		RecipientName: order.Recipient.Name,
		Document:      document,
	}); err != nil {
		return nil, fmt.Errorf("enqueue fulfillment: %w", err)
	}

	order.Document = document

	d.logger.Info("order queued for manual fulfillment",
		zap.String("order_id", order.ID),
		zap.String("recipient", order.Recipient.Name))

	return &dto.DispatchSummary{
		OrderID: order.ID,
		Queued:  true,
		Targets: []dto.TargetResult{{
			Name: order.Recipient.Name,
		}},
	}, nil
}

// dispatchCivic fans out to every resolved representative. A per-target
// failure is reported but does not roll back earlier submissions; zero
// targets fails the whole dispatch.
func (d *dispatcherImpl) dispatchCivic(ctx context.Context, order *model.Order) (*dto.DispatchSummary, error) {
	targets, err := d.civicClient.Lookup(ctx, order.Sender)
	if err != nil {
		return nil, fmt.Errorf("representative lookup: %w", err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("dispatch civic order: %w", model.ErrLookupEmpty)
	}

	summary := &dto.DispatchSummary{OrderID: order.ID}

	var archive bytes.Buffer
	zw := zip.NewWriter(&archive)

	for _, target := range targets {
		result := dto.TargetResult{Name: target.Name, Title: target.Title}

		document, err := d.render(ctx, order, target.Address)
		if err != nil {
			result.Failed = true
			result.Error = err.Error()
			summary.Targets = append(summary.Targets, result)
			d.recordReceipt(ctx, order.ID, result)
			continue
		}

		filename := fmt.Sprintf("Letter_to_%s.pdf", strings.ReplaceAll(target.Name, " ", ""))
		f, zerr := zw.Create(filename)
		if zerr == nil {
			_, zerr = f.Write(document)
		}
		if zerr != nil {
			d.logger.Error("failed to add letter to bundle",
				zap.String("order_id", order.ID),
				zap.String("target", target.Name),
				zap.Error(zerr))
		}

		confirmationID, err := d.mailClient.Submit(ctx, document, target.Address, order.Sender)
		if err != nil {
			result.Failed = true
			result.Error = err.Error()
			d.logger.Warn("civic target submission failed",
				zap.String("order_id", order.ID),
				zap.String("target", target.Name),
				zap.Error(err))
		} else {
			result.ConfirmationID = confirmationID
		}

		summary.Targets = append(summary.Targets, result)
		d.recordReceipt(ctx, order.ID, result)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	order.Document = archive.Bytes()

	return summary, nil
}

func (d *dispatcherImpl) recordReceipt(ctx context.Context, orderID string, result dto.TargetResult) {
	if err := d.receiptRepo.Create(ctx, &model.DispatchReceipt{
		OrderID:        orderID,
		TargetName:     result.Name,
		ConfirmationID: result.ConfirmationID,
		Failed:         result.Failed,
		Error:          result.Error,
	}); err != nil {
		d.logger.Error("failed to record dispatch receipt",
			zap.String("order_id", orderID),
			zap.String("target", result.Name),
			zap.Error(err))
	}
}
