package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"verbapost/internal/client"
	"verbapost/internal/dto"
	"verbapost/internal/model"
	"verbapost/internal/pricing"
	"verbapost/internal/repository"
)

// ReconcileResult is the outcome of one payment-return reconciliation pass.
type ReconcileResult struct {
	Order            *model.Order
	Verified         bool
	AlreadyProcessed bool
}

// OrderService is the order lifecycle state machine. Transitions for one
// order are sequential; the draft store serializes concurrent reconciliation
// through the processed-set insert.
type OrderService interface {
	CreateDraft(ctx context.Context, req *dto.DraftRequest) (*model.Order, error)
	UpdateDraft(ctx context.Context, orderID string, req *dto.DraftRequest) (*model.Order, error)
	Get(ctx context.Context, orderID string) (*model.Order, error)

	BeginCheckout(ctx context.Context, orderID string) (*dto.CheckoutResponse, error)
	Reconcile(ctx context.Context, sessionID, orderID string) (*ReconcileResult, error)
	RecheckPayment(ctx context.Context, orderID string) (*ReconcileResult, error)

	SubmitRecording(ctx context.Context, orderID string, audio []byte) (*model.Order, error)
	AcceptOverage(ctx context.Context, orderID string) (*model.Order, error)

	UpdateContent(ctx context.Context, orderID, content string) (*model.Order, error)
	PolishContent(ctx context.Context, orderID string) (*model.Order, error)
	AttachSignature(ctx context.Context, orderID string, image []byte) (*model.Order, error)

	Approve(ctx context.Context, orderID string) (*dto.DispatchSummary, error)
	Cancel(ctx context.Context, orderID string) error
	Document(ctx context.Context, orderID string) ([]byte, string, error)
}

type orderServiceImpl struct {
	draftRepo         repository.DraftRepository
	checkoutClient    client.CheckoutClient
	speechClient      client.SpeechClient
	dispatcher        Dispatcher
	baseURL           string
	maxRecordingBytes int64
	logger            *zap.Logger
}

func NewOrderService(
	draftRepo repository.DraftRepository,
	checkoutClient client.CheckoutClient,
	speechClient client.SpeechClient,
	dispatcher Dispatcher,
	baseURL string,
	maxRecordingBytes int64,
	logger *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		draftRepo:         draftRepo,
		checkoutClient:    checkoutClient,
		speechClient:      speechClient,
		dispatcher:        dispatcher,
		baseURL:           baseURL,
		maxRecordingBytes: maxRecordingBytes,
		logger:            logger,
	}
}

func validateDraft(req *dto.DraftRequest) (model.Tier, int64, error) {
	tier := model.Tier(strings.ToUpper(strings.TrimSpace(req.Tier)))
	price, ok := pricing.Price(tier, false)
	if !ok {
		return "", 0, model.Invalid("tier", "must be one of STANDARD, HEIRLOOM, CIVIC")
	}

	if !req.Sender.Complete() {
		return "", 0, model.Invalid("sender", "all address fields are required")
	}
	// Civic resolves recipients from the sender address.
	if tier != model.TierCivic && !req.Recipient.Complete() {
		return "", 0, model.Invalid("recipient", "all address fields are required")
	}

	return tier, price, nil
}

func (s *orderServiceImpl) CreateDraft(ctx context.Context, req *dto.DraftRequest) (*model.Order, error) {
	tier, price, err := validateDraft(req)
	if err != nil {
		return nil, err
	}

	language := req.Language
	if language == "" {
		language = "English"
	}

	// The draft must be durable before the payment redirect: the in-memory
	// session does not survive it.
	order := &model.Order{
		Tier:        tier,
		Status:      model.StatusAwaitingPayment,
		AmountCents: price,
		Recipient:   req.Recipient,
		Sender:      req.Sender,
		Language:    language,
	}
	if err := s.draftRepo.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("persist draft: %w", err)
	}

	s.logger.Info("draft created",
		zap.String("order_id", order.ID),
		zap.String("tier", string(order.Tier)),
		zap.Int64("amount_cents", order.AmountCents))

	return order, nil
}

func (s *orderServiceImpl) UpdateDraft(ctx context.Context, orderID string, req *dto.DraftRequest) (*model.Order, error) {
	order, err := s.draftRepo.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.StatusAwaitingPayment || order.PaymentVerified {
		return nil, fmt.Errorf("update draft: %w", model.ErrInvalidTransition)
	}

	tier, price, err := validateDraft(req)
	if err != nil {
		return nil, err
	}

	order.Tier = tier
	order.AmountCents = price
	order.Recipient = req.Recipient
	order.Sender = req.Sender
	if req.Language != "" {
		order.Language = req.Language
	}
	// A pending session minted for a different (tier, price) must never
	// verify this order; drop it so the next checkout mints a fresh one.
	if order.SessionStale() {
		order.CheckoutSessionID = ""
		order.SessionRedirectURL = ""
		order.SessionAmountCents = 0
		order.SessionTier = ""
	}
	if err := s.draftRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("update draft: %w", err)
	}

	return order, nil
}

func (s *orderServiceImpl) Get(ctx context.Context, orderID string) (*model.Order, error) {
	return s.draftRepo.Load(ctx, orderID)
}

func (s *orderServiceImpl) BeginCheckout(ctx context.Context, orderID string) (*dto.CheckoutResponse, error) {
	order, err := s.draftRepo.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.StatusAwaitingPayment || order.PaymentVerified {
		return nil, fmt.Errorf("begin checkout: %w", model.ErrInvalidTransition)
	}

	// Reuse the pending session while the (tier, price) configuration is
	// unchanged; a changed configuration invalidates it.
	if !order.SessionStale() {
		return &dto.CheckoutResponse{
			OrderID:     order.ID,
			SessionID:   order.CheckoutSessionID,
			RedirectURL: order.SessionRedirectURL,
		}, nil
	}

	// Only the opaque order id rides in the return URL. State is re-derived
	// from the draft store on return, never from URL payload.
	returnURL := fmt.Sprintf("%s/api/orders/return?order_id=%s", s.baseURL, order.ID)
	description := fmt.Sprintf("VerbaPost %s", order.Tier.Label())

	resp, err := s.checkoutClient.CreateSession(ctx, description, order.AmountCents, returnURL, s.baseURL)
	if err != nil {
		// Recoverable: the order stays in AwaitingPayment.
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	order.CheckoutSessionID = resp.SessionID
	order.SessionRedirectURL = resp.RedirectURL
	order.SessionAmountCents = order.AmountCents
	order.SessionTier = order.Tier
	if err := s.draftRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("persist checkout session: %w", err)
	}

	s.logger.Info("checkout session created",
		zap.String("order_id", order.ID),
		zap.String("session_id", resp.SessionID))

	return &dto.CheckoutResponse{
		OrderID:     order.ID,
		SessionID:   resp.SessionID,
		RedirectURL: resp.RedirectURL,
	}, nil
}

// Reconcile implements the payment-return algorithm: no-op without a session
// id, no-op on a replayed session, otherwise verify with the provider and
// unlock recording. Ambiguous provider answers never unlock (fail closed).
func (s *orderServiceImpl) Reconcile(ctx context.Context, sessionID, orderID string) (*ReconcileResult, error) {
	if sessionID == "" {
		return &ReconcileResult{}, nil
	}

	processed, err := s.draftRepo.IsProcessed(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("check processed set: %w", err)
	}
	if processed {
		res := &ReconcileResult{Verified: true, AlreadyProcessed: true}
		if orderID != "" {
			if order, err := s.draftRepo.Load(ctx, orderID); err == nil {
				res.Order = order
			}
		}
		return res, nil
	}

	status, err := s.checkoutClient.CheckStatus(ctx, sessionID)
	if err != nil {
		// Ambiguous status is treated as not paid.
		s.logger.Warn("checkout status check failed",
			zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("checkout status unavailable: %w", model.ErrPaymentUnverified)
	}
	if status != client.SessionPaid {
		return nil, fmt.Errorf("session not paid: %w", model.ErrPaymentUnverified)
	}

	order, err := s.draftRepo.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CheckoutSessionID != sessionID || order.SessionStale() {
		// The session was minted for a different order, or for a (tier,
		// price) the order no longer has. Paying it never unlocks anything.
		return nil, fmt.Errorf("session does not match order: %w", model.ErrPaymentUnverified)
	}

	won, err := s.draftRepo.MarkProcessed(ctx, sessionID, order.ID)
	if err != nil {
		return nil, fmt.Errorf("mark session processed: %w", err)
	}
	if !won {
		// A concurrent return redirect got here first; it performed the
		// unlock, we perform nothing.
		order, err = s.draftRepo.Load(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return &ReconcileResult{Order: order, Verified: true, AlreadyProcessed: true}, nil
	}

	order.PaymentVerified = true
	order.Status = model.StatusRecording
	if err := s.draftRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("persist verified payment: %w", err)
	}

	s.logger.Info("payment verified, recording unlocked",
		zap.String("order_id", order.ID),
		zap.String("session_id", sessionID))

	return &ReconcileResult{Order: order, Verified: true}, nil
}

// RecheckPayment is the manual "I've paid, check again" path.
func (s *orderServiceImpl) RecheckPayment(ctx context.Context, orderID string) (*ReconcileResult, error) {
	order, err := s.draftRepo.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CheckoutSessionID == "" {
		return nil, fmt.Errorf("no checkout session: %w", model.ErrPaymentUnverified)
	}

	return s.Reconcile(ctx, order.CheckoutSessionID, order.ID)
}

func (s *orderServiceImpl) SubmitRecording(ctx context.Context, orderID string, audio []byte) (*model.Order, error) {
	order, err := s.draftRepo.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.StatusRecording || !order.PaymentVerified {
		return nil, fmt.Errorf("submit recording: %w", model.ErrInvalidTransition)
	}
	if len(audio) == 0 {
		return nil, model.Invalid("audio", "recording is empty")
	}

	order.Audio = audio

	if int64(len(audio)) > s.maxRecordingBytes && !order.OverageAccepted {
		// Hold the recording and offer the overage fee; the order stays in
		// Recording until the user accepts or re-records.
		order.OverageRequired = true
		if err := s.draftRepo.Update(ctx, order); err != nil {
			return nil, fmt.Errorf("persist oversized recording: %w", err)
		}
		return order, nil
	}

	order.OverageRequired = false
	return s.runTranscription(ctx, order)
}

// AcceptOverage recomputes the price with the flat overage fee and lets the
// held oversized recording proceed. No second checkout session is minted
// mid-flow; a pending unverified session is invalidated so the next checkout
// reflects the new price.
func (s *orderServiceImpl) AcceptOverage(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := s.draftRepo.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.OverageRequired || order.OverageAccepted {
		return nil, fmt.Errorf("accept overage: %w", model.ErrInvalidTransition)
	}

	order.OverageAccepted = true
	order.AmountCents, _ = pricing.Price(order.Tier, true)

	if !order.PaymentVerified && order.CheckoutSessionID != "" {
		order.CheckoutSessionID = ""
		order.SessionRedirectURL = ""
		order.SessionAmountCents = 0
		order.SessionTier = ""
	}

	if order.PaymentVerified && len(order.Audio) > 0 {
		order.OverageRequired = false
		return s.runTranscription(ctx, order)
	}

	if err := s.draftRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("persist overage: %w", err)
	}
	return order, nil
}

// runTranscription drives Recording → Transcribing → Reviewing. Any failure,
// including an empty transcript, routes back to Recording with a retry.
func (s *orderServiceImpl) runTranscription(ctx context.Context, order *model.Order) (*model.Order, error) {
	order.Status = model.StatusTranscribing
	if err := s.draftRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("persist transcribing state: %w", err)
	}

	text, err := s.speechClient.Transcribe(ctx, order.Audio)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		order.Status = model.StatusRecording
		if uerr := s.draftRepo.Update(ctx, order); uerr != nil {
			return nil, fmt.Errorf("persist recording state: %w", uerr)
		}
		if err != nil {
			return order, fmt.Errorf("%w: %v", model.ErrTranscriptionFailed, err)
		}
		return order, fmt.Errorf("%w: empty transcript", model.ErrTranscriptionFailed)
	}

	order.Content = text
	order.Status = model.StatusReviewing
	if err := s.draftRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("persist transcript: %w", err)
	}

	return order, nil
}

func (s *orderServiceImpl) UpdateContent(ctx context.Context, orderID, content string) (*model.Order, error) {
	order, err := s.draftRepo.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.StatusReviewing {
		return nil, fmt.Errorf("update content: %w", model.ErrInvalidTransition)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, model.Invalid("content", "letter text cannot be empty")
	}

	order.Content = content
	if err := s.draftRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("persist content: %w", err)
	}
	return order, nil
}

func (s *orderServiceImpl) PolishContent(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := s.draftRepo.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.StatusReviewing {
		return nil, fmt.Errorf("polish content: %w", model.ErrInvalidTransition)
	}

	polished, err := s.speechClient.Polish(ctx, order.Content)
	if err != nil {
		return nil, fmt.Errorf("polish content: %w", err)
	}
	polished = strings.TrimSpace(polished)
	if polished == "" {
		return order, nil
	}

	order.Content = polished
	if err := s.draftRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("persist polished content: %w", err)
	}
	return order, nil
}

func (s *orderServiceImpl) AttachSignature(ctx context.Context, orderID string, image []byte) (*model.Order, error) {
	order, err := s.draftRepo.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, model.Invalid("signature", "image is empty")
	}
	if len(order.SignatureImage) > 0 {
		return nil, model.Invalid("signature", "already captured")
	}
	if order.Status == model.StatusComplete || order.Status == model.StatusCancelled {
		return nil, fmt.Errorf("attach signature: %w", model.ErrInvalidTransition)
	}

	order.SignatureImage = image
	if err := s.draftRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("persist signature: %w", err)
	}
	return order, nil
}

func (s *orderServiceImpl) Approve(ctx context.Context, orderID string) (*dto.DispatchSummary, error) {
	order, err := s.draftRepo.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.StatusReviewing {
		return nil, fmt.Errorf("approve: %w", model.ErrInvalidTransition)
	}
	if strings.TrimSpace(order.Content) == "" {
		return nil, model.Invalid("content", "letter text cannot be empty")
	}

	order.Status = model.StatusDispatching
	if err := s.draftRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("persist dispatching state: %w", err)
	}

	summary, err := s.dispatcher.Dispatch(ctx, order)
	if err != nil {
		// Dispatch failed before anything irreversible happened (lookup
		// empty, render failure, standard mail failure). Back to review.
		order.Status = model.StatusReviewing
		if uerr := s.draftRepo.Update(ctx, order); uerr != nil {
			s.logger.Error("failed to restore reviewing state",
				zap.String("order_id", order.ID), zap.Error(uerr))
		}
		return nil, err
	}

	order.Status = model.StatusComplete
	if err := s.draftRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("persist complete state: %w", err)
	}

	s.logger.Info("order complete",
		zap.String("order_id", order.ID),
		zap.String("tier", string(order.Tier)))

	return summary, nil
}

func (s *orderServiceImpl) Cancel(ctx context.Context, orderID string) error {
	order, err := s.draftRepo.Load(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == model.StatusDispatching {
		// Reset mid-dispatch would orphan a paid submission.
		return fmt.Errorf("cancel: %w", model.ErrInvalidTransition)
	}

	// An unpaid draft leaves no financial trace.
	if !order.PaymentVerified {
		return s.draftRepo.Delete(ctx, order.ID)
	}

	// A paid order keeps its row as the financial record, stripped of
	// transient state.
	order.Audio = nil
	order.Content = ""
	order.SignatureImage = nil
	order.Document = nil
	order.OverageRequired = false
	order.OverageAccepted = false
	order.CheckoutSessionID = ""
	order.SessionRedirectURL = ""
	order.SessionAmountCents = 0
	order.SessionTier = ""
	order.PaymentVerified = false
	order.Status = model.StatusCancelled

	return s.draftRepo.Update(ctx, order)
}

func (s *orderServiceImpl) Document(ctx context.Context, orderID string) ([]byte, string, error) {
	order, err := s.draftRepo.Load(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	if len(order.Document) == 0 {
		return nil, "", fmt.Errorf("no document for order: %w", model.ErrDraftNotFound)
	}

	contentType := "application/pdf"
	if order.Tier == model.TierCivic {
		contentType = "application/zip"
	}
	return order.Document, contentType, nil
}
