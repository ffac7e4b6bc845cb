package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"verbapost/internal/client"
	"verbapost/internal/dto"
	"verbapost/internal/model"
)

type fakeDraftRepo struct {
	orders    map[string]model.Order
	processed map[string]string
	nextID    int
}

func newFakeDraftRepo() *fakeDraftRepo {
	return &fakeDraftRepo{
		orders:    make(map[string]model.Order),
		processed: make(map[string]string),
	}
}

func (r *fakeDraftRepo) Save(_ context.Context, order *model.Order) error {
	if order.ID == "" {
		r.nextID++
		order.ID = fmt.Sprintf("order-%d", r.nextID)
	}
	r.orders[order.ID] = *order
	return nil
}

func (r *fakeDraftRepo) Load(_ context.Context, id string) (*model.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("load draft %s: %w", id, model.ErrDraftNotFound)
	}
	copied := order
	return &copied, nil
}

func (r *fakeDraftRepo) Update(_ context.Context, order *model.Order) error {
	r.orders[order.ID] = *order
	return nil
}

func (r *fakeDraftRepo) Delete(_ context.Context, id string) error {
	delete(r.orders, id)
	return nil
}

func (r *fakeDraftRepo) MarkProcessed(_ context.Context, sessionID, orderID string) (bool, error) {
	if _, ok := r.processed[sessionID]; ok {
		return false, nil
	}
	r.processed[sessionID] = orderID
	return true, nil
}

func (r *fakeDraftRepo) IsProcessed(_ context.Context, sessionID string) (bool, error) {
	_, ok := r.processed[sessionID]
	return ok, nil
}

type fakeCheckout struct {
	createCalls int
	statusCalls int
	createErr   error
	status      client.SessionStatus
	statusErr   error

	lastAmount    int64
	lastReturnURL string
}

func (c *fakeCheckout) CreateSession(_ context.Context, _ string, amountCents int64, returnURL, _ string) (*client.CreateSessionResponse, error) {
	c.createCalls++
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.lastAmount = amountCents
	c.lastReturnURL = returnURL
	return &client.CreateSessionResponse{
		SessionID:   fmt.Sprintf("cs_%d", c.createCalls),
		RedirectURL: fmt.Sprintf("https://pay.example/cs_%d", c.createCalls),
	}, nil
}

func (c *fakeCheckout) CheckStatus(_ context.Context, _ string) (client.SessionStatus, error) {
	c.statusCalls++
	if c.statusErr != nil {
		return "", c.statusErr
	}
	return c.status, nil
}

type fakeSpeech struct {
	transcribeCalls int
	text            string
	transcribeErr   error
	polished        string
	polishErr       error
}

func (s *fakeSpeech) Transcribe(_ context.Context, _ []byte) (string, error) {
	s.transcribeCalls++
	return s.text, s.transcribeErr
}

func (s *fakeSpeech) Polish(_ context.Context, _ string) (string, error) {
	return s.polished, s.polishErr
}

type fakeDispatcher struct {
	calls   int
	summary *dto.DispatchSummary
	err     error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, order *model.Order) (*dto.DispatchSummary, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	order.Document = []byte("rendered")
	if d.summary != nil {
		return d.summary, nil
	}
	return &dto.DispatchSummary{OrderID: order.ID}, nil
}

type testEnv struct {
	svc        OrderService
	draftRepo  *fakeDraftRepo
	checkout   *fakeCheckout
	speech     *fakeSpeech
	dispatcher *fakeDispatcher
}

func newTestEnv(maxRecordingBytes int64) *testEnv {
	env := &testEnv{
		draftRepo:  newFakeDraftRepo(),
		checkout:   &fakeCheckout{status: client.SessionUnpaid},
		speech:     &fakeSpeech{text: "Dear Margaret, I hope this finds you well."},
		dispatcher: &fakeDispatcher{},
	}
	env.svc = NewOrderService(
		env.draftRepo,
		env.checkout,
		env.speech,
		env.dispatcher,
		"https://verbapost.example",
		maxRecordingBytes,
		zap.NewNop(),
	)
	return env
}

func testAddress(name string) model.Address {
	return model.Address{
		Name:   name,
		Street: "1008 Brandon Court",
		City:   "Mt Juliet",
		State:  "TN",
		Zip:    "37122",
	}
}

func standardDraft() *dto.DraftRequest {
	return &dto.DraftRequest{
		Tier:      "standard",
		Recipient: testAddress("Margaret Doe"),
		Sender:    testAddress("Tarak Robbana"),
	}
}

// drives a fresh draft through checkout and a paid reconciliation
func paidOrder(t *testing.T, env *testEnv, req *dto.DraftRequest) *model.Order {
	t.Helper()
	ctx := context.Background()

	order, err := env.svc.CreateDraft(ctx, req)
	require.NoError(t, err)

	checkout, err := env.svc.BeginCheckout(ctx, order.ID)
	require.NoError(t, err)

	env.checkout.status = client.SessionPaid
	result, err := env.svc.Reconcile(ctx, checkout.SessionID, order.ID)
	require.NoError(t, err)
	require.True(t, result.Verified)

	return result.Order
}

func TestCreateDraftValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("standard requires recipient", func(t *testing.T) {
		env := newTestEnv(1 << 20)
		req := standardDraft()
		req.Recipient = model.Address{}

		_, err := env.svc.CreateDraft(ctx, req)

		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "recipient", verr.Field)
	})

	t.Run("civic needs only sender", func(t *testing.T) {
		env := newTestEnv(1 << 20)
		req := &dto.DraftRequest{
			Tier:   "civic",
			Sender: testAddress("Tarak Robbana"),
		}

		order, err := env.svc.CreateDraft(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, model.TierCivic, order.Tier)
		assert.Equal(t, int64(699), order.AmountCents)
		assert.Equal(t, model.StatusAwaitingPayment, order.Status)
		assert.NotEmpty(t, order.ID)
	})

	t.Run("unknown tier rejected", func(t *testing.T) {
		env := newTestEnv(1 << 20)
		req := standardDraft()
		req.Tier = "platinum"

		_, err := env.svc.CreateDraft(ctx, req)

		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "tier", verr.Field)
	})
}

func TestBeginCheckoutReusesSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(1 << 20)

	order, err := env.svc.CreateDraft(ctx, standardDraft())
	require.NoError(t, err)

	first, err := env.svc.BeginCheckout(ctx, order.ID)
	require.NoError(t, err)
	second, err := env.svc.BeginCheckout(ctx, order.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, env.checkout.createCalls)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.RedirectURL, second.RedirectURL)
	assert.Contains(t, env.checkout.lastReturnURL, "order_id="+order.ID)
}

func TestBeginCheckoutInvalidatesStaleSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(1 << 20)

	order, err := env.svc.CreateDraft(ctx, standardDraft())
	require.NoError(t, err)

	first, err := env.svc.BeginCheckout(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(299), env.checkout.lastAmount)

	// tier change invalidates the pending session
	req := standardDraft()
	req.Tier = "heirloom"
	_, err = env.svc.UpdateDraft(ctx, order.ID, req)
	require.NoError(t, err)

	second, err := env.svc.BeginCheckout(ctx, order.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, env.checkout.createCalls)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, int64(599), env.checkout.lastAmount)

	// the stale session can no longer unlock anything
	env.checkout.status = client.SessionPaid
	_, err = env.svc.Reconcile(ctx, first.SessionID, order.ID)
	assert.ErrorIs(t, err, model.ErrPaymentUnverified)
}

func TestReconcileRejectsRepricedSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(1 << 20)

	order, err := env.svc.CreateDraft(ctx, standardDraft())
	require.NoError(t, err)
	checkout, err := env.svc.BeginCheckout(ctx, order.ID)
	require.NoError(t, err)

	// reprice the draft after the session was minted
	req := standardDraft()
	req.Tier = "heirloom"
	updated, err := env.svc.UpdateDraft(ctx, order.ID, req)
	require.NoError(t, err)
	assert.Empty(t, updated.CheckoutSessionID)

	// paying the old cheaper session must not unlock the repriced order,
	// even though no new checkout was started
	env.checkout.status = client.SessionPaid
	_, err = env.svc.Reconcile(ctx, checkout.SessionID, order.ID)
	assert.ErrorIs(t, err, model.ErrPaymentUnverified)

	got, err := env.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwaitingPayment, got.Status)
	assert.False(t, got.PaymentVerified)
	assert.Equal(t, int64(599), got.AmountCents)
}

func TestBeginCheckoutProviderUnavailable(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(1 << 20)
	env.checkout.createErr = fmt.Errorf("boom: %w", model.ErrProviderUnavailable)

	order, err := env.svc.CreateDraft(ctx, standardDraft())
	require.NoError(t, err)

	_, err = env.svc.BeginCheckout(ctx, order.ID)
	assert.ErrorIs(t, err, model.ErrProviderUnavailable)

	got, err := env.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwaitingPayment, got.Status)
	assert.Empty(t, got.CheckoutSessionID)
}

func TestReconcilePaidUnlocksExactlyOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(1 << 20)

	order, err := env.svc.CreateDraft(ctx, standardDraft())
	require.NoError(t, err)
	checkout, err := env.svc.BeginCheckout(ctx, order.ID)
	require.NoError(t, err)

	env.checkout.status = client.SessionPaid

	first, err := env.svc.Reconcile(ctx, checkout.SessionID, order.ID)
	require.NoError(t, err)
	assert.True(t, first.Verified)
	assert.False(t, first.AlreadyProcessed)
	assert.Equal(t, model.StatusRecording, first.Order.Status)
	assert.True(t, first.Order.PaymentVerified)

	// replayed return redirect: no provider call, no second unlock
	second, err := env.svc.Reconcile(ctx, checkout.SessionID, order.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)
	assert.Equal(t, 1, env.checkout.statusCalls)
	assert.Equal(t, model.StatusRecording, second.Order.Status)
}

func TestReconcileFailsClosed(t *testing.T) {
	ctx := context.Background()

	t.Run("not paid", func(t *testing.T) {
		env := newTestEnv(1 << 20)
		order, _ := env.svc.CreateDraft(ctx, standardDraft())
		checkout, _ := env.svc.BeginCheckout(ctx, order.ID)

		env.checkout.status = client.SessionUnpaid
		_, err := env.svc.Reconcile(ctx, checkout.SessionID, order.ID)
		assert.ErrorIs(t, err, model.ErrPaymentUnverified)

		got, _ := env.svc.Get(ctx, order.ID)
		assert.Equal(t, model.StatusAwaitingPayment, got.Status)
		assert.False(t, got.PaymentVerified)
	})

	t.Run("status check error", func(t *testing.T) {
		env := newTestEnv(1 << 20)
		order, _ := env.svc.CreateDraft(ctx, standardDraft())
		checkout, _ := env.svc.BeginCheckout(ctx, order.ID)

		env.checkout.statusErr = errors.New("connection reset")
		_, err := env.svc.Reconcile(ctx, checkout.SessionID, order.ID)
		assert.ErrorIs(t, err, model.ErrPaymentUnverified)

		got, _ := env.svc.Get(ctx, order.ID)
		assert.Equal(t, model.StatusAwaitingPayment, got.Status)
	})

	t.Run("absent session id is a no-op", func(t *testing.T) {
		env := newTestEnv(1 << 20)
		result, err := env.svc.Reconcile(ctx, "", "")
		require.NoError(t, err)
		assert.False(t, result.Verified)
		assert.Equal(t, 0, env.checkout.statusCalls)
	})
}

func TestRecheckPayment(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(1 << 20)

	order, _ := env.svc.CreateDraft(ctx, standardDraft())
	checkout, _ := env.svc.BeginCheckout(ctx, order.ID)

	_, err := env.svc.RecheckPayment(ctx, order.ID)
	assert.ErrorIs(t, err, model.ErrPaymentUnverified)

	env.checkout.status = client.SessionPaid
	result, err := env.svc.RecheckPayment(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, checkout.SessionID, result.Order.CheckoutSessionID)
	assert.Equal(t, model.StatusRecording, result.Order.Status)
}

func TestSubmitRecordingHappyPath(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(1 << 20)
	order := paidOrder(t, env, standardDraft())

	got, err := env.svc.SubmitRecording(ctx, order.ID, []byte("audio-bytes"))
	require.NoError(t, err)

	assert.Equal(t, model.StatusReviewing, got.Status)
	assert.Equal(t, "Dear Margaret, I hope this finds you well.", got.Content)
	assert.Equal(t, 1, env.speech.transcribeCalls)
}

func TestSubmitRecordingRequiresUnlock(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(1 << 20)

	order, _ := env.svc.CreateDraft(ctx, standardDraft())

	_, err := env.svc.SubmitRecording(ctx, order.ID, []byte("audio"))
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	assert.Equal(t, 0, env.speech.transcribeCalls)
}

func TestSubmitRecordingTranscriptionFailureRetries(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(1 << 20)
	order := paidOrder(t, env, standardDraft())

	env.speech.transcribeErr = errors.New("model overloaded")
	got, err := env.svc.SubmitRecording(ctx, order.ID, []byte("audio"))
	assert.ErrorIs(t, err, model.ErrTranscriptionFailed)
	assert.Equal(t, model.StatusRecording, got.Status)

	// empty transcript is also a retry, not success
	env.speech.transcribeErr = nil
	env.speech.text = "   "
	got, err = env.svc.SubmitRecording(ctx, order.ID, []byte("audio"))
	assert.ErrorIs(t, err, model.ErrTranscriptionFailed)
	assert.Equal(t, model.StatusRecording, got.Status)

	env.speech.text = "Better this time."
	got, err = env.svc.SubmitRecording(ctx, order.ID, []byte("audio"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusReviewing, got.Status)
	assert.Equal(t, "Better this time.", got.Content)
}

func TestOversizedRecordingOverageFlow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(8) // tiny limit so the clip overflows
	order := paidOrder(t, env, standardDraft())

	got, err := env.svc.SubmitRecording(ctx, order.ID, []byte("way too much audio"))
	require.NoError(t, err)
	assert.True(t, got.OverageRequired)
	assert.Equal(t, model.StatusRecording, got.Status)
	assert.Equal(t, 0, env.speech.transcribeCalls)

	got, err = env.svc.AcceptOverage(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.OverageAccepted)
	assert.Equal(t, int64(399), got.AmountCents)
	// the held recording proceeds without re-upload
	assert.Equal(t, model.StatusReviewing, got.Status)
	assert.Equal(t, 1, env.speech.transcribeCalls)

	_, err = env.svc.AcceptOverage(ctx, order.ID)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestUpdateContentOnlyWhileReviewing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(1 << 20)
	order := paidOrder(t, env, standardDraft())

	_, err := env.svc.UpdateContent(ctx, order.ID, "hello")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = env.svc.SubmitRecording(ctx, order.ID, []byte("audio"))
	require.NoError(t, err)

	got, err := env.svc.UpdateContent(ctx, order.ID, "Edited letter body.")
	require.NoError(t, err)
	assert.Equal(t, "Edited letter body.", got.Content)
	assert.Equal(t, model.StatusReviewing, got.Status)

	_, err = env.svc.UpdateContent(ctx, order.ID, "   ")
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestPolishContent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(1 << 20)
	order := paidOrder(t, env, standardDraft())
	_, err := env.svc.SubmitRecording(ctx, order.ID, []byte("audio"))
	require.NoError(t, err)

	env.speech.polished = "Dearest Margaret, I trust this letter finds you well."
	got, err := env.svc.PolishContent(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, env.speech.polished, got.Content)
}

func TestApprove(t *testing.T) {
	ctx := context.Background()

	t.Run("success completes the order", func(t *testing.T) {
		env := newTestEnv(1 << 20)
		order := paidOrder(t, env, standardDraft())
		_, err := env.svc.SubmitRecording(ctx, order.ID, []byte("audio"))
		require.NoError(t, err)

		summary, err := env.svc.Approve(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.ID, summary.OrderID)
		assert.Equal(t, 1, env.dispatcher.calls)

		got, _ := env.svc.Get(ctx, order.ID)
		assert.Equal(t, model.StatusComplete, got.Status)
	})

	t.Run("empty civic lookup never completes", func(t *testing.T) {
		env := newTestEnv(1 << 20)
		env.dispatcher.err = fmt.Errorf("dispatch: %w", model.ErrLookupEmpty)

		order := paidOrder(t, env, &dto.DraftRequest{
			Tier:   "civic",
			Sender: testAddress("Tarak Robbana"),
		})
		_, err := env.svc.SubmitRecording(ctx, order.ID, []byte("audio"))
		require.NoError(t, err)

		_, err = env.svc.Approve(ctx, order.ID)
		assert.ErrorIs(t, err, model.ErrLookupEmpty)

		got, _ := env.svc.Get(ctx, order.ID)
		assert.Equal(t, model.StatusReviewing, got.Status)
	})

	t.Run("approve requires reviewing state", func(t *testing.T) {
		env := newTestEnv(1 << 20)
		order := paidOrder(t, env, standardDraft())

		_, err := env.svc.Approve(ctx, order.ID)
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("unpaid draft is deleted", func(t *testing.T) {
		env := newTestEnv(1 << 20)
		order, _ := env.svc.CreateDraft(ctx, standardDraft())

		require.NoError(t, env.svc.Cancel(ctx, order.ID))

		_, err := env.svc.Get(ctx, order.ID)
		assert.ErrorIs(t, err, model.ErrDraftNotFound)
	})

	t.Run("paid order keeps its record", func(t *testing.T) {
		env := newTestEnv(1 << 20)
		order := paidOrder(t, env, standardDraft())
		_, err := env.svc.SubmitRecording(ctx, order.ID, []byte("audio"))
		require.NoError(t, err)

		require.NoError(t, env.svc.Cancel(ctx, order.ID))

		got, err := env.svc.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, got.Status)
		assert.Empty(t, got.Content)
		assert.Empty(t, got.Audio)
		assert.Empty(t, got.CheckoutSessionID)
		assert.False(t, got.PaymentVerified)
		// the paid amount stays on the record
		assert.Equal(t, int64(299), got.AmountCents)
	})
}
