package dto

import "verbapost/internal/model"

type DraftRequest struct {
	Tier      string        `json:"tier"`
	Recipient model.Address `json:"recipient"`
	Sender    model.Address `json:"sender"`
	Language  string        `json:"language"`
}

type CheckoutResponse struct {
	OrderID     string `json:"order_id"`
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

type ContentRequest struct {
	Content string `json:"content"`
}

type TargetResult struct {
	Name           string `json:"name"`
	Title          string `json:"title,omitempty"`
	ConfirmationID string `json:"confirmation_id,omitempty"`
	Failed         bool   `json:"failed"`
	Error          string `json:"error,omitempty"`
}

type DispatchSummary struct {
	OrderID string         `json:"order_id"`
	Queued  bool           `json:"queued"` // heirloom manual fulfillment
	Targets []TargetResult `json:"targets"`
}

// OrderResponse is the order without its raw blobs.
type OrderResponse struct {
	OrderID         string        `json:"order_id"`
	Tier            string        `json:"tier"`
	Status          string        `json:"status"`
	AmountCents     int64         `json:"amount_cents"`
	Recipient       model.Address `json:"recipient"`
	Sender          model.Address `json:"sender"`
	Content         string        `json:"content,omitempty"`
	Language        string        `json:"language,omitempty"`
	PaymentVerified bool          `json:"payment_verified"`
	OverageRequired bool          `json:"overage_required"`
	OverageAccepted bool          `json:"overage_accepted"`
	HasDocument     bool          `json:"has_document"`
}

func NewOrderResponse(o *model.Order) *OrderResponse {
	return &OrderResponse{
		OrderID:         o.ID,
		Tier:            string(o.Tier),
		Status:          string(o.Status),
		AmountCents:     o.AmountCents,
		Recipient:       o.Recipient,
		Sender:          o.Sender,
		Content:         o.Content,
		Language:        o.Language,
		PaymentVerified: o.PaymentVerified,
		OverageRequired: o.OverageRequired,
		OverageAccepted: o.OverageAccepted,
		HasDocument:     len(o.Document) > 0,
	}
}

type FulfillmentItemResponse struct {
	ID            uint   `json:"id"`
	OrderID       string `json:"order_id"`
	RecipientName string `json:"recipient_name"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}
