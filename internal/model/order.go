package model

import (
	"fmt"
	"strings"
	"time"
)

type Tier string

const (
	TierStandard Tier = "STANDARD"
	TierHeirloom Tier = "HEIRLOOM"
	TierCivic    Tier = "CIVIC"
)

func (t Tier) Label() string {
	switch t {
	case TierStandard:
		return "Standard"
	case TierHeirloom:
		return "Heirloom"
	case TierCivic:
		return "Civic"
	}
	return string(t)
}

type Status string

const (
	StatusSelecting       Status = "SELECTING"
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusRecording       Status = "RECORDING"
	StatusTranscribing    Status = "TRANSCRIBING"
	StatusReviewing       Status = "REVIEWING"
	StatusDispatching     Status = "DISPATCHING"
	StatusComplete        Status = "COMPLETE"
	StatusCancelled       Status = "CANCELLED"
)

// Address is the canonical postal address used everywhere inside the core.
// Provider-specific field names (address_line1 etc.) are mapped at the
// client boundary, never in business logic.
type Address struct {
	Name   string `json:"name" gorm:"size:128"`
	Street string `json:"street" gorm:"size:256"`
	City   string `json:"city" gorm:"size:128"`
	State  string `json:"state" gorm:"size:8"`
	Zip    string `json:"zip" gorm:"size:16"`
}

func (a Address) Complete() bool {
	return a.Name != "" && a.Street != "" && a.City != "" && a.State != "" && a.Zip != ""
}

// Block renders the address the way it appears on an envelope.
func (a Address) Block() string {
	return fmt.Sprintf("%s\n%s\n%s, %s %s", a.Name, a.Street, a.City, a.State, a.Zip)
}

// SingleLine is the form geocoders expect.
func (a Address) SingleLine() string {
	return fmt.Sprintf("%s, %s, %s %s", a.Street, a.City, a.State, a.Zip)
}

func (a Address) String() string {
	return strings.ReplaceAll(a.Block(), "\n", ", ")
}

type Order struct {
	ID     string `gorm:"primaryKey;size:64;not null"` // assigned on first persistence
	Tier   Tier   `gorm:"size:16;not null"`
	Status Status `gorm:"size:32;index;not null"`

	AmountCents int64 `gorm:"not null"`

	Recipient Address `gorm:"embedded;embeddedPrefix:to_"`
	Sender    Address `gorm:"embedded;embeddedPrefix:from_"`

	Content        string `gorm:"type:text"`
	Language       string `gorm:"size:32"`
	Audio          []byte
	SignatureImage []byte
	Document       []byte // rendered letter, or zip archive in civic mode

	OverageRequired bool
	OverageAccepted bool

	// One checkout session per order. The fingerprint fields record the
	// configuration the session was minted for, so a tier/price change
	// invalidates it instead of silently reusing it.
	CheckoutSessionID  string `gorm:"size:128;index"`
	SessionRedirectURL string `gorm:"size:512"`
	SessionAmountCents int64
	SessionTier        Tier `gorm:"size:16"`

	PaymentVerified bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionStale reports whether the minted session no longer matches the
// order's (tier, price) configuration.
func (o *Order) SessionStale() bool {
	if o.CheckoutSessionID == "" {
		return true
	}
	return o.SessionAmountCents != o.AmountCents || o.SessionTier != o.Tier
}

// ProcessedSession is the processed-set for payment reconciliation. The
// primary key makes the insert a compare-and-set: a replayed return redirect
// loses the insert and must not repeat any side effect.
type ProcessedSession struct {
	SessionID   string `gorm:"primaryKey;size:128;not null"`
	OrderID     string `gorm:"size:64;index"`
	ProcessedAt time.Time
}

const (
	FulfillmentPending = "PENDING"
	FulfillmentSent    = "SENT"
)

// FulfillmentItem is one letter waiting in the heirloom manual queue.
type FulfillmentItem struct {
	ID            uint   `gorm:"primaryKey"`
	OrderID       string `gorm:"size:64;index;not null"`
	RecipientName string `gorm:"size:128"`
	Document      []byte
	Status        string `gorm:"size:16;index;not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DispatchReceipt records the outcome of one mail submission. Civic orders
// produce one receipt per representative.
type DispatchReceipt struct {
	ID             uint   `gorm:"primaryKey"`
	OrderID        string `gorm:"size:64;index;not null"`
	TargetName     string `gorm:"size:128"`
	ConfirmationID string `gorm:"size:128"`
	Failed         bool
	Error          string `gorm:"size:512"`
	CreatedAt      time.Time
}
