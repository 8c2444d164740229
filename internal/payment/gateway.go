// Package payment talks to the hosted checkout provider.  The rest of the
// service only sees the Gateway interface and the Session snapshot, so
// Stripe can be swapped for the in-process MockGateway in local runs and
// tests.
package payment

import (
	"context"
	"errors"
)

// Session metadata keys.  They are written when the session is created
// and read back during reconciliation, so they must never change.
const (
	MetadataParcelID   = "parcelId"
	MetadataParcelName = "parcelName"
)

// StatusPaid is the only session payment status that allows a parcel to
// be marked paid.
const StatusPaid = "paid"

var (
	// ErrGateway wraps any failure reported by the provider or the
	// network path to it.
	ErrGateway = errors.New("payment gateway error")
	// ErrSessionNotFound is returned when the provider does not know the
	// session id.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrInvalidAmount is returned when an amount rounds down to less
	// than one minor unit.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidWebhook is returned when a webhook payload cannot be
	// authenticated or decoded.
	ErrInvalidWebhook = errors.New("invalid webhook")
)

// CheckoutRequest describes a single-line-item payment session.
type CheckoutRequest struct {
	AmountMinor   int64 // price in minor units (cents)
	Currency      string
	ProductName   string
	CustomerEmail string
	Metadata      map[string]string
	SuccessURL    string
	CancelURL     string
}

// Session is the provider-independent view of a checkout session.
type Session struct {
	ID              string
	URL             string
	PaymentStatus   string
	PaymentIntentID string // transaction id; unique per successful payment
	AmountTotal     int64  // minor units
	Currency        string
	CustomerEmail   string
	Metadata        map[string]string
}

// Paid reports whether the session's payment has completed.
func (s *Session) Paid() bool { return s.PaymentStatus == StatusPaid }

// Gateway creates checkout sessions and reads back their final state.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error)
	GetCheckoutSession(ctx context.Context, id string) (*Session, error)
}

// WebhookVerifier authenticates provider webhooks.  CompletedSessionID
// returns the session id carried by a checkout-completed event, or an
// empty string for any other event type.
type WebhookVerifier interface {
	CompletedSessionID(payload []byte, signature string) (string, error)
}
