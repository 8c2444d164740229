package model

import "time"

// Payment records one successfully reconciled checkout session.  It is
// written exactly once per gateway transaction and never updated.
// TransactionID is unique across all payments; the store enforces this
// and the reconciliation flow relies on it to detect replays.
type Payment struct {
	ID            string    `json:"_id"`
	Amount        float64   `json:"amount"`        // major units, e.g. 12.50
	Currency      string    `json:"currency"`      // ISO code as reported by the gateway
	CustomerEmail string    `json:"customerEmail"` // payer email
	ParcelID      string    `json:"parcelId"`
	ParcelName    string    `json:"parcelName"`
	TransactionID string    `json:"transactionId"` // gateway payment intent id
	PaymentStatus string    `json:"paymentStatus"` // status snapshot at reconciliation time
	PaidAt        time.Time `json:"paidAt"`
}
