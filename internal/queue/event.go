// Package queue defines message payloads exchanged over the message broker.
package queue

// ParcelPaidQueue is the durable queue parcel payment events are routed to.
const ParcelPaidQueue = "parcel.paid"

// ParcelPaidEvent is published once a checkout session has been
// reconciled and the parcel marked paid.  It carries enough for
// downstream consumers (notifications, dispatch, audit) to act without
// querying the record store.
type ParcelPaidEvent struct {
	ParcelID      string  `json:"parcel_id"`
	ParcelName    string  `json:"parcel_name"`
	TrackingID    string  `json:"tracking_id"`
	TransactionID string  `json:"transaction_id"`
	CustomerEmail string  `json:"customer_email"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	PaidAt        string  `json:"paid_at"` // RFC3339, UTC
}
