package model

import "time"

// Payment statuses a parcel can carry.  A parcel that has never been
// paid for has an empty PaymentStatus, which callers read as unpaid.
const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

// Parcel is a shipment record submitted by a sender.  It is created by
// POST /parcels and only ever mutated by payment reconciliation, which
// sets PaymentStatus and TrackingID.
//
// Fields:
//
//	ID              – opaque identifier assigned by the store.
//	SenderEmail     – email of the customer who submitted the parcel.
//	ParcelName      – short human label for the shipment.
//	Cost            – declared delivery cost in major currency units.
//	ParcelType      – optional category (document / non-document).
//	ParcelWeight    – optional weight in kilograms.
//	SenderName      – optional sender display name.
//	ReceiverName    – optional receiver name.
//	ReceiverAddress – optional receiver address.
//	ReceiverPhone   – optional receiver phone number.
//	CreatedAt       – server-side creation timestamp (UTC).
//	PaymentStatus   – empty until paid, then "paid".
//	TrackingID      – tracking label, present only once paid.
type Parcel struct {
	ID              string    `json:"_id"`
	SenderEmail     string    `json:"senderEmail"`
	ParcelName      string    `json:"parcelName"`
	Cost            float64   `json:"cost"`
	ParcelType      string    `json:"parcelType,omitempty"`
	ParcelWeight    float64   `json:"parcelWeight,omitempty"`
	SenderName      string    `json:"senderName,omitempty"`
	ReceiverName    string    `json:"receiverName,omitempty"`
	ReceiverAddress string    `json:"receiverAddress,omitempty"`
	ReceiverPhone   string    `json:"receiverPhone,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	PaymentStatus   string    `json:"paymentStatus,omitempty"`
	TrackingID      string    `json:"trackingId,omitempty"`
}

// IsPaid reports whether reconciliation has marked the parcel paid.
func (p *Parcel) IsPaid() bool { return p.PaymentStatus == PaymentStatusPaid }
