package repository

import (
	"context"

	"github.com/zapshift/parcel-service/internal/model"
)

// ParcelFilter narrows a parcel listing.  An empty SenderEmail lists
// every parcel.
type ParcelFilter struct {
	SenderEmail string
}

// PaymentFilter narrows a payment listing.  An empty CustomerEmail lists
// every payment.
type PaymentFilter struct {
	CustomerEmail string
}

// ParcelStore persists parcel records.  Listings are always ordered by
// creation time, newest first.
type ParcelStore interface {
	ListParcels(ctx context.Context, f ParcelFilter) ([]model.Parcel, error)
	GetParcel(ctx context.Context, id string) (*model.Parcel, error)
	CreateParcel(ctx context.Context, p *model.Parcel) (model.InsertResult, error)
	DeleteParcel(ctx context.Context, id string) (model.DeleteResult, error)
}

// PaymentStore persists payment records.
type PaymentStore interface {
	// FindByTransactionID returns ErrPaymentNotFound when absent.
	FindByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error)
	// CommitPayment records p and marks the parcel p.ParcelID paid with
	// the given tracking id as one atomic unit.  It returns
	// ErrDuplicatePayment when p.TransactionID is already recorded, in
	// which case nothing is written.  A parcel id that does not exist is
	// not an error: the payment is still recorded and the returned
	// UpdateResult reports zero matches.
	CommitPayment(ctx context.Context, p *model.Payment, trackingID string) (model.UpdateResult, error)
	// ListPayments returns payments newest first by PaidAt.
	ListPayments(ctx context.Context, f PaymentFilter) ([]model.Payment, error)
}
