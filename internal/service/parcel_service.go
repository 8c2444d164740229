package service

import (
	"context"
	"time"

	"github.com/zapshift/parcel-service/internal/model"
	"github.com/zapshift/parcel-service/internal/repository"
)

// ParcelService is the CRUD surface over the parcel store.  It owns the
// one piece of server-side state a new parcel gets: its creation time.
type ParcelService struct {
	store repository.ParcelStore
	now   func() time.Time
}

// NewParcelService returns a ParcelService backed by store.
func NewParcelService(store repository.ParcelStore) *ParcelService {
	if store == nil {
		panic("nil store passed to NewParcelService")
	}
	return &ParcelService{store: store, now: time.Now}
}

// List returns parcels newest first; an empty email lists all of them.
func (s *ParcelService) List(ctx context.Context, senderEmail string) ([]model.Parcel, error) {
	return s.store.ListParcels(ctx, repository.ParcelFilter{SenderEmail: senderEmail})
}

// Get returns one parcel by id.
func (s *ParcelService) Get(ctx context.Context, id string) (*model.Parcel, error) {
	return s.store.GetParcel(ctx, id)
}

// Create stamps the creation time and stores p.  Payment fields are
// cleared: only reconciliation may set them.
func (s *ParcelService) Create(ctx context.Context, p *model.Parcel) (model.InsertResult, error) {
	p.CreatedAt = s.now().UTC()
	p.PaymentStatus = ""
	p.TrackingID = ""
	return s.store.CreateParcel(ctx, p)
}

// Delete removes a parcel; deleting a missing id reports zero deletions.
func (s *ParcelService) Delete(ctx context.Context, id string) (model.DeleteResult, error) {
	return s.store.DeleteParcel(ctx, id)
}
