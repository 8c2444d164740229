package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/zapshift/parcel-service/internal/model"
)

// MemoryStore keeps parcels and payments in process memory.  It backs
// STORE_DRIVER=memory for local runs and is the store used by the
// service and handler tests.  It implements both ParcelStore and
// PaymentStore with the same semantics as the MySQL backend, including
// UUID ids and the unique transaction id.
type MemoryStore struct {
	mu       sync.Mutex
	parcels  map[string]model.Parcel
	payments map[string]model.Payment // keyed by transaction id
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		parcels:  make(map[string]model.Parcel),
		payments: make(map[string]model.Payment),
	}
}

// ListParcels returns parcels newest first.
func (m *MemoryStore) ListParcels(_ context.Context, f ParcelFilter) ([]model.Parcel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Parcel{}
	for _, p := range m.parcels {
		if f.SenderEmail != "" && p.SenderEmail != f.SenderEmail {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// GetParcel returns a copy of one parcel.
func (m *MemoryStore) GetParcel(_ context.Context, id string) (*model.Parcel, error) {
	if !validUUID(id) {
		return nil, ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parcels[id]
	if !ok {
		return nil, ErrParcelNotFound
	}
	return &p, nil
}

// CreateParcel stores a copy of p under a new id.
func (m *MemoryStore) CreateParcel(_ context.Context, p *model.Parcel) (model.InsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.NewString()
	m.parcels[p.ID] = *p
	return model.InsertResult{Acknowledged: true, InsertedID: p.ID}, nil
}

// DeleteParcel removes a parcel; a missing id reports zero deletions.
func (m *MemoryStore) DeleteParcel(_ context.Context, id string) (model.DeleteResult, error) {
	if !validUUID(id) {
		return model.DeleteResult{}, ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.parcels[id]; !ok {
		return model.DeleteResult{Acknowledged: true}, nil
	}
	delete(m.parcels, id)
	return model.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
}

// FindByTransactionID returns the payment recorded for a transaction id.
func (m *MemoryStore) FindByTransactionID(_ context.Context, transactionID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[transactionID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return &p, nil
}

// CommitPayment records p and marks its parcel paid under one lock.
func (m *MemoryStore) CommitPayment(_ context.Context, p *model.Payment, trackingID string) (model.UpdateResult, error) {
	if !validUUID(p.ParcelID) {
		return model.UpdateResult{}, ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.payments[p.TransactionID]; dup {
		return model.UpdateResult{}, ErrDuplicatePayment
	}
	p.ID = uuid.NewString()
	m.payments[p.TransactionID] = *p

	res := model.UpdateResult{Acknowledged: true}
	parcel, ok := m.parcels[p.ParcelID]
	if !ok {
		return res, nil
	}
	res.MatchedCount = 1
	if parcel.PaymentStatus != model.PaymentStatusPaid || parcel.TrackingID != trackingID {
		parcel.PaymentStatus = model.PaymentStatusPaid
		parcel.TrackingID = trackingID
		m.parcels[p.ParcelID] = parcel
		res.ModifiedCount = 1
	}
	return res, nil
}

// ListPayments returns payments newest first by PaidAt.
func (m *MemoryStore) ListPayments(_ context.Context, f PaymentFilter) ([]model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Payment{}
	for _, p := range m.payments {
		if f.CustomerEmail != "" && p.CustomerEmail != f.CustomerEmail {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaidAt.After(out[j].PaidAt) })
	return out, nil
}
