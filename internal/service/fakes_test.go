package service

import (
	"context"
	"sync"

	"github.com/zapshift/parcel-service/internal/model"
	"github.com/zapshift/parcel-service/internal/payment"
	"github.com/zapshift/parcel-service/internal/queue"
	"github.com/zapshift/parcel-service/internal/repository"
)

// recordingPublisher keeps every event it is asked to publish.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ParcelPaidEvent
	err    error
}

func (p *recordingPublisher) PublishParcelPaid(_ context.Context, ev queue.ParcelPaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Events() []queue.ParcelPaidEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.ParcelPaidEvent(nil), p.events...)
}

// recordingGateway remembers the last checkout request.
type recordingGateway struct {
	*payment.MockGateway
	last    payment.CheckoutRequest
	lastURL string
}

func (g *recordingGateway) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	g.last = req
	s, err := g.MockGateway.CreateCheckoutSession(ctx, req)
	if err == nil {
		g.lastURL = s.URL
	}
	return s, err
}

// blindPaymentStore hides existing payments from the pre-commit lookup so
// the commit itself has to detect the replay.
type blindPaymentStore struct {
	repository.PaymentStore
}

func (blindPaymentStore) FindByTransactionID(context.Context, string) (*model.Payment, error) {
	return nil, repository.ErrPaymentNotFound
}
