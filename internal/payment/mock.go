package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MockGateway is an in-process Gateway for local development and tests.
// Every created session is immediately paid unless PendingByDefault is
// set, and its URL points straight at the success URL so the dashboard
// round trip can be exercised without a provider account.
type MockGateway struct {
	PendingByDefault bool

	mu       sync.Mutex
	sessions map[string]Session
}

// NewMockGateway returns an empty MockGateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{sessions: make(map[string]Session)}
}

// CreateCheckoutSession records a new session.
func (m *MockGateway) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (*Session, error) {
	if req.AmountMinor < 1 {
		return nil, ErrInvalidAmount
	}
	id := "cs_mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	status := StatusPaid
	if m.PendingByDefault {
		status = "unpaid"
	}
	meta := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		meta[k] = v
	}
	s := Session{
		ID:              id,
		URL:             strings.ReplaceAll(req.SuccessURL, "{CHECKOUT_SESSION_ID}", id),
		PaymentStatus:   status,
		PaymentIntentID: "pi_mock_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		AmountTotal:     req.AmountMinor,
		Currency:        req.Currency,
		CustomerEmail:   req.CustomerEmail,
		Metadata:        meta,
	}
	m.Put(s)
	return &s, nil
}

// GetCheckoutSession returns a copy of a stored session.
func (m *MockGateway) GetCheckoutSession(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("retrieve checkout session %s: %w", id, ErrSessionNotFound)
	}
	return &s, nil
}

// Put stores or replaces a session, letting tests stage gateway state.
func (m *MockGateway) Put(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions == nil {
		m.sessions = make(map[string]Session)
	}
	m.sessions[s.ID] = s
}

// Len reports how many sessions have been created or staged.
func (m *MockGateway) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// SetStatus changes the payment status of a stored session.
func (m *MockGateway) SetStatus(id, status string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		s.PaymentStatus = status
		m.sessions[id] = s
	}
	return ok
}
