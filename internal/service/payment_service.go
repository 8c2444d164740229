package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zapshift/parcel-service/internal/model"
	"github.com/zapshift/parcel-service/internal/payment"
	"github.com/zapshift/parcel-service/internal/queue"
	"github.com/zapshift/parcel-service/internal/repository"
	"github.com/zapshift/parcel-service/internal/tracking"
)

// Outcome is the terminal state of one confirmation attempt.
type Outcome string

const (
	OutcomeCommitted = Outcome("committed")
	OutcomeDuplicate = Outcome("rejected-duplicate")
	OutcomeUnpaid    = Outcome("rejected-unpaid")
)

// Confirmation is the result of ConfirmSession.  Only a committed
// confirmation carries a tracking id, parcel update and payment.
type Confirmation struct {
	Outcome       Outcome
	SessionID     string
	TransactionID string
	TrackingID    string
	ParcelUpdate  model.UpdateResult
	Payment       *model.Payment
}

// CheckoutInput is what the dashboard sends to start paying for a parcel.
type CheckoutInput struct {
	Cost        float64
	ParcelName  string
	SenderEmail string
	ParcelID    string
}

// PaymentSettings carries the configuration the payment flow needs.
type PaymentSettings struct {
	Currency   string // lower-case ISO code, e.g. "usd"
	SiteDomain string // dashboard origin without trailing slash
}

// ErrAlreadyPaid is returned when checkout is requested for a parcel that
// reconciliation has already marked paid.
var ErrAlreadyPaid = errors.New("parcel already paid")

// PaymentService runs checkout creation and payment reconciliation.
type PaymentService struct {
	parcels   repository.ParcelStore
	payments  repository.PaymentStore
	gateway   payment.Gateway
	publisher EventPublisher
	settings  PaymentSettings

	trackingID func() string
	now        func() time.Time
	log        *slog.Logger
}

// NewPaymentService wires the payment flow.  publisher may be nil, in
// which case no events are emitted.
func NewPaymentService(parcels repository.ParcelStore, payments repository.PaymentStore, gateway payment.Gateway, publisher EventPublisher, settings PaymentSettings) *PaymentService {
	if parcels == nil || payments == nil || gateway == nil {
		panic("nil dependency passed to NewPaymentService")
	}
	if settings.Currency == "" {
		settings.Currency = "usd"
	}
	return &PaymentService{
		parcels:    parcels,
		payments:   payments,
		gateway:    gateway,
		publisher:  publisher,
		settings:   settings,
		trackingID: tracking.Generate,
		now:        time.Now,
		log:        slog.Default().With("component", "payment"),
	}
}

// CreateCheckout opens a checkout session for a parcel and returns the
// URL the customer must be redirected to.  The parcel must exist and be
// unpaid: a session whose metadata names no parcel could be charged but
// never reconciled.
func (s *PaymentService) CreateCheckout(ctx context.Context, in CheckoutInput) (string, error) {
	minor, err := payment.ToMinorUnits(in.Cost)
	if err != nil {
		return "", err
	}
	parcel, err := s.parcels.GetParcel(ctx, in.ParcelID)
	if err != nil {
		return "", err
	}
	if parcel.IsPaid() {
		return "", ErrAlreadyPaid
	}
	sess, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		AmountMinor:   minor,
		Currency:      s.settings.Currency,
		ProductName:   "Please pay for: " + in.ParcelName,
		CustomerEmail: in.SenderEmail,
		Metadata: map[string]string{
			payment.MetadataParcelID:   in.ParcelID,
			payment.MetadataParcelName: in.ParcelName,
		},
		SuccessURL: s.settings.SiteDomain + "/dashboard/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.settings.SiteDomain + "/dashboard/payment-cancelled",
	})
	if err != nil {
		return "", err
	}
	s.log.InfoContext(ctx, "checkout session created",
		"session_id", sess.ID, "parcel_id", in.ParcelID, "amount_minor", minor)
	return sess.URL, nil
}

// ConfirmSession reconciles a completed checkout session: it reads the
// session from the gateway and, the first time a paid session is seen,
// records the payment and marks the parcel paid.  Replays end in
// OutcomeDuplicate and sessions that are not paid in OutcomeUnpaid;
// neither writes anything.
//
// The lookup before the commit only short-cuts the common replay.  The
// store's unique constraint on the transaction id is what decides a race
// between two concurrent confirmations.
func (s *PaymentService) ConfirmSession(ctx context.Context, sessionID string) (*Confirmation, error) {
	sess, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	txID := sess.PaymentIntentID
	if txID == "" {
		// zero-amount sessions complete without a payment intent
		txID = sess.ID
	}
	conf := &Confirmation{SessionID: sess.ID, TransactionID: txID}

	_, err = s.payments.FindByTransactionID(ctx, txID)
	switch {
	case err == nil:
		conf.Outcome = OutcomeDuplicate
		return conf, nil
	case !errors.Is(err, repository.ErrPaymentNotFound):
		return nil, fmt.Errorf("check existing payment: %w", err)
	}

	if !sess.Paid() {
		s.log.InfoContext(ctx, "checkout session not paid", "session_id", sess.ID, "status", sess.PaymentStatus)
		conf.Outcome = OutcomeUnpaid
		return conf, nil
	}

	trackingID := s.trackingID()
	pay := &model.Payment{
		Amount:        payment.FromMinorUnits(sess.AmountTotal),
		Currency:      sess.Currency,
		CustomerEmail: sess.CustomerEmail,
		ParcelID:      sess.Metadata[payment.MetadataParcelID],
		ParcelName:    sess.Metadata[payment.MetadataParcelName],
		TransactionID: txID,
		PaymentStatus: sess.PaymentStatus,
		PaidAt:        s.now().UTC(),
	}
	upd, err := s.payments.CommitPayment(ctx, pay, trackingID)
	if errors.Is(err, repository.ErrDuplicatePayment) {
		s.log.InfoContext(ctx, "payment committed concurrently", "transaction_id", txID)
		conf.Outcome = OutcomeDuplicate
		return conf, nil
	}
	if err != nil {
		return nil, err
	}
	if upd.MatchedCount == 0 {
		s.log.WarnContext(ctx, "payment recorded for unknown parcel",
			"parcel_id", pay.ParcelID, "transaction_id", txID)
	}

	conf.Outcome = OutcomeCommitted
	conf.TrackingID = trackingID
	conf.ParcelUpdate = upd
	conf.Payment = pay
	s.log.InfoContext(ctx, "payment committed",
		"parcel_id", pay.ParcelID, "transaction_id", txID, "tracking_id", trackingID)

	s.publishPaid(ctx, pay, trackingID)
	return conf, nil
}

// ListPayments returns payments newest first; an empty email lists all.
func (s *PaymentService) ListPayments(ctx context.Context, customerEmail string) ([]model.Payment, error) {
	return s.payments.ListPayments(ctx, repository.PaymentFilter{CustomerEmail: customerEmail})
}

// publishPaid emits the parcel.paid event.  The payment is already
// committed, so a broker failure is logged and otherwise ignored.
func (s *PaymentService) publishPaid(ctx context.Context, pay *model.Payment, trackingID string) {
	if s.publisher == nil {
		return
	}
	ev := queue.ParcelPaidEvent{
		ParcelID:      pay.ParcelID,
		ParcelName:    pay.ParcelName,
		TrackingID:    trackingID,
		TransactionID: pay.TransactionID,
		CustomerEmail: pay.CustomerEmail,
		Amount:        pay.Amount,
		Currency:      pay.Currency,
		PaidAt:        pay.PaidAt.Format(time.RFC3339),
	}
	if err := s.publisher.PublishParcelPaid(ctx, ev); err != nil {
		s.log.WarnContext(ctx, "publish parcel.paid failed", "transaction_id", pay.TransactionID, "err", err)
	}
}
