package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zapshift/parcel-service/internal/payment"
	"github.com/zapshift/parcel-service/internal/service"
)

// maxWebhookBody caps the webhook payload; provider events are far smaller.
const maxWebhookBody = 64 << 10

// WebhookHandler receives provider webhooks.
type WebhookHandler struct {
	Verifier payment.WebhookVerifier
	Payments *service.PaymentService
}

// NewWebhookHandler constructs a WebhookHandler and panics on nil input.
func NewWebhookHandler(verifier payment.WebhookVerifier, payments *service.PaymentService) *WebhookHandler {
	if verifier == nil || payments == nil {
		panic("nil dependency passed to NewWebhookHandler")
	}
	return &WebhookHandler{Verifier: verifier, Payments: payments}
}

// Stripe handles POST /webhooks/stripe.  A checkout-completed event runs
// the same reconciliation as PATCH /payment-success, so whichever of the
// two arrives second is reported as already processed.  Other event types
// are acknowledged and ignored.
func (h *WebhookHandler) Stripe(c echo.Context) error {
	ctx := c.Request().Context()
	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}

	sessionID, err := h.Verifier.CompletedSessionID(body, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		slog.WarnContext(ctx, "webhook rejected", "err", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid webhook"})
	}
	if sessionID == "" {
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	conf, err := h.Payments.ConfirmSession(ctx, sessionID)
	if err != nil {
		// any non-2xx makes the provider redeliver the event later
		return respondError(c, err, "failed to record payment")
	}
	slog.InfoContext(ctx, "webhook reconciled", "session_id", sessionID, "outcome", string(conf.Outcome))
	return c.JSON(http.StatusOK, echo.Map{"received": true, "outcome": conf.Outcome})
}
