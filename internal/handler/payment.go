package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/zapshift/parcel-service/internal/model"
	"github.com/zapshift/parcel-service/internal/service"
)

// PaymentHandler serves checkout, reconciliation and payment history.
type PaymentHandler struct {
	Payments *service.PaymentService
}

// NewPaymentHandler constructs a PaymentHandler and panics if payments is nil.
func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	if payments == nil {
		panic("nil service passed to NewPaymentHandler")
	}
	return &PaymentHandler{Payments: payments}
}

// CheckoutRequest is the body of POST /create-checkout-session.
type CheckoutRequest struct {
	Cost        float64 `json:"cost" validate:"gt=0,lte=999999.99"`
	ParcelName  string  `json:"parcelName" validate:"required,max=200"`
	SenderEmail string  `json:"senderEmail" validate:"required,email"`
	ParcelID    string  `json:"parcelId" validate:"required"`
}

// PaymentSuccessResponse is returned by PATCH /payment-success.  Only
// Success and Message are set when the payment was not committed.
type PaymentSuccessResponse struct {
	Success       bool                `json:"success"`
	Message       string              `json:"message,omitempty"`
	ModifyParcel  *model.UpdateResult `json:"modifyParcel,omitempty"`
	TrackingID    string              `json:"trackingId,omitempty"`
	TransactionID string              `json:"transactionId,omitempty"`
	PaymentInfo   *model.Payment      `json:"paymentInfo,omitempty"`
}

// CreateCheckoutSession handles POST /create-checkout-session and returns
// {"url": ...} for the dashboard to redirect to.
func (h *PaymentHandler) CreateCheckoutSession(c echo.Context) error {
	var req CheckoutRequest
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	url, err := h.Payments.CreateCheckout(c.Request().Context(), service.CheckoutInput{
		Cost:        req.Cost,
		ParcelName:  strings.TrimSpace(req.ParcelName),
		SenderEmail: strings.TrimSpace(req.SenderEmail),
		ParcelID:    strings.TrimSpace(req.ParcelID),
	})
	if err != nil {
		return respondError(c, err, "failed to create checkout session")
	}
	return c.JSON(http.StatusOK, echo.Map{"url": url})
}

// PaymentSuccess handles PATCH /payment-success?session_id=.  It is safe
// to call any number of times: only the first call for a paid session
// changes anything.
func (h *PaymentHandler) PaymentSuccess(c echo.Context) error {
	sessionID := strings.TrimSpace(c.QueryParam("session_id"))
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id is required"})
	}
	conf, err := h.Payments.ConfirmSession(c.Request().Context(), sessionID)
	if err != nil {
		return respondError(c, err, "failed to record payment")
	}
	return c.JSON(http.StatusOK, confirmationResponse(conf))
}

func confirmationResponse(conf *service.Confirmation) PaymentSuccessResponse {
	switch conf.Outcome {
	case service.OutcomeCommitted:
		upd := conf.ParcelUpdate
		return PaymentSuccessResponse{
			Success:       true,
			Message:       "Payment processed successfully",
			ModifyParcel:  &upd,
			TrackingID:    conf.TrackingID,
			TransactionID: conf.TransactionID,
			PaymentInfo:   conf.Payment,
		}
	case service.OutcomeDuplicate:
		return PaymentSuccessResponse{Message: "Payment already processed"}
	}
	return PaymentSuccessResponse{}
}

// ListPayments handles GET /payments?email=, newest first.  The email is
// mandatory here; the unfiltered list is only served by AdminListPayments.
func (h *PaymentHandler) ListPayments(c echo.Context) error {
	email := strings.TrimSpace(c.QueryParam("email"))
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}
	payments, err := h.Payments.ListPayments(c.Request().Context(), email)
	if err != nil {
		return respondError(c, err, "failed to list payments")
	}
	return c.JSON(http.StatusOK, payments)
}

// AdminListPayments handles GET /admin/payments.  It is mounted behind
// JWTAuth and RequireRole(ADMIN) and returns every payment.
func (h *PaymentHandler) AdminListPayments(c echo.Context) error {
	payments, err := h.Payments.ListPayments(c.Request().Context(), "")
	if err != nil {
		return respondError(c, err, "failed to list payments")
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(payments), "payments": payments})
}
