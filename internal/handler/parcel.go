package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/zapshift/parcel-service/internal/model"
	"github.com/zapshift/parcel-service/internal/service"
)

// ParcelHandler serves the parcel CRUD endpoints.
type ParcelHandler struct {
	Parcels *service.ParcelService
}

// NewParcelHandler constructs a ParcelHandler and panics if parcels is nil.
func NewParcelHandler(parcels *service.ParcelService) *ParcelHandler {
	if parcels == nil {
		panic("nil service passed to NewParcelHandler")
	}
	return &ParcelHandler{Parcels: parcels}
}

// CreateParcelRequest is the body of POST /parcels.  Server-owned fields
// (id, createdAt, paymentStatus, trackingId) are not accepted.
type CreateParcelRequest struct {
	SenderEmail     string  `json:"senderEmail" validate:"required,email"`
	ParcelName      string  `json:"parcelName" validate:"required,max=200"`
	Cost            float64 `json:"cost" validate:"gt=0,lte=999999.99"`
	ParcelType      string  `json:"parcelType" validate:"max=50"`
	ParcelWeight    float64 `json:"parcelWeight" validate:"gte=0"`
	SenderName      string  `json:"senderName" validate:"max=200"`
	ReceiverName    string  `json:"receiverName" validate:"max=200"`
	ReceiverAddress string  `json:"receiverAddress" validate:"max=500"`
	ReceiverPhone   string  `json:"receiverPhone" validate:"max=50"`
}

func (r CreateParcelRequest) toModel() *model.Parcel {
	return &model.Parcel{
		SenderEmail:     strings.TrimSpace(r.SenderEmail),
		ParcelName:      strings.TrimSpace(r.ParcelName),
		Cost:            r.Cost,
		ParcelType:      strings.TrimSpace(r.ParcelType),
		ParcelWeight:    r.ParcelWeight,
		SenderName:      strings.TrimSpace(r.SenderName),
		ReceiverName:    strings.TrimSpace(r.ReceiverName),
		ReceiverAddress: strings.TrimSpace(r.ReceiverAddress),
		ReceiverPhone:   strings.TrimSpace(r.ReceiverPhone),
	}
}

// List handles GET /parcels?email=.  Without email every parcel is
// returned; either way newest first.
func (h *ParcelHandler) List(c echo.Context) error {
	email := strings.TrimSpace(c.QueryParam("email"))
	parcels, err := h.Parcels.List(c.Request().Context(), email)
	if err != nil {
		return respondError(c, err, "failed to list parcels")
	}
	return c.JSON(http.StatusOK, parcels)
}

// Get handles GET /parcels/:id.
func (h *ParcelHandler) Get(c echo.Context) error {
	p, err := h.Parcels.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err, "failed to load parcel")
	}
	return c.JSON(http.StatusOK, p)
}

// Create handles POST /parcels.  It answers 200, not 201, with the
// insert result the dashboard reads the new id from.
func (h *ParcelHandler) Create(c echo.Context) error {
	var req CreateParcelRequest
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	res, err := h.Parcels.Create(c.Request().Context(), req.toModel())
	if err != nil {
		return respondError(c, err, "failed to create parcel")
	}
	return c.JSON(http.StatusOK, res)
}

// Delete handles DELETE /parcels/:id.  A missing parcel is not an error;
// the result simply reports zero deletions.
func (h *ParcelHandler) Delete(c echo.Context) error {
	res, err := h.Parcels.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err, "failed to delete parcel")
	}
	return c.JSON(http.StatusOK, res)
}
