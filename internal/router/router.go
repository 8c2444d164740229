package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/zapshift/parcel-service/internal/handler"
	"github.com/zapshift/parcel-service/internal/middleware"
	"github.com/zapshift/parcel-service/internal/utils"
)

// Cache pairs the read-through response cache with the middleware that
// invalidates it.  Reads get Read; every route that changes parcels or
// payments gets Invalidate.  The zero value disables both.
type Cache struct {
	Read       echo.MiddlewareFunc
	Invalidate echo.MiddlewareFunc
}

func (c Cache) read() []echo.MiddlewareFunc {
	if c.Read == nil {
		return nil
	}
	return []echo.MiddlewareFunc{c.Read}
}

func (c Cache) invalidate() []echo.MiddlewareFunc {
	if c.Invalidate == nil {
		return nil
	}
	return []echo.MiddlewareFunc{c.Invalidate}
}

// RegisterRoutes registers the liveness endpoints.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/", handler.Root)
	e.GET("/healthz", handler.Health)
}

// RegisterParcels registers the parcel CRUD routes.
func RegisterParcels(e *echo.Echo, h *handler.ParcelHandler, cache Cache) {
	e.GET("/parcels", h.List, cache.read()...)
	e.GET("/parcels/:id", h.Get, cache.read()...)
	e.POST("/parcels", h.Create, cache.invalidate()...)
	e.DELETE("/parcels/:id", h.Delete, cache.invalidate()...)
}

// RegisterPayments registers checkout, reconciliation and payment history.
func RegisterPayments(e *echo.Echo, h *handler.PaymentHandler, cache Cache) {
	e.POST("/create-checkout-session", h.CreateCheckoutSession)
	e.PATCH("/payment-success", h.PaymentSuccess, cache.invalidate()...)
	e.GET("/payments", h.ListPayments, cache.read()...)
}

// RegisterAdmin registers the admin routes behind JWT bearer auth.  Only
// tokens carrying the ADMIN role are accepted.
func RegisterAdmin(e *echo.Echo, h *handler.PaymentHandler, jwtSecret string) {
	admin := e.Group("/admin")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole(utils.RoleAdmin))
	admin.GET("/payments", h.AdminListPayments)
}

// RegisterWebhooks registers the payment provider webhook.
func RegisterWebhooks(e *echo.Echo, h *handler.WebhookHandler, cache Cache) {
	e.POST("/webhooks/stripe", h.Stripe, cache.invalidate()...)
}
