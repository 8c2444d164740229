package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapshift/parcel-service/internal/payment"
	"github.com/zapshift/parcel-service/internal/repository"
	"github.com/zapshift/parcel-service/internal/service"
)

var trackingRe = regexp.MustCompile(`^PRCL-\d{8}-[0-9A-F]{6}$`)

type testApp struct {
	e       *echo.Echo
	store   *repository.MemoryStore
	gateway *payment.MockGateway
}

func newTestApp(t *testing.T, gw payment.Gateway) *testApp {
	t.Helper()
	app := &testApp{store: repository.NewMemoryStore()}
	if gw == nil {
		app.gateway = payment.NewMockGateway()
		gw = app.gateway
	}
	parcels := service.NewParcelService(app.store)
	payments := service.NewPaymentService(app.store, app.store, gw, nil, service.PaymentSettings{
		Currency:   "usd",
		SiteDomain: "https://dash.example.com",
	})

	e := echo.New()
	e.Validator = NewRequestValidator()
	ph := NewParcelHandler(parcels)
	pay := NewPaymentHandler(payments)
	e.GET("/", Root)
	e.GET("/healthz", Health)
	e.GET("/parcels", ph.List)
	e.GET("/parcels/:id", ph.Get)
	e.POST("/parcels", ph.Create)
	e.DELETE("/parcels/:id", ph.Delete)
	e.POST("/create-checkout-session", pay.CreateCheckoutSession)
	e.PATCH("/payment-success", pay.PaymentSuccess)
	e.GET("/payments", pay.ListPayments)
	app.e = e
	return app
}

func (a *testApp) do(t *testing.T, method, target, body string) (int, map[string]any) {
	t.Helper()
	rec := a.raw(method, target, body)
	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) && strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func (a *testApp) raw(method, target, body string) *httptest.ResponseRecorder {
	req := newRawRequest(method, target, body)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return a.serve(req)
}

func (a *testApp) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func newRawRequest(method, target, body string) *http.Request {
	if body == "" {
		return httptest.NewRequest(method, target, nil)
	}
	return httptest.NewRequest(method, target, strings.NewReader(body))
}

func (a *testApp) createParcel(t *testing.T, email, name string, cost float64) string {
	t.Helper()
	code, out := a.do(t, http.MethodPost, "/parcels",
		fmt.Sprintf(`{"senderEmail":%q,"parcelName":%q,"cost":%v}`, email, name, cost))
	require.Equal(t, http.StatusOK, code, out)
	id, _ := out["insertedId"].(string)
	require.NotEmpty(t, id)
	return id
}

// checkout starts a checkout for parcel id and returns the session id
// taken from the redirect URL.
func (a *testApp) checkout(t *testing.T, id string) string {
	t.Helper()
	code, out := a.do(t, http.MethodPost, "/create-checkout-session",
		fmt.Sprintf(`{"cost":12.5,"parcelName":"Books","senderEmail":"a@x.com","parcelId":%q}`, id))
	require.Equal(t, http.StatusOK, code, out)
	u, err := url.Parse(out["url"].(string))
	require.NoError(t, err)
	sid := u.Query().Get("session_id")
	require.NotEmpty(t, sid)
	return sid
}

func TestRootAndHealth(t *testing.T) {
	app := newTestApp(t, nil)
	rec := app.raw(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "zap shifting shifting running!", rec.Body.String())

	rec = app.raw(http.MethodGet, "/healthz", "")
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCreateThenGetParcel(t *testing.T) {
	app := newTestApp(t, nil)
	code, out := app.do(t, http.MethodPost, "/parcels",
		`{"senderEmail":"a@x.com","parcelName":"Books","cost":12.5,"parcelType":"document","receiverName":"Bob","paymentStatus":"paid","trackingId":"forged"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["acknowledged"])
	id := out["insertedId"].(string)

	code, got := app.do(t, http.MethodGet, "/parcels/"+id, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, got["_id"])
	assert.Equal(t, "a@x.com", got["senderEmail"])
	assert.Equal(t, "Books", got["parcelName"])
	assert.Equal(t, 12.5, got["cost"])
	assert.Equal(t, "document", got["parcelType"])
	assert.Equal(t, "Bob", got["receiverName"])
	assert.NotEmpty(t, got["createdAt"])
	assert.NotContains(t, got, "paymentStatus")
	assert.NotContains(t, got, "trackingId")
}

func TestCreateParcelValidation(t *testing.T) {
	app := newTestApp(t, nil)
	cases := []struct {
		name, body, want string
	}{
		{"missing email", `{"parcelName":"Books","cost":1}`, "senderEmail is required"},
		{"bad email", `{"senderEmail":"nope","parcelName":"Books","cost":1}`, "senderEmail must be a valid email"},
		{"missing name", `{"senderEmail":"a@x.com","cost":1}`, "parcelName is required"},
		{"zero cost", `{"senderEmail":"a@x.com","parcelName":"Books","cost":0}`, "cost must be greater than 0"},
		{"cost above ceiling", `{"senderEmail":"a@x.com","parcelName":"Books","cost":1e18}`, "cost must be at most 999999.99"},
		{"negative weight", `{"senderEmail":"a@x.com","parcelName":"Books","cost":1,"parcelWeight":-1}`, "parcelWeight must be at least 0"},
		{"malformed json", `{"senderEmail":`, "invalid request body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, out := app.do(t, http.MethodPost, "/parcels", tc.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Contains(t, out["error"], tc.want)
		})
	}
	code, _ := app.do(t, http.MethodGet, "/parcels", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestGetAndDeleteErrors(t *testing.T) {
	app := newTestApp(t, nil)
	const missing = "2b0c5f0e-8a43-4a8e-9d55-6a7f1d1b0a01"

	code, out := app.do(t, http.MethodGet, "/parcels/not-an-id", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid parcel id", out["error"])

	code, out = app.do(t, http.MethodGet, "/parcels/"+missing, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, map[string]any{"error": "parcel not found"}, out)

	code, out = app.do(t, http.MethodDelete, "/parcels/"+missing, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"acknowledged": true, "deletedCount": float64(0)}, out)

	code, _ = app.do(t, http.MethodDelete, "/parcels/not-an-id", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDeleteParcel(t *testing.T) {
	app := newTestApp(t, nil)
	id := app.createParcel(t, "a@x.com", "Books", 3)

	code, out := app.do(t, http.MethodDelete, "/parcels/"+id, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), out["deletedCount"])

	code, _ = app.do(t, http.MethodGet, "/parcels/"+id, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestListParcelsByEmail(t *testing.T) {
	app := newTestApp(t, nil)
	app.createParcel(t, "a@x.com", "one", 1)
	app.createParcel(t, "b@x.com", "two", 2)
	app.createParcel(t, "a@x.com", "three", 3)

	var all, mine, none []map[string]any
	require.NoError(t, json.Unmarshal(app.raw(http.MethodGet, "/parcels", "").Body.Bytes(), &all))
	require.NoError(t, json.Unmarshal(app.raw(http.MethodGet, "/parcels?email=a@x.com", "").Body.Bytes(), &mine))
	rec := app.raw(http.MethodGet, "/parcels?email=nobody@x.com", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &none))

	assert.Len(t, all, 3)
	assert.Len(t, mine, 2)
	for _, p := range mine {
		assert.Equal(t, "a@x.com", p["senderEmail"])
	}
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestCheckoutAndPaymentSuccess(t *testing.T) {
	app := newTestApp(t, nil)
	id := app.createParcel(t, "a@x.com", "Books", 12.5)
	sid := app.checkout(t, id)

	code, out := app.do(t, http.MethodPatch, "/payment-success?session_id="+sid, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Payment processed successfully", out["message"])
	tracking := out["trackingId"].(string)
	assert.Regexp(t, trackingRe, tracking)
	assert.NotEmpty(t, out["transactionId"])
	assert.Equal(t, map[string]any{"acknowledged": true, "matchedCount": float64(1), "modifiedCount": float64(1)}, out["modifyParcel"])
	info := out["paymentInfo"].(map[string]any)
	assert.Equal(t, 12.5, info["amount"])
	assert.Equal(t, id, info["parcelId"])
	assert.Equal(t, out["transactionId"], info["transactionId"])

	_, parcel := app.do(t, http.MethodGet, "/parcels/"+id, "")
	assert.Equal(t, "paid", parcel["paymentStatus"])
	assert.Equal(t, tracking, parcel["trackingId"])

	code, out = app.do(t, http.MethodPatch, "/payment-success?session_id="+sid, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"success": false, "message": "Payment already processed"}, out)

	var history []map[string]any
	require.NoError(t, json.Unmarshal(app.raw(http.MethodGet, "/payments?email=a@x.com", "").Body.Bytes(), &history))
	assert.Len(t, history, 1)
}

func TestPaymentSuccessUnpaid(t *testing.T) {
	app := newTestApp(t, nil)
	app.gateway.PendingByDefault = true
	id := app.createParcel(t, "a@x.com", "Books", 12.5)
	sid := app.checkout(t, id)

	code, out := app.do(t, http.MethodPatch, "/payment-success?session_id="+sid, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"success": false}, out)

	_, parcel := app.do(t, http.MethodGet, "/parcels/"+id, "")
	assert.NotContains(t, parcel, "paymentStatus")
}

func TestPaymentSuccessBadInput(t *testing.T) {
	app := newTestApp(t, nil)

	code, out := app.do(t, http.MethodPatch, "/payment-success", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "session_id is required", out["error"])

	code, out = app.do(t, http.MethodPatch, "/payment-success?session_id=cs_unknown", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "unknown checkout session", out["error"])
}

func TestCheckoutValidation(t *testing.T) {
	app := newTestApp(t, nil)

	code, out := app.do(t, http.MethodPost, "/create-checkout-session", `{"cost":12.5,"parcelName":"Books","senderEmail":"a@x.com"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, out["error"], "parcelId is required")

	code, out = app.do(t, http.MethodPost, "/create-checkout-session", `{"cost":1e18,"parcelName":"Books","senderEmail":"a@x.com","parcelId":"x"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "cost must be at most 999999.99", out["error"])

	code, out = app.do(t, http.MethodPost, "/create-checkout-session", `{"cost":0.001,"parcelName":"Books","senderEmail":"a@x.com","parcelId":"x"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "cost must be at least one minor currency unit", out["error"])
}

func TestCheckoutRequiresExistingUnpaidParcel(t *testing.T) {
	app := newTestApp(t, nil)
	body := func(id string) string {
		return fmt.Sprintf(`{"cost":12.5,"parcelName":"Books","senderEmail":"a@x.com","parcelId":%q}`, id)
	}

	code, out := app.do(t, http.MethodPost, "/create-checkout-session", body("not-a-parcel"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid parcel id", out["error"])

	code, out = app.do(t, http.MethodPost, "/create-checkout-session", body("2b0c5f0e-8a43-4a8e-9d55-6a7f1d1b0a01"))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "parcel not found", out["error"])
	assert.Equal(t, 0, app.gateway.Len())

	id := app.createParcel(t, "a@x.com", "Books", 12.5)
	sid := app.checkout(t, id)
	code, _ = app.do(t, http.MethodPatch, "/payment-success?session_id="+sid, "")
	require.Equal(t, http.StatusOK, code)

	code, out = app.do(t, http.MethodPost, "/create-checkout-session", body(id))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "parcel already paid", out["error"])
	assert.Equal(t, 1, app.gateway.Len())
}

type failingGateway struct{}

func (failingGateway) CreateCheckoutSession(context.Context, payment.CheckoutRequest) (*payment.Session, error) {
	return nil, fmt.Errorf("create checkout session: %w: connection reset", payment.ErrGateway)
}

func (failingGateway) GetCheckoutSession(context.Context, string) (*payment.Session, error) {
	return nil, fmt.Errorf("retrieve checkout session: %w: timeout", payment.ErrGateway)
}

func TestGatewayFailuresAre502(t *testing.T) {
	app := newTestApp(t, failingGateway{})
	id := app.createParcel(t, "a@x.com", "Books", 12.5)

	code, out := app.do(t, http.MethodPost, "/create-checkout-session",
		fmt.Sprintf(`{"cost":12.5,"parcelName":"Books","senderEmail":"a@x.com","parcelId":%q}`, id))
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "payment gateway error", out["error"])

	code, out = app.do(t, http.MethodPatch, "/payment-success?session_id=cs_1", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "payment gateway error", out["error"])
}
