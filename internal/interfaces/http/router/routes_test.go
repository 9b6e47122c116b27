package router

import (
	"net/http"
	"sort"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// apiEngine wires the real route table with nil services; only paths that
// answer before reaching a service are exercised here
func apiEngine(auth gin.HandlerFunc) *gin.Engine {
	engine := gin.New()
	h := Handlers{
		Cart:    handler.NewCartHandler(nil),
		Order:   handler.NewOrderHandler(nil),
		Payment: handler.NewPaymentHandler(nil, 8),
		System:  handler.NewSystemHandler("storefront", "test", nil),
	}
	NewRouter(engine).Register(APIGroups(h, Guards{Auth: auth})...).Setup()
	MountProbes(engine, h.System, http.NotFoundHandler())
	return engine
}

func denyAll(c *gin.Context) {
	c.AbortWithStatus(http.StatusUnauthorized)
}

func asCustomer(c *gin.Context) {
	c.Set(middleware.PrincipalKey, shared.Principal{UserID: uuid.New(), Roles: []string{"customer"}})
	c.Next()
}

func TestAPIGroups_RouteTable(t *testing.T) {
	engine := apiEngine(denyAll)

	var got []string
	for _, r := range engine.Routes() {
		got = append(got, r.Method+" "+r.Path)
	}
	sort.Strings(got)

	assert.Equal(t, []string{
		"DELETE /api/v1/cart/:product_id",
		"DELETE /api/v1/orders/:id",
		"GET /api/v1/admin/orders",
		"GET /api/v1/cart",
		"GET /api/v1/orders",
		"GET /api/v1/orders/:id",
		"GET /api/v1/orders/:id/payment-status",
		"GET /api/v1/payment/paypal/cancel",
		"GET /api/v1/payment/paypal/success",
		"GET /api/v1/system/info",
		"GET /health/live",
		"GET /health/ready",
		"GET /metrics",
		"POST /api/v1/cart",
		"POST /api/v1/cart/clear",
		"POST /api/v1/orders",
		"POST /api/v1/orders/:id/refund",
		"POST /api/v1/webhooks/paypal",
		"POST /api/v1/webhooks/stripe",
		"PUT /api/v1/cart/:product_id",
		"PUT /api/v1/orders/:id/status",
	}, got)
}

func TestAPIGroups_Authentication(t *testing.T) {
	engine := apiEngine(denyAll)

	protected := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/cart"},
		{http.MethodPost, "/api/v1/cart/clear"},
		{http.MethodPost, "/api/v1/orders"},
		{http.MethodGet, "/api/v1/orders/" + uuid.NewString()},
		{http.MethodGet, "/api/v1/admin/orders"},
		{http.MethodGet, "/api/v1/payment/paypal/cancel?order_id=" + uuid.NewString()},
	}
	for _, tc := range protected {
		assert.Equal(t, http.StatusUnauthorized, do(engine, tc.method, tc.path).Code, "%s %s", tc.method, tc.path)
	}

	// public routes answer without the guard; the tiny payload cap and the
	// missing PayPal ids stop them before any service call
	req := strings.NewReader(`{"id":"evt_1"}`)
	w := doBody(engine, http.MethodPost, "/api/v1/webhooks/stripe", req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/api/v1/system/info").Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/health/live").Code)
}

func TestAPIGroups_AdminRoutes(t *testing.T) {
	engine := apiEngine(asCustomer)
	id := uuid.NewString()

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/orders/" + id + "/refund"},
		{http.MethodPut, "/api/v1/orders/" + id + "/status"},
		{http.MethodDelete, "/api/v1/orders/" + id},
		{http.MethodGet, "/api/v1/admin/orders"},
	} {
		assert.Equal(t, http.StatusForbidden, do(engine, tc.method, tc.path).Code, "%s %s", tc.method, tc.path)
	}

	// customers reach the handler for their own order routes
	w := do(engine, http.MethodGet, "/api/v1/orders/not-a-uuid")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// and the PayPal cancel redirect once signed in
	w = do(engine, http.MethodGet, "/api/v1/payment/paypal/cancel?order_id=bad")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestMountProbes_WithoutMetrics(t *testing.T) {
	engine := gin.New()
	MountProbes(engine, handler.NewSystemHandler("storefront", "test", nil), nil)

	assert.Equal(t, http.StatusNotFound, do(engine, http.MethodGet, "/metrics").Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/health/ready").Code)
}
