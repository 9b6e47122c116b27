package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	return doBody(engine, method, path, nil)
}

func doBody(engine *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	cart := NewDomainGroup("cart", "/cart")
	cart.GET("", func(c *gin.Context) { c.String(http.StatusOK, "cart") })
	orders := NewDomainGroup("orders", "/orders")
	orders.GET("/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })

	r.Register(cart, orders).Setup()

	w := do(engine, http.MethodGet, "/api/v1/cart")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cart", w.Body.String())

	w = do(engine, http.MethodGet, "/api/v1/orders/42")
	assert.Equal(t, "42", w.Body.String())

	assert.Equal(t, http.StatusNotFound, do(engine, http.MethodGet, "/cart").Code)
}

func TestDomainGroup(t *testing.T) {
	t.Run("name and prefix", func(t *testing.T) {
		g := NewDomainGroup("orders", "/orders")
		assert.Equal(t, "orders", g.Name())
		assert.Equal(t, "/orders", g.Prefix())
	})

	t.Run("registers every method", func(t *testing.T) {
		engine := gin.New()
		ok := func(c *gin.Context) { c.Status(http.StatusOK) }
		g := NewDomainGroup("cart", "/cart")
		g.GET("", ok).POST("", ok).PUT("/:product_id", ok).DELETE("/:product_id", ok)
		g.RegisterRoutes(engine.Group("/api/v1"))

		for _, tc := range []struct{ method, path string }{
			{http.MethodGet, "/api/v1/cart"},
			{http.MethodPost, "/api/v1/cart"},
			{http.MethodPut, "/api/v1/cart/p1"},
			{http.MethodDelete, "/api/v1/cart/p1"},
		} {
			assert.Equal(t, http.StatusOK, do(engine, tc.method, tc.path).Code, "%s %s", tc.method, tc.path)
		}
	})

	t.Run("middleware applies to subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("payment", "/payment")
		g.Use(func(c *gin.Context) {
			c.Header("X-Group", "payment")
			c.Next()
		})
		g.Group("paypal", "/paypal").GET("/success", func(c *gin.Context) { c.Status(http.StatusOK) })
		g.RegisterRoutes(engine.Group("/api/v1"))

		w := do(engine, http.MethodGet, "/api/v1/payment/paypal/success")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "payment", w.Header().Get("X-Group"))
	})

	t.Run("nil middleware is skipped", func(t *testing.T) {
		g := NewDomainGroup("system", "/system").Use(nil)
		assert.Empty(t, g.middleware)
	})

	t.Run("middleware short-circuits", func(t *testing.T) {
		engine := gin.New()
		called := false
		g := NewDomainGroup("admin", "/admin").Use(func(c *gin.Context) {
			c.AbortWithStatus(http.StatusForbidden)
		})
		g.GET("/orders", func(c *gin.Context) { called = true })
		g.RegisterRoutes(engine.Group("/api/v1"))

		assert.Equal(t, http.StatusForbidden, do(engine, http.MethodGet, "/api/v1/admin/orders").Code)
		assert.False(t, called)
	})
}
