package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// Handlers are the HTTP handlers the storefront API is built from
type Handlers struct {
	Cart    *handler.CartHandler
	Order   *handler.OrderHandler
	Payment *handler.PaymentHandler
	System  *handler.SystemHandler
}

// Guards are the authentication middleware applied per group. Admin
// defaults to middleware.RequireAdmin and must run after Auth.
type Guards struct {
	Auth  gin.HandlerFunc
	Admin gin.HandlerFunc
}

// APIGroups builds the versioned API. Cart and order routes require a
// bearer token, as does the PayPal cancel redirect. Webhooks and the PayPal
// success redirect are public: the provider signature or the provider
// itself is the authority there.
func APIGroups(h Handlers, g Guards) []RouteRegistrar {
	if g.Admin == nil {
		g.Admin = middleware.RequireAdmin()
	}

	cart := NewDomainGroup("cart", "/cart").Use(g.Auth)
	cart.GET("", h.Cart.Get).
		POST("", h.Cart.AddItem).
		POST("/clear", h.Cart.Clear).
		PUT("/:product_id", h.Cart.UpdateItem).
		DELETE("/:product_id", h.Cart.RemoveItem)

	orders := NewDomainGroup("orders", "/orders").Use(g.Auth)
	orders.POST("", h.Order.Checkout).
		GET("", h.Order.List).
		GET("/:id", h.Order.Get).
		GET("/:id/payment-status", h.Order.PaymentStatus).
		POST("/:id/refund", g.Admin, h.Order.Refund).
		PUT("/:id/status", g.Admin, h.Order.UpdateStatus).
		DELETE("/:id", g.Admin, h.Order.Delete)

	adminGroup := NewDomainGroup("admin", "/admin").Use(g.Auth, g.Admin)
	adminGroup.GET("/orders", h.Order.ListAll)

	webhooks := NewDomainGroup("webhooks", "/webhooks")
	webhooks.POST("/stripe", h.Payment.StripeWebhook).
		POST("/paypal", h.Payment.PayPalWebhook)

	redirects := NewDomainGroup("payment", "/payment")
	paypal := redirects.Group("paypal", "/paypal")
	paypal.GET("/success", h.Payment.PayPalSuccess)
	paypal.Group("paypal-cancel", "").Use(g.Auth).
		GET("/cancel", h.Payment.PayPalCancel)

	system := NewDomainGroup("system", "/system")
	system.GET("/info", h.System.Info)

	return []RouteRegistrar{cart, orders, adminGroup, webhooks, redirects, system}
}

// MountProbes registers the unversioned operational endpoints. metrics may
// be nil when Prometheus export is disabled.
func MountProbes(engine *gin.Engine, system *handler.SystemHandler, metrics http.Handler) {
	engine.GET("/health/live", system.Live)
	engine.GET("/health/ready", system.Ready)
	if metrics != nil {
		engine.GET("/metrics", gin.WrapH(metrics))
	}
}
