package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sivind/sivind-backend/app/controllers"
	"github.com/sivind/sivind-backend/internal/pkg/middleware"
)

type HttpRouter struct {
	h Handlers
}

func (r HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/", controllers.HandleHealth)

	// billing
	app.Post("/stripe-webhook", middleware.CaptureRawBody(), r.h.Billing.HandleStripeWebhook)
	app.Post("/create-checkout", r.h.IdentityGate, r.h.Billing.HandleCreateCheckout)

	// dashboard
	dashboard := app.Group("/dashboard", r.h.IdentityGate)
	dashboard.Get("/activity", r.h.Dashboard.HandleActivity)
	dashboard.Get("/subscription", r.h.Dashboard.HandleSubscription)
	dashboard.Get("/usage", r.h.Dashboard.HandleUsage)
	dashboard.Get("/events", r.h.Events.HandleStream)

	ai := app.Group("/ai", r.h.IdentityGate)
	ai.Get("/metrics", r.h.Dashboard.HandleAIMetrics)
}

func NewHttpRouter(h Handlers) *HttpRouter {
	return &HttpRouter{h: h}
}
