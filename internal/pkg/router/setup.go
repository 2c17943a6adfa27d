package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sivind/sivind-backend/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Handlers are the controllers and gates the routers are built from.
type Handlers struct {
	Widget    *controllers.WidgetController
	Billing   *controllers.BillingController
	Dashboard *controllers.DashboardController
	Events    *controllers.EventsController

	// IdentityGate admits dashboard callers, WidgetGate admits widget callers.
	IdentityGate fiber.Handler
	WidgetGate   fiber.Handler
	// WidgetLimiter is optional.
	WidgetLimiter fiber.Handler
}

func InstallRouter(app *fiber.App, h Handlers) {
	setup(app, NewHttpRouter(h), NewWidgetRouter(h))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
