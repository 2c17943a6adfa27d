package router

import (
	"github.com/gofiber/fiber/v2"
)

type WidgetRouter struct {
	h Handlers
}

func (r WidgetRouter) InstallRouter(app *fiber.App) {
	handlers := []fiber.Handler{}
	if r.h.WidgetLimiter != nil {
		handlers = append(handlers, r.h.WidgetLimiter)
	}
	widget := app.Group("/widget", handlers...)

	widget.Get("/status", r.h.Widget.HandleStatus)
	widget.Post("/token", r.h.IdentityGate, r.h.Widget.HandleIssueToken)
	widget.Post("/message", r.h.WidgetGate, r.h.Widget.HandleMessage)
}

func NewWidgetRouter(h Handlers) *WidgetRouter {
	return &WidgetRouter{h: h}
}
