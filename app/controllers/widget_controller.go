package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/sivind/sivind-backend/internal/pkg/middleware"
	"github.com/sivind/sivind-backend/internal/pkg/security"
	"github.com/sivind/sivind-backend/internal/pkg/usercontext"
)

// WidgetTokenIssuer mints widget tokens for a store.
type WidgetTokenIssuer interface {
	Issue(storeID string) (*security.WidgetToken, error)
}

// UsageRecorder counts widget messages per store.
type UsageRecorder interface {
	AddMessage(ctx context.Context, storeID string) (int64, error)
}

type WidgetController struct {
	issuer WidgetTokenIssuer
	usage  UsageRecorder
}

func NewWidgetController(issuer WidgetTokenIssuer) *WidgetController {
	return &WidgetController{issuer: issuer}
}

// WithUsage enables message counting.
func (w *WidgetController) WithUsage(usage UsageRecorder) *WidgetController {
	w.usage = usage
	return w
}

type widgetMessageRequest struct {
	Message    string `json:"message" validate:"required,max=2000"`
	CustomerID string `json:"customerId" validate:"omitempty,uuid"`
}

// HandleIssueToken returns a widget token for the caller's own store. The route
// is behind RequireIdentity, so the store id is already the verified one.
func (w *WidgetController) HandleIssueToken(c *fiber.Ctx) error {
	storeID := usercontext.GetStoreID(c)
	if storeID == "" {
		return jsonError(c, fiber.StatusUnauthorized, middleware.CodeMissingCredential)
	}

	token, err := w.issuer.Issue(storeID)
	if err != nil {
		fiberlog.Errorf("[Widget] Failed to issue token for store %s: %v", storeID, err)
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeTokenIssueFailed)
	}

	return c.JSON(fiber.Map{
		"token":     token.Token,
		"storeId":   token.StoreID,
		"expiresAt": token.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// HandleStatus is public and reports widget activity.
func (w *WidgetController) HandleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "inactive",
		"activeVisitors": 0,
		"loads":          0,
	})
}

// HandleMessage answers a visitor message for the store bound to the widget token.
func (w *WidgetController) HandleMessage(c *fiber.Ctx) error {
	var req widgetMessageRequest
	if body := bindJSON(c, &req); body != nil {
		return c.Status(fiber.StatusBadRequest).JSON(body)
	}

	storeID := usercontext.GetStoreID(c)
	fiberlog.Debugf("[Widget] Message for store %s (%d bytes)", storeID, len(req.Message))
	if w.usage != nil {
		if _, err := w.usage.AddMessage(c.UserContext(), storeID); err != nil {
			fiberlog.Warnf("[Widget] Failed to count message for store %s: %v", storeID, err)
		}
	}

	return c.JSON(fiber.Map{
		"reply": fmt.Sprintf("You said: \"%s\"", req.Message),
	})
}
