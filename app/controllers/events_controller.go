package controllers

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/valyala/fasthttp"

	"github.com/sivind/sivind-backend/internal/pkg/notify"
	"github.com/sivind/sivind-backend/internal/pkg/usercontext"
)

const defaultHeartbeat = 15 * time.Second

// StoreEventSource streams event payloads published for one store.
type StoreEventSource interface {
	Listen(ctx context.Context, storeID string) (<-chan string, func() error, error)
}

type EventsController struct {
	source    StoreEventSource
	heartbeat time.Duration
}

func NewEventsController(source StoreEventSource) *EventsController {
	return &EventsController{source: source, heartbeat: defaultHeartbeat}
}

// HandleStream serves server-sent events for the caller's own store. A caller
// naming another store in ?store= is refused before anything is subscribed.
func (e *EventsController) HandleStream(c *fiber.Ctx) error {
	if e.source == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, ErrCodeRealtimeDisabled)
	}

	storeID := usercontext.GetStoreID(c)
	requested := c.Query("store", storeID)
	if err := notify.Authorize(storeID, requested); err != nil {
		return jsonError(c, fiber.StatusForbidden, ErrCodeForbiddenChannel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	events, closeFn, err := e.source.Listen(ctx, storeID)
	if err != nil {
		cancel()
		fiberlog.Errorf("[Events] Subscribe for store %s failed: %v", storeID, err)
		return jsonError(c, fiber.StatusServiceUnavailable, ErrCodeRealtimeDisabled)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	heartbeat := e.heartbeat
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer func() {
			if err := closeFn(); err != nil {
				fiberlog.Debugf("[Events] Closing subscription for store %s: %v", storeID, err)
			}
		}()

		fmt.Fprintf(w, "event: ready\ndata: {\"storeId\":%q}\n\n", storeID)
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case payload, ok := <-events:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", notify.EventSubscriptionUpdated, payload)
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				// client went away
				return
			}
		}
	}))

	return nil
}
