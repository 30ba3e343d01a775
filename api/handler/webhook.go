package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openfoodhub/insight-server/api/httpbase"
	"github.com/openfoodhub/insight-server/builder/mq"
	"github.com/openfoodhub/insight-server/common/config"
	"github.com/openfoodhub/insight-server/common/types"
)

type WebhookHandler struct {
	queue        mq.MessageQueue
	subject      string
	serverDomain string
}

func NewWebhookHandler(cfg *config.Config) (*WebhookHandler, error) {
	queue, err := mq.NewNats(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating nats client: %w", err)
	}
	return &WebhookHandler{
		queue:        queue,
		subject:      cfg.Nats.ProductUpdatedSubject,
		serverDomain: cfg.ProductService.ServerDomain,
	}, nil
}

// ProductUpdated accepts a product change notification and queues it for
// the background worker.
func (h *WebhookHandler) ProductUpdated(ctx *gin.Context) {
	var event types.ProductEvent
	if err := ctx.ShouldBindJSON(&event); err != nil {
		err = fmt.Errorf("cant parse as ProductEvent,%w", err)
		httpbase.BadRequest(ctx, err.Error())
		return
	}
	if event.Barcode == "" {
		httpbase.BadRequest(ctx, "barcode is required")
		return
	}
	if event.ServerDomain == "" {
		event.ServerDomain = h.serverDomain
	}
	event.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(event)
	if err != nil {
		httpbase.ServerError(ctx, err)
		return
	}
	if err := h.queue.Publish(h.subject, raw); err != nil {
		slog.Error("Failed to publish product event",
			slog.String("barcode", event.Barcode), slog.Any("error", err))
		httpbase.ServerError(ctx, err)
		return
	}

	slog.Info("product event queued",
		slog.String("barcode", event.Barcode), slog.String("action", event.Action))
	httpbase.OK(ctx, nil)
}
