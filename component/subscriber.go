package component

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	bldmq "github.com/openfoodhub/insight-server/builder/mq"
	"github.com/openfoodhub/insight-server/common/config"
	"github.com/openfoodhub/insight-server/common/types"
)

// ProductEventSubscriber consumes queued product change events and hands
// them to the product update worker.
type ProductEventSubscriber interface {
	Run() error
}

type productEventSubscriberImpl struct {
	cfg     *config.Config
	mq      bldmq.MessageQueue
	updates ProductUpdateComponent
}

func NewProductEventSubscriber(cfg *config.Config, updates ProductUpdateComponent) (ProductEventSubscriber, error) {
	queue, err := bldmq.NewNats(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create nats client error: %w", err)
	}
	return &productEventSubscriberImpl{
		cfg:     cfg,
		mq:      queue,
		updates: updates,
	}, nil
}

func (s *productEventSubscriberImpl) Run() error {
	err := s.mq.Subscribe(bldmq.SubscribeParams{
		Group: bldmq.MQGroup{
			StreamName:   s.cfg.Nats.StreamName,
			ConsumerName: s.cfg.Nats.ProductUpdatedConsumer,
		},
		Topics:   []string{s.cfg.Nats.ProductUpdatedSubject},
		AutoACK:  true,
		Callback: s.handleMessage,
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe product events error: %w", err)
	}
	return nil
}

func (s *productEventSubscriberImpl) handleMessage(raw []byte, meta bldmq.MessageMeta) error {
	var event types.ProductEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("failed to unmarshal product event error: %w", err)
	}
	slog.Debug("mq.product.received",
		slog.Any("msg.subject", meta.Topic), slog.String("barcode", event.Barcode))

	if err := s.updates.HandleProductUpdated(context.Background(), event); err != nil {
		slog.Error("handling product event failed",
			slog.String("barcode", event.Barcode), slog.Any("error", err))
	}
	return nil
}
