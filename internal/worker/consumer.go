package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
	"github.com/jwalitptl/clinic-sync/pkg/messaging"
	"github.com/jwalitptl/clinic-sync/pkg/worker"
)

// EventHandler reacts to one state event. Returning an error retries it.
type EventHandler interface {
	Handle(ctx context.Context, ev model.StateEvent) error
}

type namedHandler struct {
	name    string
	handler EventHandler
}

// Consumer feeds state events from the broker to its handlers, in
// registration order.
type Consumer struct {
	broker   messaging.MessageBroker
	handlers []namedHandler
	retry    worker.RetryConfig
	logger   *logger.Logger
}

func NewConsumer(broker messaging.MessageBroker, retry worker.RetryConfig, log *logger.Logger) *Consumer {
	return &Consumer{
		broker: broker,
		retry:  retry,
		logger: log.With("component", "event_consumer"),
	}
}

func (c *Consumer) Register(name string, h EventHandler) {
	c.handlers = append(c.handlers, namedHandler{name: name, handler: h})
}

// Start subscribes and returns; messages are handled until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.broker.Subscribe(ctx, messaging.ChannelStateEvents, func(raw []byte) error {
		return c.dispatch(ctx, raw)
	}); err != nil {
		return fmt.Errorf("failed to subscribe to state events: %w", err)
	}
	c.logger.Info("event consumer started", "handlers", len(c.handlers))
	return nil
}

func (c *Consumer) dispatch(ctx context.Context, raw []byte) error {
	var ev model.StateEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("failed to decode state event: %w", err)
	}

	var firstErr error
	for _, h := range c.handlers {
		err := worker.Retry(ctx, c.retry, func() error {
			return h.handler.Handle(ctx, ev)
		})
		if err != nil {
			c.logger.Error(err, "event handler failed", "handler", h.name, "event_id", ev.ID, "type", ev.Type)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
