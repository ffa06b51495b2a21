package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/uniticket/internal/broker"
	"github.com/spec-kit/uniticket/internal/events"
	"github.com/spec-kit/uniticket/internal/observability"
)

const brokerPublishTimeout = 3 * time.Second

// NotificationService fans domain events out to the log, the event
// counters and the message broker.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	publisher  broker.Publisher
}

// NewNotificationService creates the service. A nil publisher disables
// forwarding.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, publisher broker.Publisher) *NotificationService {
	if publisher == nil {
		publisher = broker.Nop{}
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		publisher:  publisher,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	n.metrics.RecordEvent(string(event.Type))
	n.logger.Info("domain event",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.Actor.ID),
		zap.Any("payload", event.Payload))

	// The request context may be cancelled right after the response is
	// written; forwarding must outlive it.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), brokerPublishTimeout)
	defer cancel()
	return n.publisher.Publish(pubCtx, string(event.Type), event)
}
