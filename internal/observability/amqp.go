package observability

import (
	"context"
	"sync"
	"time"
)

// Publisher delivers events to the message bus. rabbitmq.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

var (
	publisherMu      sync.RWMutex
	defaultPublisher Publisher
	serviceName      = "groupchat-service"
)

// SetPublisher installs the bus used by PublishEvent. A nil publisher disables events.
func SetPublisher(publisher Publisher, service string) {
	publisherMu.Lock()
	defer publisherMu.Unlock()
	defaultPublisher = publisher
	if service != "" {
		serviceName = service
	}
}

// PublishEvent sends a domain event under the routing key "<source>.<name>".
func PublishEvent(ctx context.Context, source, name string, payload any) error {
	publisherMu.RLock()
	publisher, service := defaultPublisher, serviceName
	publisherMu.RUnlock()
	if publisher == nil {
		return nil
	}

	envelope := NewEventEnvelope(ctx, service, source, name, payload, time.Now())
	err := publisher.Publish(ctx, envelope.RoutingKey(), envelope)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}
