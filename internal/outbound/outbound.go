// Package outbound carries the external-channel handoff: the actor publishes
// rendered email/SMS deliveries to a broker queue per kind, and a worker
// consumes them and drives the gateway providers. The handoff is
// fire-and-forget from the actor's point of view; the broker gives the side
// channels at-least-once delivery across restarts.
package outbound

import (
	"context"
	"fmt"

	"github.com/campushub/notifyhub/internal/domain"
	"github.com/campushub/notifyhub/internal/provider"
)

// Publisher publishes deliveries to a kind queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, d Delivery) error
	Close() error
}

// DeliveryHandler handles a consumed delivery.
type DeliveryHandler func(ctx context.Context, d Delivery) error

// Consumer consumes deliveries from a kind queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler DeliveryHandler) error
	Close() error
}

var supportedKinds = []provider.Kind{
	provider.KindEmail,
	provider.KindSMS,
}

// queueMaxPriority is the RabbitMQ x-max-priority value for work queues.
const queueMaxPriority int32 = 4

// QueueName returns the work queue for a kind, e.g. outbound.email.
func QueueName(kind provider.Kind) string {
	return fmt.Sprintf("outbound.%s", kind)
}

// DLQName returns the dead-letter queue for a kind, e.g. dlq.outbound.email.
func DLQName(kind provider.Kind) string {
	return fmt.Sprintf("dlq.%s", QueueName(kind))
}

// WorkQueueNames returns both kind work queues.
func WorkQueueNames() []string {
	queues := make([]string, 0, len(supportedKinds))
	for _, kind := range supportedKinds {
		queues = append(queues, QueueName(kind))
	}
	return queues
}

// PriorityValue maps message priority to RabbitMQ message priority.
func PriorityValue(priority domain.Priority) uint8 {
	switch priority {
	case domain.PriorityUrgent:
		return 4
	case domain.PriorityHigh:
		return 3
	case domain.PriorityNormal:
		return 2
	case domain.PriorityLow:
		return 1
	default:
		return 0
	}
}
