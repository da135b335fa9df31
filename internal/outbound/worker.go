package outbound

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campushub/notifyhub/internal/observability"
	"github.com/campushub/notifyhub/internal/provider"
	"github.com/campushub/notifyhub/internal/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// Worker drains the kind queues and drives the gateway providers.
type Worker struct {
	consumer    Consumer
	providers   map[provider.Kind]provider.Provider
	rateLimiter ratelimit.Limiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
}

func NewWorker(
	consumer Consumer,
	providers map[provider.Kind]provider.Provider,
	rateLimiter ratelimit.Limiter,
	concurrency int,
	logger *zap.Logger,
) (*Worker, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Worker{
		consumer:    consumer,
		providers:   providers,
		rateLimiter: rateLimiter,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}, nil
}

func (w *Worker) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Start consumes the kind queues until context cancellation.
func (w *Worker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	queueNames := WorkQueueNames()
	if len(queueNames) == 0 {
		return fmt.Errorf("no work queues configured")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		queueName := queueNames[i%len(queueNames)]
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("outbound worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)

			err := w.consumer.Consume(groupCtx, queueName, w.processDelivery)
			if err != nil {
				w.logger.Error("outbound worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("outbound worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

func (w *Worker) processDelivery(ctx context.Context, d Delivery) error {
	p, ok := w.providers[d.Kind]
	if !ok {
		// No adapter for this kind; dead-letter rather than requeue.
		return fmt.Errorf("no provider configured for kind %q", d.Kind)
	}

	kindName := d.Kind.String()
	if w.rateLimiter != nil {
		if err := w.rateLimiter.Wait(ctx, kindName); err != nil {
			return &provider.ProviderError{
				Message:   fmt.Sprintf("rate limiter wait failed: %v", err),
				Transient: true,
			}
		}
	}

	resp, sendErr := p.Send(ctx, provider.Message{
		Kind:    d.Kind,
		To:      d.To,
		Subject: d.Subject,
		Content: d.Content,
	})

	if sendErr != nil {
		reason := "permanent_error"
		if provider.IsTransient(sendErr) {
			reason = "transient_error"
		}
		if w.metrics != nil {
			w.metrics.IncOutboundFailed(kindName, reason)
		}
		w.logger.Warn("outbound send failed",
			zap.String("messageId", d.MessageID),
			zap.String("kind", kindName),
			zap.String("reason", reason),
			zap.Error(sendErr),
		)
		return sendErr
	}

	if w.metrics != nil {
		w.metrics.IncOutboundSent(kindName)
	}

	gatewayID := ""
	if resp != nil {
		gatewayID = strings.TrimSpace(resp.MessageID)
	}
	w.logger.Info("outbound send succeeded",
		zap.String("messageId", d.MessageID),
		zap.String("kind", kindName),
		zap.String("gatewayMessageId", gatewayID),
	)

	return nil
}
