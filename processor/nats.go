// ABOUTME: NATS backed job queue for asynchronous processors
// ABOUTME: Publishes jobs on a subject consumed by a queue group of workers
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
)

// DefaultSubject and DefaultQueueGroup are used when none are configured.
const (
	DefaultSubject    = "callbridge.processors"
	DefaultQueueGroup = "callbridge-workers"
)

// NATSQueue distributes jobs across every process subscribed with the same group.
type NATSQueue struct {
	nc      *nats.Conn
	subject string
	group   string
	logger  *slog.Logger

	mu  sync.Mutex
	sub *nats.Subscription
}

func NewNATSQueue(nc *nats.Conn, subject, group string, logger *slog.Logger) *NATSQueue {
	if subject == "" {
		subject = DefaultSubject
	}
	if group == "" {
		group = DefaultQueueGroup
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSQueue{nc: nc, subject: subject, group: group, logger: logger}
}

func (q *NATSQueue) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.nc.Publish(q.subject, data); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	return nil
}

func (q *NATSQueue) Start(ctx context.Context, handle JobHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sub != nil {
		return fmt.Errorf("queue already started")
	}

	sub, err := q.nc.QueueSubscribe(q.subject, q.group, func(msg *nats.Msg) {
		var job Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			q.logger.Warn("Dropping malformed processor job", "subject", msg.Subject, "error", err)
			return
		}
		handle(ctx, job)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", q.subject, err)
	}
	q.sub = sub
	return nil
}

// Close drains the subscription so in-flight jobs finish.
func (q *NATSQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sub == nil {
		return nil
	}
	err := q.sub.Drain()
	q.sub = nil
	return err
}
