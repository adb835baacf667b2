// Package redisqueue carries notification jobs through a Redis list so
// email delivery runs in a separate worker process.
package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lorrc/helpdesk-backend/internal/core/ports"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/clock"
)

const (
	DefaultKey         = "helpdesk:notifications"
	DefaultMaxAttempts = 3

	pollTimeout = 5 * time.Second
)

// envelope is the queued form of a job.
type envelope struct {
	Job        ports.NotificationJob `json:"job"`
	Attempts   int                   `json:"attempts"`
	EnqueuedAt time.Time             `json:"enqueuedAt"`
	LastError  string                `json:"lastError,omitempty"`
}

// Connect parses url, opens a client and pings it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rc := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rc, nil
}

// Queue pushes notification jobs onto a Redis list.
type Queue struct {
	client redis.Cmdable
	key    string
	clock  clock.Clock
}

var _ ports.Notifier = (*Queue)(nil)

func NewQueue(client redis.Cmdable, key string, clk clock.Clock) *Queue {
	if key == "" {
		key = DefaultKey
	}
	return &Queue{client: client, key: key, clock: clk}
}

// Notify enqueues the job. Workers pop from the other end, so jobs are
// processed in submission order.
func (q *Queue) Notify(ctx context.Context, job ports.NotificationJob) error {
	return q.push(ctx, envelope{Job: job, EnqueuedAt: q.clock.Now()})
}

// Len reports how many jobs are waiting.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// DeadLetterKey is where jobs go after their last failed attempt.
func (q *Queue) DeadLetterKey() string {
	return q.key + ":failed"
}

func (q *Queue) push(ctx context.Context, env envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding notification job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("queueing notification job: %w", err)
	}
	return nil
}

// Handler processes one job.
type Handler interface {
	Deliver(ctx context.Context, job ports.NotificationJob) error
}

// Worker pops jobs and hands them to a Handler. Failed jobs are retried up
// to MaxAttempts, then parked on the dead letter list.
type Worker struct {
	client      *redis.Client
	queue       *Queue
	handler     Handler
	MaxAttempts int
	logger      *slog.Logger
}

func NewWorker(client *redis.Client, queue *Queue, handler Handler, logger *slog.Logger) *Worker {
	return &Worker{
		client:      client,
		queue:       queue,
		handler:     handler,
		MaxAttempts: DefaultMaxAttempts,
		logger:      logger.With("component", "notification_worker"),
	}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("notification worker started", "queue", w.queue.key)
	for ctx.Err() == nil {
		if _, err := w.ProcessOne(ctx, pollTimeout); err != nil {
			if ctx.Err() != nil {
				w.logger.Info("notification worker stopped")
				return nil
			}
			w.logger.Error("queue read failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
	w.logger.Info("notification worker stopped")
	return nil
}

// ProcessOne waits up to timeout for a job and handles it. It reports
// whether a job was taken.
func (w *Worker) ProcessOne(ctx context.Context, timeout time.Duration) (bool, error) {
	res, err := w.client.BRPop(ctx, timeout, w.queue.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// res is [key, value]
	var env envelope
	if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
		w.logger.Error("dropping malformed job", "error", err)
		return true, nil
	}

	env.Attempts++
	logger := w.logger.With("ticket_id", env.Job.TicketID, "template", env.Job.Template, "attempt", env.Attempts)

	if err := w.handler.Deliver(ctx, env.Job); err != nil {
		env.LastError = err.Error()
		if env.Attempts >= w.MaxAttempts {
			logger.Error("notification failed permanently", "error", err)
			return true, w.park(ctx, env)
		}
		logger.Warn("notification failed, requeueing", "error", err)
		return true, w.queue.push(ctx, env)
	}

	logger.Info("notification delivered", "queued_for", time.Since(env.EnqueuedAt).String())
	return true, nil
}

func (w *Worker) park(ctx context.Context, env envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return w.client.LPush(ctx, w.queue.DeadLetterKey(), payload).Err()
}
