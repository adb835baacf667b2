package redisqueue

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lorrc/helpdesk-backend/internal/core/ports"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/clock"
)

var testRedisURL string

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("could not start redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		log.Fatalf("could not get redis endpoint: %v", err)
	}
	testRedisURL = "redis://" + endpoint + "/0"

	code := m.Run()

	if err := container.Terminate(ctx); err != nil {
		log.Printf("could not terminate redis container: %v", err)
	}
	os.Exit(code)
}

type recordingHandler struct {
	mu    sync.Mutex
	jobs  []ports.NotificationJob
	fails int
}

func (h *recordingHandler) Deliver(_ context.Context, job ports.NotificationJob) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fails > 0 {
		h.fails--
		return errors.New("smtp unavailable")
	}
	h.jobs = append(h.jobs, job)
	return nil
}

func newTestQueue(t *testing.T, handler Handler) (*Queue, *Worker, *redis.Client) {
	t.Helper()
	client, err := Connect(context.Background(), testRedisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	q := NewQueue(client, "test:"+t.Name(), clock.Real())
	w := NewWorker(client, q, handler, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return q, w, client
}

func job(id int64) ports.NotificationJob {
	return ports.NotificationJob{
		To:       "ada@helpdesk.test",
		Template: ports.TemplateTechnicianAssignment,
		Context:  map[string]string{"ticketId": "1"},
		TicketID: id,
	}
}

func TestQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	handler := &recordingHandler{}
	q, w, _ := newTestQueue(t, handler)

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, q.Notify(ctx, job(i)))
	}
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	for i := 0; i < 3; i++ {
		took, err := w.ProcessOne(ctx, time.Second)
		require.NoError(t, err)
		assert.True(t, took)
	}

	require.Len(t, handler.jobs, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{handler.jobs[0].TicketID, handler.jobs[1].TicketID, handler.jobs[2].TicketID})
	assert.Equal(t, "1", handler.jobs[0].Context["ticketId"])
}

func TestWorker_EmptyQueue(t *testing.T) {
	_, w, _ := newTestQueue(t, &recordingHandler{})

	took, err := w.ProcessOne(context.Background(), time.Second)
	require.NoError(t, err)
	assert.False(t, took)
}

func TestWorker_RetriesThenParks(t *testing.T) {
	ctx := context.Background()

	t.Run("recovers on retry", func(t *testing.T) {
		handler := &recordingHandler{fails: 1}
		q, w, _ := newTestQueue(t, handler)
		require.NoError(t, q.Notify(ctx, job(9)))

		for i := 0; i < 2; i++ {
			_, err := w.ProcessOne(ctx, time.Second)
			require.NoError(t, err)
		}
		assert.Len(t, handler.jobs, 1)
	})

	t.Run("parks after max attempts", func(t *testing.T) {
		handler := &recordingHandler{fails: 10}
		q, w, client := newTestQueue(t, handler)
		w.MaxAttempts = 2
		require.NoError(t, q.Notify(ctx, job(5)))

		for i := 0; i < 2; i++ {
			_, err := w.ProcessOne(ctx, time.Second)
			require.NoError(t, err)
		}

		pending, err := q.Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, pending)

		parked, err := client.LLen(ctx, q.DeadLetterKey()).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), parked)
	})
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	handler := &recordingHandler{}
	q, w, _ := newTestQueue(t, handler)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, q.Notify(context.Background(), job(1)))
	assert.Eventually(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return len(handler.jobs) == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop")
	}
}
