package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubConsumer struct {
	started chan struct{}
	err     error
	block   bool
}

func (s *stubConsumer) Run(ctx context.Context) error {
	if s.started != nil {
		close(s.started)
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func newWorker(t *testing.T, c consumer, redisErr error) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:    logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard}),
		DB:        stubPinger{},
		Redis:     stubPinger{err: redisErr},
		PubSub:    stubPinger{},
		Consumer:  c,
		Heartbeat: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	return svc
}

func TestRunFailsWhenDependencyIsDown(t *testing.T) {
	consumer := &stubConsumer{started: make(chan struct{})}
	svc := newWorker(t, consumer, errors.New("connection refused"))

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")

	select {
	case <-consumer.started:
		t.Fatal("consumer should not start before dependencies are ready")
	default:
	}
}

func TestRunReturnsConsumerError(t *testing.T) {
	svc := newWorker(t, &stubConsumer{err: errors.New("subscription deleted")}, nil)

	err := svc.Run(context.Background())
	assert.EqualError(t, err, "subscription deleted")
}

func TestRunStopsOnCancel(t *testing.T) {
	consumer := &stubConsumer{started: make(chan struct{}), block: true}
	svc := newWorker(t, consumer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	<-consumer.started
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard}),
		Consumer: &stubConsumer{},
		DB:       stubPinger{},
	})
	assert.EqualError(t, err, "redis client is required")
}
