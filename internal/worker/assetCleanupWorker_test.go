package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atinyakov/go-user-registry/internal/worker"
)

type MockRemover struct {
	mu     sync.Mutex
	Calls  []string
	FailOn string
}

func (m *MockRemover) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, name)
	if name == m.FailOn {
		return errors.New("forced failure")
	}
	return nil
}

func (m *MockRemover) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

func testLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	cfg.OutputPaths = []string{"stdout"}
	logger, _ := cfg.Build()
	return logger
}

func TestRun_RemovesQueued(t *testing.T) {
	repo := &MockRemover{}
	w := worker.NewAssetCleanupWorker(testLogger(), repo, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Enqueue("1.png")
	w.Enqueue("2.png")

	require.Eventually(t, func() bool {
		return len(repo.calls()) == 2
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"1.png", "2.png"}, repo.calls())
}

func TestRun_FailureDoesNotStopWorker(t *testing.T) {
	repo := &MockRemover{FailOn: "bad.png"}
	w := worker.NewAssetCleanupWorker(testLogger(), repo, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Enqueue("bad.png")
	w.Enqueue("good.png")

	require.Eventually(t, func() bool {
		return len(repo.calls()) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestRun_DrainsOnShutdown(t *testing.T) {
	repo := &MockRemover{}
	w := worker.NewAssetCleanupWorker(testLogger(), repo, 8)

	// queued before the worker starts
	w.Enqueue("1.png")
	w.Enqueue("2.png")
	w.Enqueue("3.png")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	select {
	case <-w.Done():
	default:
		t.Fatal("worker did not signal completion")
	}
	require.Len(t, repo.calls(), 3)
}

func TestEnqueue_FullQueueRemovesInline(t *testing.T) {
	repo := &MockRemover{}
	w := worker.NewAssetCleanupWorker(testLogger(), repo, 1)

	w.Enqueue("queued.png")
	w.Enqueue("inline.png")

	require.Equal(t, []string{"inline.png"}, repo.calls())
}
