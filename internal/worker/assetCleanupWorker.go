package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Remover deletes a stored asset by name.
type Remover interface {
	Remove(context.Context, string) error
}

// removeTimeout bounds a single asset removal.
const removeTimeout = 10 * time.Second

// AssetCleanupWorker removes assets that are no longer referenced by any
// user record. Removal is best effort: failures are logged and dropped.
type AssetCleanupWorker struct {
	in     chan string
	done   chan struct{}
	logger *zap.Logger
	assets Remover
}

func NewAssetCleanupWorker(logger *zap.Logger, assets Remover, queueSize int) *AssetCleanupWorker {
	return &AssetCleanupWorker{
		in:     make(chan string, queueSize),
		done:   make(chan struct{}),
		logger: logger,
		assets: assets,
	}
}

// Enqueue schedules the removal of an asset. When the queue is full the
// asset is removed on the caller's goroutine instead of being dropped.
func (w *AssetCleanupWorker) Enqueue(name string) {
	select {
	case w.in <- name:
	default:
		w.logger.Warn("cleanup queue is full, removing inline", zap.String("asset", name))
		w.remove(name)
	}
}

// Run processes removals until ctx is cancelled, then drains what is left
// in the queue.
func (w *AssetCleanupWorker) Run(ctx context.Context) {
	defer close(w.done)
	w.logger.Info("asset cleanup worker started")

	for {
		select {
		case name := <-w.in:
			w.remove(name)
		case <-ctx.Done():
			for {
				select {
				case name := <-w.in:
					w.remove(name)
				default:
					w.logger.Info("asset cleanup worker stopped")
					return
				}
			}
		}
	}
}

// Done is closed once Run has returned.
func (w *AssetCleanupWorker) Done() <-chan struct{} {
	return w.done
}

func (w *AssetCleanupWorker) remove(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()

	if err := w.assets.Remove(ctx, name); err != nil {
		w.logger.Error("Cannot delete asset", zap.String("asset", name), zap.Error(err))
		return
	}
	w.logger.Debug("asset removed", zap.String("asset", name))
}
