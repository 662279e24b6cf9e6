package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kakeibo/internal/kv"
)

const DefaultBackfillInterval = time.Hour

// BackfillProcessor runs Backfill once on start and then every Interval,
// so the export converges even when events are lost.
type BackfillProcessor struct {
	worker   *ExportWorker
	store    kv.Store
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	last    BackfillResult
	runs    int
}

func NewBackfillProcessor(w *ExportWorker, store kv.Store, interval time.Duration) *BackfillProcessor {
	if interval <= 0 {
		interval = DefaultBackfillInterval
	}
	return &BackfillProcessor{worker: w, store: store, interval: interval}
}

// Start begins the loop. Returns an error if already running.
func (p *BackfillProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("backfill processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.runLoop(ctx, p.stopCh, p.doneCh)

	slog.InfoContext(ctx, "Backfill processor started", "interval", p.interval)
	return nil
}

// Stop signals the loop and waits for it, or for ctx.
func (p *BackfillProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Backfill processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Backfill processor stop timed out")
		return ctx.Err()
	}
}

func (p *BackfillProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LastResult returns the most recent run's result and the number of runs.
func (p *BackfillProcessor) LastResult() (BackfillResult, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.runs
}

func (p *BackfillProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.runOnce(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *BackfillProcessor) runOnce(ctx context.Context) {
	res, err := p.worker.Backfill(ctx, p.store)
	if err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "Backfill failed", "error", err)
	}

	p.mu.Lock()
	p.last = res
	p.runs++
	p.mu.Unlock()
}
