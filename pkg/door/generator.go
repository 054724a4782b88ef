package door

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Source supplies uniform random values in [0,1).
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// TickFunc receives one generated reading. ctx belongs to the generator run
// that produced the reading and is cancelled once that run is stopped.
type TickFunc func(ctx context.Context, value bool)

// Generator is a cancellable periodic task producing one random boolean per tick.
// Generator는 틱마다 하나의 무작위 불리언 값을 생성하는 취소 가능한 주기 작업입니다.
type Generator struct {
	name      string
	interval  time.Duration
	threshold float64

	mu     sync.Mutex
	src    Source
	onTick TickFunc
	cancel context.CancelFunc
	done   chan struct{}

	logger *slog.Logger
}

// NewGenerator creates a stopped generator. Each tick reports src.Float64() > threshold.
func NewGenerator(name string, interval time.Duration, threshold float64, src Source, onTick TickFunc) *Generator {
	if src == nil {
		src = globalSource{}
	}
	return &Generator{
		name:      name,
		interval:  interval,
		threshold: threshold,
		src:       src,
		onTick:    onTick,
		logger:    slog.Default().With("generator", name),
	}
}

// Name returns the generator name.
func (g *Generator) Name() string {
	return g.name
}

// Running reports whether a run is active.
func (g *Generator) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancel != nil
}

// Start begins a fresh run with a new ticker. A run already in progress is stopped first,
// so no backlog is carried over.
func (g *Generator) Start(parent context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopLocked()

	ctx, cancel := context.WithCancel(parent)
	g.cancel = cancel
	g.done = make(chan struct{})
	go g.loop(ctx, g.done)

	g.logger.Debug("Generator started", "interval", g.interval)
}

// Stop cancels the active run. It does not wait for the run goroutine to exit;
// a tick in flight sees its context cancelled.
func (g *Generator) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopLocked()
}

// Done returns a channel closed when the most recent run's goroutine has exited.
func (g *Generator) Done() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return g.done
}

func (g *Generator) stopLocked() {
	if g.cancel == nil {
		return
	}
	g.cancel()
	g.cancel = nil
	g.logger.Debug("Generator stopped")
}

func (g *Generator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.onTick(ctx, g.draw())
		}
	}
}

func (g *Generator) draw() bool {
	g.mu.Lock()
	v := g.src.Float64()
	g.mu.Unlock()
	return v > g.threshold
}
