package engine

import (
	"context"
	"log/slog"
	"sync"
)

// Pool runs decision passes for a stream of independent context
// events. Each worker owns one pass at a time; passes for different
// events run concurrently while dispatch-level resource locks keep
// shared external state consistent.
type Pool struct {
	engine *Engine
	size   int
	logger *slog.Logger
}

// NewPool creates a worker pool of the given size (minimum 1).
func NewPool(engine *Engine, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		engine: engine,
		size:   size,
		logger: slog.Default().With("component", "decision_pool"),
	}
}

// Run consumes requests until the channel closes or the context is
// cancelled, then waits for in-flight passes to finish.
func (p *Pool) Run(ctx context.Context, requests <-chan DecisionRequest) {
	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case req, ok := <-requests:
					if !ok {
						return
					}
					if _, err := p.engine.Decide(ctx, req); err != nil {
						p.logger.Error("decision pass failed",
							"worker", worker, "error", err)
					}
				}
			}
		}(i)
	}
	wg.Wait()
	p.logger.Info("decision pool drained")
}
