package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	farm "solarfarm-cloud/internal/farm/domain"
	"solarfarm-cloud/internal/farm/infrastructure/memory"
	"solarfarm-cloud/internal/farm/simrand"
	"solarfarm-cloud/internal/observability/metrics"
)

// Evolution constants.
const (
	DefaultTickPeriod = 3 * time.Second

	maxDustStep        = 0.5
	baseEfficiency     = 95.0
	dustEfficiencyLoss = 15.0
	efficiencyNoise    = 1.0
	evolvedEfficiency  = 70.0
)

// TickHook runs after every evolution tick on the loop goroutine.
type TickHook func(ctx context.Context, at time.Time)

// EvolutionEngine ages the active panel population.
type EvolutionEngine struct {
	store  *memory.Store
	rng    *simrand.Source
	logger *log.Logger
	clock  Clock

	mu    sync.Mutex
	hooks []TickHook
}

// NewEvolutionEngine constructs an engine.
func NewEvolutionEngine(store *memory.Store, rng *simrand.Source, logger *log.Logger) (*EvolutionEngine, error) {
	if store == nil {
		return nil, errors.New("evolution: nil store")
	}
	if rng == nil {
		return nil, errors.New("evolution: nil random source")
	}
	return &EvolutionEngine{store: store, rng: rng, logger: logger, clock: systemClock{}}, nil
}

// OnTick registers a hook invoked after each tick of Run.
func (e *EvolutionEngine) OnTick(hook TickHook) {
	if hook == nil {
		return
	}
	e.mu.Lock()
	e.hooks = append(e.hooks, hook)
	e.mu.Unlock()
}

// Tick advances every active panel by one step and returns how many were aged.
func (e *EvolutionEngine) Tick(ctx context.Context) int {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		metrics.ObserveEvolutionTick(metrics.ResultError, time.Since(start))
		return 0
	}
	n := e.store.UpdateActive(func(p *farm.Panel) {
		p.SetDust(p.DustLevel + e.rng.Uniform(0, maxDustStep))
		efficiency := baseEfficiency - dustEfficiencyLoss*p.DustLevel/1000 + e.rng.Uniform(-efficiencyNoise, efficiencyNoise)
		p.SetEfficiency(farm.Clamp(efficiency, evolvedEfficiency, farm.MaxEfficiency))
	})
	metrics.ObserveEvolutionTick(metrics.ResultSuccess, time.Since(start))
	return n
}

// Run ticks every period until ctx is cancelled.
func (e *EvolutionEngine) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		period = DefaultTickPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if e.logger != nil {
				e.logger.Printf("evolution: stopped: panels=%d", e.store.Len())
			}
			return nil
		case <-ticker.C:
			e.step(ctx)
		}
	}
}

func (e *EvolutionEngine) step(ctx context.Context) {
	e.Tick(ctx)
	at := e.clock.Now()
	e.mu.Lock()
	hooks := append([]TickHook(nil), e.hooks...)
	e.mu.Unlock()
	for _, hook := range hooks {
		hook(ctx, at)
	}
}
