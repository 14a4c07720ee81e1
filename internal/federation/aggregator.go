package federation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/solarnet/internal/resource"
)

// HubQuerier is the single-hub query contract the aggregator fans out.
// Implementations must return exactly one outcome and never panic on hub
// failures.
type HubQuerier interface {
	QueryHub(ctx context.Context, hub HubDescriptor, filter resource.Filter, timeout time.Duration) HubOutcome
}

// AggregatorConfig tunes the fan-out.
type AggregatorConfig struct {
	// MaxConcurrency caps simultaneous hub queries. Zero runs one goroutine
	// per hub. Queued hubs start their own timeout when they begin.
	MaxConcurrency int
}

// Aggregator runs one federated search across a registry of hubs.
type Aggregator struct {
	querier HubQuerier
	cfg     AggregatorConfig
	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// NewAggregator wires an aggregator around querier.
func NewAggregator(querier HubQuerier, cfg AggregatorConfig, logger *zap.Logger, metrics *Metrics) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		querier: querier,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "aggregator")),
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

// Search queries every hub once, concurrently, and merges the outcomes in
// registry order.
//
// Configuration problems (no hubs, a hub without name or url, duplicate
// names, an unknown filter type) are returned before any hub is contacted.
// Hub failures never surface as errors; they are recorded as that hub's
// outcome and contribute no records to TotalCount.
//
// Each hub task writes only its own slot of a preallocated slice, and the
// slots are merged after every task has produced its outcome, so the result
// does not depend on response timing.
func (a *Aggregator) Search(ctx context.Context, hubs []HubDescriptor, filter resource.Filter, timeoutPerHub time.Duration) (*FederatedResult, error) {
	if err := ValidateHubs(hubs); err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}

	runID := uuid.NewString()
	ctx, span := a.tracer.Start(ctx, "federation.Search", trace.WithAttributes(
		attribute.String("search.run_id", runID),
		attribute.Int("search.hubs", len(hubs)),
		attribute.String("search.type", string(filter.Type)),
		attribute.String("search.text", filter.Text),
	))
	defer span.End()

	log := a.logger.With(zap.String("run_id", runID))
	log.Info("federated search started",
		zap.Int("hubs", len(hubs)),
		zap.String("filter", filter.Describe()),
		zap.Duration("timeout_per_hub", timeoutPerHub))

	outcomes := make([]HubOutcome, len(hubs))

	var g errgroup.Group
	if a.cfg.MaxConcurrency > 0 {
		g.SetLimit(a.cfg.MaxConcurrency)
	}
	for i, hub := range hubs {
		i, hub := i, hub
		g.Go(func() error {
			outcomes[i] = a.querier.QueryHub(ctx, hub, filter, timeoutPerHub)
			// Failures are data; never cancel sibling hubs.
			return nil
		})
	}
	_ = g.Wait()

	result := &FederatedResult{Hubs: make([]HubResult, len(hubs))}
	for i, hub := range hubs {
		result.Hubs[i] = HubResult{Hub: hub, Outcome: outcomes[i]}
		result.TotalCount += outcomes[i].Count()
	}

	failed := len(result.Failures())
	span.SetAttributes(
		attribute.Int("search.total_count", result.TotalCount),
		attribute.Int("search.failed_hubs", failed))
	log.Info("federated search finished",
		zap.Int("total_count", result.TotalCount),
		zap.Int("failed_hubs", failed))
	a.metrics.observeSearch(result)

	return result, nil
}
