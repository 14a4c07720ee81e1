package federation

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultHealthInterval is used when a monitor is created without an interval.
const DefaultHealthInterval = 30 * time.Second

// HealthStatus is the liveness state of a hub as seen by the monitor.
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HubHealth tracks the liveness of a single hub.
type HubHealth struct {
	LastCheck        time.Time    `json:"last_check"`
	LastHealthy      time.Time    `json:"last_healthy"`
	Hub              string       `json:"hub"`
	Status           HealthStatus `json:"status"`
	LastError        string       `json:"last_error,omitempty"`
	ConsecutiveFails int          `json:"consecutive_fails"`
}

// HealthMonitor periodically probes every registered hub's /api/health
// endpoint. Hubs are marked unhealthy after maxFailures consecutive failed
// probes. Liveness is informational only: searches always query every hub.
// Thread-safe: all methods are safe for concurrent access.
type HealthMonitor struct {
	hubs        map[string]*HubHealth
	httpClient  *http.Client
	checkFunc   func(ctx context.Context, hub HubDescriptor) error
	onUnhealthy func(hub string)
	logger      *zap.Logger
	metrics     *Metrics
	ctx         context.Context
	cancel      context.CancelFunc
	interval    time.Duration
	timeout     time.Duration
	mu          sync.RWMutex
	wg          sync.WaitGroup
	maxFailures int
	stopped     bool
}

// NewHealthMonitor creates a monitor that probes hubs every interval.
// Hubs are marked unhealthy after 3 consecutive failures.
//
// Example:
//
//	monitor := NewHealthMonitor(30*time.Second, logger, metrics)
//	go monitor.Start(ctx, func() []HubDescriptor { return reg.Hubs() })
func NewHealthMonitor(interval time.Duration, logger *zap.Logger, metrics *Metrics) *HealthMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultHealthInterval
	}

	return &HealthMonitor{
		interval:    interval,
		timeout:     2 * time.Second,
		maxFailures: 3,
		hubs:        make(map[string]*HubHealth),
		httpClient:  &http.Client{},
		logger:      logger.With(zap.String("component", "health_monitor")),
		metrics:     metrics,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetOnUnhealthy registers a callback invoked (in its own goroutine) when a
// hub transitions to unhealthy.
func (h *HealthMonitor) SetOnUnhealthy(callback func(hub string)) {
	h.onUnhealthy = callback
}

// SetCheckFunction overrides the probe. Useful for tests.
func (h *HealthMonitor) SetCheckFunction(checkFunc func(ctx context.Context, hub HubDescriptor) error) {
	h.checkFunc = checkFunc
}

// Start probes all hubs returned by hubProvider immediately and then on
// every tick. It blocks until ctx is done or Stop is called, and returns at
// once if Stop already ran.
func (h *HealthMonitor) Start(ctx context.Context, hubProvider func() []HubDescriptor) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Info("health monitor started", zap.Duration("interval", h.interval))

	h.CheckAll(ctx, hubProvider())

	for {
		select {
		case <-ticker.C:
			h.CheckAll(ctx, hubProvider())
		case <-ctx.Done():
			h.logger.Info("health monitor stopping", zap.String("reason", "context canceled"))
			return
		case <-h.ctx.Done():
			h.logger.Info("health monitor stopping", zap.String("reason", "stopped"))
			return
		}
	}
}

// Stop cancels the monitoring loop and waits for it to return. A Start
// racing with Stop either registers before Stop waits or does not run.
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.cancel()
	h.wg.Wait()
}

// CheckAll probes every hub concurrently, waits for all probes, and forgets
// hubs no longer present in the list.
func (h *HealthMonitor) CheckAll(ctx context.Context, hubs []HubDescriptor) {
	current := make(map[string]bool, len(hubs))
	var g errgroup.Group
	for _, hub := range hubs {
		hub := hub
		current[hub.Name] = true
		g.Go(func() error {
			h.checkHub(ctx, hub)
			return nil
		})
	}
	_ = g.Wait()

	h.mu.Lock()
	for name := range h.hubs {
		if !current[name] {
			delete(h.hubs, name)
			h.logger.Info("hub removed from health monitoring", zap.String("hub", name))
		}
	}
	h.mu.Unlock()
}

func (h *HealthMonitor) checkHub(ctx context.Context, hub HubDescriptor) {
	h.mu.Lock()
	health, exists := h.hubs[hub.Name]
	if !exists {
		health = &HubHealth{Hub: hub.Name, Status: HealthUnknown}
		h.hubs[hub.Name] = health
	}
	h.mu.Unlock()

	check := h.checkFunc
	if check == nil {
		check = h.defaultHealthCheck
	}
	err := check(ctx, hub)

	h.mu.Lock()
	defer h.mu.Unlock()

	health.LastCheck = time.Now()
	h.metrics.setHubUp(hub.Name, err == nil)

	if err != nil {
		health.ConsecutiveFails++
		health.LastError = err.Error()
		h.logger.Warn("hub health check failed",
			zap.String("hub", hub.Name),
			zap.Int("attempt", health.ConsecutiveFails),
			zap.Int("max_failures", h.maxFailures),
			zap.Error(err))

		if health.ConsecutiveFails >= h.maxFailures && health.Status != HealthUnhealthy {
			health.Status = HealthUnhealthy
			h.logger.Warn("hub marked unhealthy", zap.String("hub", hub.Name))
			if h.onUnhealthy != nil {
				go h.onUnhealthy(hub.Name)
			}
		}
		return
	}

	if health.Status == HealthUnhealthy {
		h.logger.Info("hub recovered", zap.String("hub", hub.Name))
	}
	health.Status = HealthHealthy
	health.ConsecutiveFails = 0
	health.LastError = ""
	health.LastHealthy = health.LastCheck
}

// defaultHealthCheck issues GET {url}/api/health and expects 200.
func (h *HealthMonitor) defaultHealthCheck(ctx context.Context, hub HubDescriptor) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hub.HealthURL(), nil)
	if err != nil {
		return err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// HubHealth returns a copy of the named hub's record, or nil when the hub is
// not monitored.
func (h *HealthMonitor) HubHealth(name string) *HubHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	health, exists := h.hubs[name]
	if !exists {
		return nil
	}
	cp := *health
	return &cp
}

// AllHubHealth returns copies of every monitored hub's record.
func (h *HealthMonitor) AllHubHealth() map[string]*HubHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make(map[string]*HubHealth, len(h.hubs))
	for name, health := range h.hubs {
		cp := *health
		result[name] = &cp
	}
	return result
}

// IsHealthy reports whether the named hub passed its last probes.
func (h *HealthMonitor) IsHealthy(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	health, exists := h.hubs[name]
	return exists && health.Status == HealthHealthy
}
