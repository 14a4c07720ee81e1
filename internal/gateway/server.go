package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dreamware/solarnet/internal/federation"
	"github.com/dreamware/solarnet/internal/registry"
	"github.com/dreamware/solarnet/internal/render"
	"github.com/dreamware/solarnet/internal/resource"
)

// MaxTimeout caps the per-hub timeout a caller may request.
const MaxTimeout = time.Minute

// Searcher runs one federated search. *federation.Aggregator satisfies it.
type Searcher interface {
	Search(ctx context.Context, hubs []federation.HubDescriptor, filter resource.Filter, timeoutPerHub time.Duration) (*federation.FederatedResult, error)
}

// Config tunes the gateway.
type Config struct {
	// DefaultTimeout applies when a request names no timeout.
	DefaultTimeout time.Duration
}

// HubStatus is one entry of GET /hubs.
type HubStatus struct {
	federation.HubDescriptor
	Health *federation.HubHealth `json:"health,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server runs federated searches for remote callers over a fixed registry.
type Server struct {
	registry *registry.Registry
	searcher Searcher
	monitor  *federation.HealthMonitor
	metrics  *federation.Metrics
	cfg      Config
	logger   *zap.Logger
	mux      *http.ServeMux
}

// NewServer wires the gateway routes. monitor and metrics may be nil; /hubs
// then omits health and /metrics is not mounted.
func NewServer(reg *registry.Registry, searcher Searcher, monitor *federation.HealthMonitor, metrics *federation.Metrics, cfg Config, logger *zap.Logger) *Server {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = federation.DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		registry: reg,
		searcher: searcher,
		monitor:  monitor,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "gateway")),
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/search", s.handleSearch)
	s.mux.HandleFunc("GET /hubs", s.handleHubs)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if metrics != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	typ, err := resource.ParseType(params.Get("type"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	timeout, err := parseTimeout(params.Get("timeout"), s.cfg.DefaultTimeout)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	filter := resource.Filter{Type: typ, Text: params.Get("query")}
	result, err := s.searcher.Search(r.Context(), s.registry.Hubs(), filter, timeout)
	if err != nil {
		status := http.StatusInternalServerError
		if isConfigError(err) {
			status = http.StatusBadRequest
		}
		s.logger.Warn("search rejected", zap.Error(err))
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := render.JSON(w, result); err != nil {
		s.logger.Error("write search result", zap.Error(err))
	}
}

func (s *Server) handleHubs(w http.ResponseWriter, _ *http.Request) {
	hubs := s.registry.Hubs()
	out := make([]HubStatus, len(hubs))
	for i, h := range hubs {
		out[i] = HubStatus{HubDescriptor: h}
		if s.monitor != nil {
			out[i].Health = s.monitor.HubHealth(h.Name)
		}
	}
	writeJSON(w, http.StatusOK, struct {
		Hubs []HubStatus `json:"hubs"`
	}{Hubs: out})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := struct {
		Status      string `json:"status"`
		Hubs        int    `json:"hubs"`
		HealthyHubs *int   `json:"healthy_hubs,omitempty"`
	}{Status: "ok", Hubs: s.registry.Len()}

	if s.monitor != nil {
		healthy := 0
		for _, h := range s.registry.Hubs() {
			if s.monitor.IsHealthy(h.Name) {
				healthy++
			}
		}
		resp.HealthyHubs = &healthy
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseTimeout accepts a Go duration ("750ms") or whole seconds ("3").
func parseTimeout(raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		secs, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, fmt.Errorf("invalid timeout %q", raw)
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 || d > MaxTimeout {
		return 0, fmt.Errorf("timeout must be in (0, %s]", MaxTimeout)
	}
	return d, nil
}

func isConfigError(err error) bool {
	return errors.Is(err, federation.ErrEmptyRegistry) ||
		errors.Is(err, federation.ErrInvalidHub) ||
		errors.Is(err, federation.ErrDuplicateHub) ||
		errors.Is(err, resource.ErrInvalidType)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
