package hub

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dreamware/solarnet/internal/catalog"
	"github.com/dreamware/solarnet/internal/resource"
)

// ValueFlowsContext is the JSON-LD context attached to catalog responses.
const ValueFlowsContext = "https://w3id.org/valueflows/ont/vf#"

// maxRequestBytes bounds POST bodies.
const maxRequestBytes = 1 << 20

// ListResponse is the body of GET /api/resources.
type ListResponse struct {
	Context   string            `json:"@context"`
	Timestamp string            `json:"timestamp"`
	Resources []resource.Record `json:"resources"`
}

// ItemResponse is the body of GET /api/resources/{id}.
type ItemResponse struct {
	Context  string          `json:"@context"`
	Resource resource.Record `json:"resource"`
}

// AddResponse is the body of a successful POST /api/resources.
type AddResponse struct {
	Message  string          `json:"message"`
	Resource resource.Record `json:"resource"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status         string `json:"status"`
	Timestamp      string `json:"timestamp"`
	ResourcesCount int    `json:"resources_count"`
}

// ErrorResponse is the body of every 4xx and 5xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server exposes one catalog over HTTP.
type Server struct {
	store   catalog.Store
	logger  *zap.Logger
	metrics *Metrics
	mux     *http.ServeMux
	now     func() time.Time
}

// NewServer wires the hub routes around store. A nil logger or metrics
// disables that concern; /metrics is only mounted when metrics is non-nil.
func NewServer(store catalog.Store, logger *zap.Logger, metrics *Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:   store,
		logger:  logger.With(zap.String("component", "hub")),
		metrics: metrics,
		mux:     http.NewServeMux(),
		now:     time.Now,
	}

	s.mux.HandleFunc("GET /{$}", metrics.instrument("home", s.handleHome))
	s.mux.HandleFunc("GET /api/health", metrics.instrument("health", s.handleHealth))
	s.mux.HandleFunc("GET /api/resources", metrics.instrument("list", s.handleList))
	s.mux.HandleFunc("POST /api/resources", metrics.instrument("add", s.handleAdd))
	s.mux.HandleFunc("GET /api/resources/{id}", metrics.instrument("get", s.handleGet))
	if metrics != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) timestamp() string {
	return s.now().Format(time.RFC3339)
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Solarpunk Community Hub - ValueFlows API",
		"version": "1.0",
		"endpoints": map[string]string{
			"/api/resources":                    "GET - List all resources",
			"/api/resources?type=tool":          "GET - Filter by type",
			"/api/resources?available=true":     "GET - Filter by availability",
			"/api/resources?classification=...": "GET - Filter by classification",
			"/api/resources/{id}":               "GET - Fetch one resource",
			"/api/health":                       "GET - Health check",
			"POST /api/resources":               "Add a resource (id, name and type required)",
		},
		"documentation": "https://w3id.org/valueflows/ont/vf",
		"timestamp":     s.timestamp(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		Timestamp:      s.timestamp(),
		ResourcesCount: s.store.Len(),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List()
	if err != nil {
		s.internalError(w, "list resources", err)
		return
	}

	params := r.URL.Query()
	q := catalog.Query{
		Type:           resource.Type(params.Get("type")),
		AvailableOnly:  params.Get("available") == "true",
		Classification: params.Get("classification"),
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Context:   ValueFlowsContext,
		Timestamp: s.timestamp(),
		Resources: q.Apply(records),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.PathValue("id"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Resource not found"})
		return
	}
	if err != nil {
		s.internalError(w, "get resource", err)
		return
	}
	writeJSON(w, http.StatusOK, ItemResponse{Context: ValueFlowsContext, Resource: rec})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "JSON body required"})
		return
	}

	// An empty object counts as no body.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "JSON body required"})
		return
	}

	var rec resource.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid resource: " + err.Error()})
		return
	}

	stored, err := s.store.Add(rec)
	var missing *catalog.MissingFieldError
	if errors.As(err, &missing) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Missing required field: " + missing.Field})
		return
	}
	if err != nil {
		s.internalError(w, "add resource", err)
		return
	}

	s.metrics.resourceAdded()
	s.logger.Info("resource added",
		zap.String("id", stored.ID),
		zap.String("name", stored.Name),
		zap.String("type", string(stored.Type)))

	writeJSON(w, http.StatusCreated, AddResponse{Message: "Resource added successfully", Resource: stored})
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
