package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dreamware/solarnet/internal/catalog"
	"github.com/dreamware/solarnet/internal/resource"
)

func seed() []resource.Record {
	return []resource.Record{
		{ID: "t1", Name: "Hand Saw", Type: resource.TypeTool, Classification: "Hand Tools", Status: resource.StatusAvailable},
		{ID: "t2", Name: "Drill", Type: resource.TypeTool, Classification: "Power Tools", Status: resource.StatusInUse},
		{ID: "f1", Name: "Tomatoes", Type: resource.TypeFood, Classification: "Vegetables", Status: resource.StatusAvailable,
			CurrentQuantity: resource.Quantity(2.5), Unit: "kg"},
	}
}

func newTestServer(t *testing.T, records ...resource.Record) (*Server, *Metrics) {
	t.Helper()
	metrics := NewMetrics()
	s := NewServer(catalog.NewMemoryStore(records...), zap.NewNop(), metrics)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s, metrics
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// TestListResources covers the server-side query parameters.
func TestListResources(t *testing.T) {
	s, _ := newTestServer(t, seed()...)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all", "", []string{"t1", "t2", "f1"}},
		{"type", "?type=tool", []string{"t1", "t2"}},
		{"unknown type", "?type=spaceship", []string{}},
		{"available", "?available=true", []string{"t1", "f1"}},
		{"available false ignored", "?available=false", []string{"t1", "t2", "f1"}},
		{"classification", "?classification=power%20tools", []string{"t2"}},
		{"combined", "?type=food&available=true", []string{"f1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodGet, "/api/resources"+tt.query, "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			body := decode[ListResponse](t, w)
			assert.Equal(t, ValueFlowsContext, body.Context)
			assert.Equal(t, "2026-03-01T12:00:00Z", body.Timestamp)
			got := make([]string, 0, len(body.Resources))
			for _, r := range body.Resources {
				got = append(got, r.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestListEmptyCatalog verifies an empty catalog serializes as [] not null.
func TestListEmptyCatalog(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/api/resources", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"resources":[]`)
}

func TestGetResource(t *testing.T) {
	s, _ := newTestServer(t, seed()...)

	w := do(t, s, http.MethodGet, "/api/resources/f1", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[ItemResponse](t, w)
	assert.Equal(t, ValueFlowsContext, body.Context)
	assert.Equal(t, "Tomatoes", body.Resource.Name)
	require.NotNil(t, body.Resource.CurrentQuantity)
	assert.Equal(t, 2.5, *body.Resource.CurrentQuantity)

	w = do(t, s, http.MethodGet, "/api/resources/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Resource not found", decode[ErrorResponse](t, w).Error)
}

func TestAddResource(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantError string
	}{
		{"created", `{"id":"s1","name":"Bike Repair","type":"skill"}`, http.StatusCreated, ""},
		{"invalid json", `{"id":`, http.StatusBadRequest, "JSON body required"},
		{"empty object", `{}`, http.StatusBadRequest, "JSON body required"},
		{"array", `[{"id":"x"}]`, http.StatusBadRequest, "JSON body required"},
		{"missing id", `{"name":"x","type":"tool"}`, http.StatusBadRequest, "Missing required field: id"},
		{"missing name", `{"id":"x","type":"tool"}`, http.StatusBadRequest, "Missing required field: name"},
		{"missing type", `{"id":"x","name":"x"}`, http.StatusBadRequest, "Missing required field: type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			w := do(t, s, http.MethodPost, "/api/resources", tt.body)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decode[ErrorResponse](t, w).Error)
				assert.Zero(t, s.store.Len())
				return
			}
			body := decode[AddResponse](t, w)
			assert.Equal(t, "Resource added successfully", body.Message)
			assert.Equal(t, "Bike Repair", body.Resource.Name)
			assert.Equal(t, 1, s.store.Len())
		})
	}
}

// TestAddThenGetPersists round-trips a record through a file-backed hub.
func TestAddThenGetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))
	store, err := catalog.NewFileStore(path, nil)
	require.NoError(t, err)
	s := NewServer(store, nil, nil)

	w := do(t, s, http.MethodPost, "/api/resources",
		`{"id":"w1","name":"Rain Barrel","type":"water","currentQuantity":200,"unit":"liters","status":"available"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, s, http.MethodGet, "/api/resources/w1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "liters", decode[ItemResponse](t, w).Resource.Unit)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Rain Barrel")
}

// TestAddKeepsOtherFields verifies a POST neither strips fields the hub does
// not model from existing records nor from the posted one.
func TestAddKeepsOtherFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`[{"id":"a","name":"Saw","type":"tool","primaryAccountable":"alice"}]`), 0o644))
	store, err := catalog.NewFileStore(path, nil)
	require.NoError(t, err)
	s := NewServer(store, nil, nil)

	w := do(t, s, http.MethodPost, "/api/resources",
		`{"id":"b","name":"Ladder","type":"tool","vf:accountingQuantity":{"hasNumericalValue":1}}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var added struct {
		Resource map[string]any `json:"resource"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &added))
	assert.Equal(t, map[string]any{"hasNumericalValue": 1.0}, added.Resource["vf:accountingQuantity"])

	w = do(t, s, http.MethodGet, "/api/resources", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Resources []map[string]any `json:"resources"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Resources, 2)
	assert.Equal(t, "alice", list.Resources[0]["primaryAccountable"])
	assert.Contains(t, list.Resources[1], "vf:accountingQuantity")
}

// TestAddToCorruptCatalog verifies a hub refuses to append to a file it
// cannot parse.
func TestAddToCorruptCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))
	store, err := catalog.NewFileStore(path, nil)
	require.NoError(t, err)

	w := do(t, NewServer(store, nil, nil), http.MethodPost, "/api/resources", `{"id":"b","name":"Rope","type":"tool"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(raw))
}

func TestHealthAndHome(t *testing.T) {
	s, _ := newTestServer(t, seed()...)

	w := do(t, s, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 3, health.ResourcesCount)

	w = do(t, s, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	home := decode[map[string]any](t, w)
	assert.Equal(t, "Solarpunk Community Hub - ValueFlows API", home["message"])
	assert.Contains(t, home["endpoints"], "/api/resources")

	w = do(t, s, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodDelete, "/api/resources", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServerMetrics(t *testing.T) {
	s, metrics := newTestServer(t, seed()...)

	do(t, s, http.MethodGet, "/api/resources", "")
	do(t, s, http.MethodGet, "/api/resources/nope", "")
	do(t, s, http.MethodPost, "/api/resources", `{"id":"x","name":"x","type":"tool"}`)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("list", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("get", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ResourcesAdded))

	w := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "solarnet_hub_http_requests_total")
}

// TestClient drives the management client against a live server.
func TestClient(t *testing.T) {
	s, _ := newTestServer(t, seed()...)
	ts := httptest.NewServer(s)
	defer ts.Close()

	client := NewClient(ts.URL+"/", time.Second)
	ctx := context.Background()

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, health.ResourcesCount)

	added, err := client.AddResource(ctx, resource.Record{ID: "k:1", Name: "Permaculture Book", Type: resource.TypeKnowledge})
	require.NoError(t, err)
	assert.Equal(t, "Permaculture Book", added.Name)

	got, err := client.GetResource(ctx, "k:1")
	require.NoError(t, err)
	assert.Equal(t, resource.TypeKnowledge, got.Type)

	_, err = client.GetResource(ctx, "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Resource not found", apiErr.Message)

	_, err = client.AddResource(ctx, resource.Record{ID: "x", Name: "x"})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Missing required field: type", apiErr.Message)
}
