package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dreamware/solarnet/internal/catalog"
	"github.com/dreamware/solarnet/internal/federation"
	"github.com/dreamware/solarnet/internal/gateway"
	"github.com/dreamware/solarnet/internal/hub"
	"github.com/dreamware/solarnet/internal/registry"
	"github.com/dreamware/solarnet/internal/resource"
)

// TestSystem is a small federation running in-process: two file-backed hubs,
// one hub that never answers in time, one that answers garbage, and a
// gateway in front of all four.
type TestSystem struct {
	t        *testing.T
	hubs     map[string]*httptest.Server
	stores   map[string]*catalog.FileStore
	registry *registry.Registry
	gateway  *httptest.Server
	monitor  *federation.HealthMonitor
	release  chan struct{}
}

func NewTestSystem(t *testing.T) *TestSystem {
	t.Helper()
	ts := &TestSystem{
		t:       t,
		hubs:    make(map[string]*httptest.Server),
		stores:  make(map[string]*catalog.FileStore),
		release: make(chan struct{}),
	}

	ts.startHub("Oakland Hub", `[
		{"id":"oak:1","name":"Hand Saw","type":"tool","classification":"Hand Tools","status":"available","currentLocation":"Tool Library","currentQuantity":1,"unit":"item"},
		{"id":"oak:2","name":"Tomato Seedlings","type":"food","classification":"Seedlings","status":"available","currentQuantity":24}
	]`)
	ts.startHub("Berkeley Hub", `[
		{"id":"brk:1","name":"Cordless Drill","type":"tool","classification":"Power Tools","status":"in_use"},
		{"id":"brk:2","name":"Solar Battery Bank","type":"energy","currentQuantity":5.5,"unit":"kWh"}
	]`)

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ts.release:
		case <-r.Context().Done():
		}
	}))
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	ts.hubs["Slow Hub"] = slow
	ts.hubs["Broken Hub"] = broken

	reg, err := registry.New(
		federation.HubDescriptor{Name: "Oakland Hub", URL: ts.hubs["Oakland Hub"].URL, Communication: map[string]string{"meshtastic_channel": "OakMesh"}},
		federation.HubDescriptor{Name: "Slow Hub", URL: slow.URL},
		federation.HubDescriptor{Name: "Berkeley Hub", URL: ts.hubs["Berkeley Hub"].URL},
		federation.HubDescriptor{Name: "Broken Hub", URL: broken.URL},
	)
	require.NoError(t, err)
	ts.registry = reg

	logger := zap.NewNop()
	metrics := federation.NewMetrics()
	client := federation.NewClient(federation.DefaultClientConfig(), logger, metrics)
	agg := federation.NewAggregator(client, federation.AggregatorConfig{}, logger, metrics)
	ts.monitor = federation.NewHealthMonitor(time.Hour, logger, metrics)
	ts.gateway = httptest.NewServer(gateway.NewServer(reg, agg, ts.monitor, metrics,
		gateway.Config{DefaultTimeout: 300 * time.Millisecond}, logger))

	t.Cleanup(ts.Stop)
	return ts
}

func (ts *TestSystem) startHub(name, catalogJSON string) {
	path := filepath.Join(ts.t.TempDir(), "resources.json")
	require.NoError(ts.t, os.WriteFile(path, []byte(catalogJSON), 0o644))
	store, err := catalog.NewFileStore(path, zap.NewNop())
	require.NoError(ts.t, err)
	ts.stores[name] = store
	ts.hubs[name] = httptest.NewServer(hub.NewServer(store, zap.NewNop(), hub.NewMetrics()))
}

func (ts *TestSystem) Stop() {
	close(ts.release)
	ts.gateway.Close()
	ts.monitor.Stop()
	for _, s := range ts.hubs {
		s.Close()
	}
}

func (ts *TestSystem) Search(query string) *federation.FederatedResult {
	ts.t.Helper()
	resp, err := http.Get(ts.gateway.URL + "/api/search" + query)
	require.NoError(ts.t, err)
	defer resp.Body.Close()
	require.Equal(ts.t, http.StatusOK, resp.StatusCode)

	var result federation.FederatedResult
	require.NoError(ts.t, json.NewDecoder(resp.Body).Decode(&result))
	return &result
}

func TestFederation(t *testing.T) {
	ts := NewTestSystem(t)

	t.Run("AllResources", func(t *testing.T) { testAllResources(t, ts) })
	t.Run("TypeAndTextFilters", func(t *testing.T) { testFilters(t, ts) })
	t.Run("AddedResourceIsSearchable", func(t *testing.T) { testAddThenSearch(t, ts) })
	t.Run("Idempotent", func(t *testing.T) { testIdempotent(t, ts) })
	t.Run("HealthCheck", func(t *testing.T) { testHealth(t, ts) })
}

func testAllResources(t *testing.T, ts *TestSystem) {
	start := time.Now()
	result := ts.Search("")
	elapsed := time.Since(start)

	assert.Equal(t, []string{"Oakland Hub", "Slow Hub", "Berkeley Hub", "Broken Hub"}, result.Names())
	assert.Equal(t, 4, result.TotalCount)

	slow, _ := result.Outcome("Slow Hub")
	assert.Equal(t, federation.OutcomeTimeout, slow.Kind)
	broken, _ := result.Outcome("Broken Hub")
	assert.Equal(t, federation.OutcomeProtocolError, broken.Kind)

	assert.Less(t, elapsed, 2*time.Second, "a slow hub costs one timeout, not a sum")
}

func testFilters(t *testing.T, ts *TestSystem) {
	result := ts.Search("?type=tool")
	assert.Equal(t, 2, result.TotalCount)

	result = ts.Search("?query=SAW&timeout=200ms")
	require.Equal(t, 1, result.TotalCount)
	oak, _ := result.Outcome("Oakland Hub")
	assert.Equal(t, "Hand Saw", oak.Records[0].Name)

	resp, err := http.Get(ts.gateway.URL + "/api/search?type=spaceship")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func testAddThenSearch(t *testing.T, ts *TestSystem) {
	client := hub.NewClient(ts.hubs["Berkeley Hub"].URL, time.Second)
	_, err := client.AddResource(context.Background(), resource.Record{
		ID: "brk:3", Name: "Rain Barrel", Type: resource.TypeWater, Status: resource.StatusAvailable,
		CurrentQuantity: resource.Quantity(200), Unit: "liters",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, ts.stores["Berkeley Hub"].Len())

	result := ts.Search("?type=water")
	require.Equal(t, 1, result.TotalCount)
	brk, _ := result.Outcome("Berkeley Hub")
	assert.Equal(t, "Rain Barrel", brk.Records[0].Name)
}

func testIdempotent(t *testing.T, ts *TestSystem) {
	first := ts.Search("?type=food&timeout=100ms")
	second := ts.Search("?type=food&timeout=100ms")
	assert.Equal(t, first, second)
}

func testHealth(t *testing.T, ts *TestSystem) {
	ts.monitor.CheckAll(context.Background(), ts.registry.Hubs())

	for _, name := range []string{"Oakland Hub", "Berkeley Hub"} {
		h := ts.monitor.HubHealth(name)
		require.NotNil(t, h, name)
		assert.Zero(t, h.ConsecutiveFails, name)
	}
	// The broken hub answers 200 on every path, so only the slow one fails.
	assert.Equal(t, 1, ts.monitor.HubHealth("Slow Hub").ConsecutiveFails)

	resp, err := http.Get(ts.gateway.URL + "/hubs")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Hubs []gateway.HubStatus `json:"hubs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Hubs, 4)
	assert.Equal(t, "OakMesh", body.Hubs[0].Communication["meshtastic_channel"])
	assert.NotNil(t, body.Hubs[0].Health, fmt.Sprintf("%+v", body.Hubs[0]))
}
