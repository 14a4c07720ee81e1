package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dreamware/solarnet/internal/resource"
)

func sampleRecords() []resource.Record {
	return []resource.Record{
		{ID: "t1", Name: "Hand Saw", Type: resource.TypeTool, Classification: "Hand Tools", Status: resource.StatusAvailable},
		{ID: "t2", Name: "Drill", Type: resource.TypeTool, Classification: "Power Tools", Status: resource.StatusInUse},
		{ID: "f1", Name: "Tomatoes", Type: resource.TypeFood, Classification: "hand tools", Status: resource.StatusAvailable},
	}
}

// stores runs a test body against every Store implementation.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resources.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))
	fs, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
	}
}

func TestStoreAddGetList(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, r := range sampleRecords() {
				_, err := store.Add(r)
				require.NoError(t, err)
			}
			assert.Equal(t, 3, store.Len())

			got, err := store.Get("t2")
			require.NoError(t, err)
			assert.Equal(t, "Drill", got.Name)

			_, err = store.Get("nope")
			assert.ErrorIs(t, err, ErrNotFound)

			all, err := store.List()
			require.NoError(t, err)
			assert.Equal(t, []string{"t1", "t2", "f1"}, ids(all), "insertion order is kept")
		})
	}
}

func TestStoreAddRequiresFields(t *testing.T) {
	tests := []struct {
		name   string
		record resource.Record
		field  string
	}{
		{"id", resource.Record{Name: "x", Type: resource.TypeTool}, "id"},
		{"name", resource.Record{ID: "x", Type: resource.TypeTool}, "name"},
		{"type", resource.Record{ID: "x", Name: "x"}, "type"},
	}
	for storeName, store := range stores(t) {
		for _, tt := range tests {
			t.Run(storeName+"/"+tt.name, func(t *testing.T) {
				_, err := store.Add(tt.record)
				require.ErrorIs(t, err, ErrMissingField)
				assert.Contains(t, err.Error(), tt.field)
				assert.Zero(t, store.Len())
			})
		}
	}
}

func TestQueryApply(t *testing.T) {
	records := sampleRecords()

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"empty", Query{}, []string{"t1", "t2", "f1"}},
		{"type", Query{Type: resource.TypeTool}, []string{"t1", "t2"}},
		{"available", Query{AvailableOnly: true}, []string{"t1", "f1"}},
		{"classification ignores case", Query{Classification: "HAND TOOLS"}, []string{"t1", "f1"}},
		{"classification is exact", Query{Classification: "Hand"}, []string{}},
		{"combined", Query{Type: resource.TypeTool, AvailableOnly: true}, []string{"t1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.query.Apply(records)))
		})
	}
}

// TestFileStoreSeedsExample verifies a missing file is created with one
// example record.
func TestFileStoreSeedsExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.json")

	store, err := NewFileStore(path, nil)
	require.NoError(t, err)
	assert.FileExists(t, path)

	all, err := store.List()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, ExampleRecord(), all[0])
	assert.Equal(t, "item", all[0].Unit)
}

// TestFileStoreInvalidJSON verifies a corrupt file loads as empty with a warning.
func TestFileStoreInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	core, logs := observer.New(zap.WarnLevel)
	store, err := NewFileStore(path, zap.New(core))
	require.NoError(t, err)

	all, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.NotNil(t, all)
	assert.Equal(t, 1, logs.FilterMessageSnippet("invalid JSON").Len())
}

// TestFileStoreAddKeepsExistingEntries verifies appending leaves every
// existing element in place byte for byte, including fields of unexpected
// types and fields no Record field models.
func TestFileStoreAddKeepsExistingEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.json")
	existing := `{"id": "a", "name": "Seed Library", "type": "food",
    "primaryAccountable": "alice", "currentQuantity": "2"}`
	require.NoError(t, os.WriteFile(path, []byte("[\n  "+existing+"\n]\n"), 0o644))

	store, err := NewFileStore(path, nil)
	require.NoError(t, err)

	all, err := store.List()
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].CurrentQuantity)
	assert.Equal(t, 2.0, *all[0].CurrentQuantity)

	added := resource.Record{
		ID: "b", Name: "Wheelbarrow", Type: resource.TypeTool,
		Extra: map[string]json.RawMessage{"custodian": json.RawMessage(`{"name":"bob"}`)},
	}
	stored, err := store.Add(added)
	require.NoError(t, err)
	assert.Equal(t, added, stored)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), existing), "existing entry rewritten:\n%s", data)

	var onDisk []map[string]any
	require.NoError(t, json.Unmarshal(data, &onDisk))
	require.Len(t, onDisk, 2)
	assert.Equal(t, "alice", onDisk[0]["primaryAccountable"])
	assert.Equal(t, "2", onDisk[0]["currentQuantity"])
	assert.Equal(t, map[string]any{"name": "bob"}, onDisk[1]["custodian"])
	assert.Equal(t, 2, store.Len())
}

// TestFileStoreSkipsUnreadableEntries verifies an element that is not a
// record object is hidden from reads but kept on disk.
func TestFileStoreSkipsUnreadableEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":42,"name":"Ladder","type":"tool"}, "stray note"]`), 0o644))

	core, logs := observer.New(zap.WarnLevel)
	store, err := NewFileStore(path, zap.New(core))
	require.NoError(t, err)

	got, err := store.Get("42")
	require.NoError(t, err)
	assert.Equal(t, "Ladder", got.Name)
	assert.Equal(t, 1, logs.FilterMessage("skipping catalog entry").Len())

	_, err = store.Add(resource.Record{ID: "c", Name: "Rope", Type: resource.TypeTool})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stray note"`)
	assert.Equal(t, 2, store.Len())
}

// TestFileStoreAddRefusesCorruptFile verifies a file that does not parse is
// never overwritten.
func TestFileStoreAddRefusesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.json")
	corrupt := []byte(`[{"id":"a","name":"Saw","type":"tool"},`)
	require.NoError(t, os.WriteFile(path, corrupt, 0o644))

	store, err := NewFileStore(path, nil)
	require.NoError(t, err)

	_, err = store.Add(resource.Record{ID: "b", Name: "Rope", Type: resource.TypeTool})
	require.ErrorIs(t, err, ErrCorrupt)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, corrupt, data)
}

// TestFileStorePersists verifies records survive reopening and hand edits
// are picked up.
func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))

	first, err := NewFileStore(path, nil)
	require.NoError(t, err)
	_, err = first.Add(resource.Record{ID: "w1", Name: "Rain Barrel", Type: resource.TypeWater, CurrentQuantity: resource.Quantity(200), Unit: "liters"})
	require.NoError(t, err)

	second, err := NewFileStore(path, nil)
	require.NoError(t, err)
	got, err := second.Get("w1")
	require.NoError(t, err)
	require.NotNil(t, got.CurrentQuantity)
	assert.Equal(t, 200.0, *got.CurrentQuantity)

	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"e1","name":"Edited","type":"energy"}]`), 0o644))
	assert.Equal(t, 1, first.Len())
	got, err = first.Get("e1")
	require.NoError(t, err)
	assert.Equal(t, resource.TypeEnergy, got.Type)
}

func TestMemoryStoreConcurrency(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("r%d", i)
			_, err := store.Add(resource.Record{ID: id, Name: id, Type: resource.TypeSkill})
			assert.NoError(t, err)
			_, _ = store.List()
			_, _ = store.Get(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, store.Len())
}

func TestMemoryStoreSeedIsCopied(t *testing.T) {
	seed := sampleRecords()
	store := NewMemoryStore(seed...)
	seed[0].Name = "changed"

	got, err := store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "Hand Saw", got.Name)
}

func ids(records []resource.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}
