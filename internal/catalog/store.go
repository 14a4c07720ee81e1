package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/dreamware/solarnet/internal/resource"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("resource not found")
	// ErrMissingField is returned when a record lacks id, name or type.
	ErrMissingField = errors.New("missing required field")
	// ErrCorrupt is returned by FileStore.Add when the catalog file is not a
	// JSON array. The file is left untouched.
	ErrCorrupt = errors.New("catalog file is not a JSON array")
)

// Store holds one hub's flat list of resource records.
// All implementations must be safe for concurrent access.
type Store interface {
	// List returns every record in insertion order.
	List() ([]resource.Record, error)

	// Get returns the first record with the given id.
	// Returns ErrNotFound if there is none.
	Get(id string) (resource.Record, error)

	// Add appends a record. The record must carry id, name and type.
	Add(r resource.Record) (resource.Record, error)

	// Len returns the number of records.
	Len() int
}

// Query narrows a listing the way the hub's HTTP API does.
type Query struct {
	Type           resource.Type
	AvailableOnly  bool
	Classification string
}

// Apply filters records by q, preserving order. Classification matches
// exactly, ignoring case.
func (q Query) Apply(records []resource.Record) []resource.Record {
	out := make([]resource.Record, 0, len(records))
	for _, r := range records {
		if q.Type != "" && r.Type != q.Type {
			continue
		}
		if q.AvailableOnly && r.Status != resource.StatusAvailable {
			continue
		}
		if q.Classification != "" && !strings.EqualFold(r.Classification, q.Classification) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// MissingFieldError names the first required field a record lacks.
// It matches ErrMissingField under errors.Is.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string { return "missing required field: " + e.Field }

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// CheckRequired verifies the fields a hub insists on when adding a record.
func CheckRequired(r resource.Record) error {
	switch {
	case r.ID == "":
		return &MissingFieldError{Field: "id"}
	case r.Name == "":
		return &MissingFieldError{Field: "name"}
	case r.Type == "":
		return &MissingFieldError{Field: "type"}
	}
	return nil
}

// MemoryStore keeps records in memory only.
type MemoryStore struct {
	mu      sync.RWMutex
	records []resource.Record
}

// NewMemoryStore creates a store holding a copy of seed.
func NewMemoryStore(seed ...resource.Record) *MemoryStore {
	return &MemoryStore{records: append([]resource.Record(nil), seed...)}
}

func (m *MemoryStore) List() ([]resource.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]resource.Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *MemoryStore) Get(id string) (resource.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return find(m.records, id)
}

func (m *MemoryStore) Add(r resource.Record) (resource.Record, error) {
	if err := CheckRequired(r); err != nil {
		return resource.Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return r, nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// FileStore persists the record list as a JSON array. The file is re-read on
// every call so hand edits are picked up without a restart. Existing array
// elements are written back byte for byte when a record is appended, so
// fields this package does not model survive.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// ExampleRecord seeds a catalog file that does not exist yet.
func ExampleRecord() resource.Record {
	return resource.Record{
		ID:              "example:tool-001",
		Name:            "Example Tool",
		Type:            resource.TypeTool,
		Classification:  "Hand Tools",
		CurrentLocation: "Community Hub",
		Status:          resource.StatusAvailable,
		CurrentQuantity: resource.Quantity(1),
		Unit:            resource.DefaultUnit,
		Note:            "Replace this with real resources!",
	}
}

// NewFileStore opens the catalog at path, creating it with ExampleRecord when
// it does not exist.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fs := &FileStore{path: path, logger: logger.With(zap.String("component", "catalog"))}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fs.logger.Info("catalog file missing, seeding example", zap.String("path", path))
		seed, err := encodeEntry(ExampleRecord())
		if err != nil {
			return nil, err
		}
		if err := fs.write([]json.RawMessage{seed}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat catalog: %w", err)
	}
	return fs, nil
}

// Path returns the backing file.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) List() ([]resource.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *FileStore) Get(id string) (resource.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.load()
	if err != nil {
		return resource.Record{}, err
	}
	return find(records, id)
}

// Add appends r to the file. It returns ErrCorrupt instead of replacing a
// file it cannot parse.
func (f *FileStore) Add(r resource.Record) (resource.Record, error) {
	if err := CheckRequired(r); err != nil {
		return resource.Record{}, err
	}
	entry, err := encodeEntry(r)
	if err != nil {
		return resource.Record{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.readEntries()
	if err != nil {
		return resource.Record{}, err
	}
	if err := f.write(append(entries, entry)); err != nil {
		return resource.Record{}, err
	}
	return r, nil
}

func (f *FileStore) Len() int {
	records, err := f.List()
	if err != nil {
		return 0
	}
	return len(records)
}

// readEntries returns the raw array elements as they appear in the file.
func (f *FileStore) readEntries() ([]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return entries, nil
}

// load decodes the file for reading. A corrupt file reads as an empty
// catalog; an element that is not an object is skipped.
func (f *FileStore) load() ([]resource.Record, error) {
	entries, err := f.readEntries()
	if errors.Is(err, ErrCorrupt) {
		f.logger.Warn("catalog file is invalid JSON, using empty list",
			zap.String("path", f.path), zap.Error(err))
		return []resource.Record{}, nil
	}
	if err != nil {
		return nil, err
	}

	records := make([]resource.Record, 0, len(entries))
	for i, raw := range entries {
		var r resource.Record
		if err := json.Unmarshal(raw, &r); err != nil {
			f.logger.Warn("skipping catalog entry",
				zap.String("path", f.path), zap.Int("index", i), zap.Error(err))
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// write replaces the file atomically through a temp file in the same
// directory. Entries are emitted verbatim, one per line of the array.
func (f *FileStore) write(entries []json.RawMessage) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n  ")
		buf.Write(e)
	}
	if len(entries) > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteString("]\n")

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}

// encodeEntry renders r indented to sit inside the top-level array.
func encodeEntry(r resource.Record) (json.RawMessage, error) {
	data, err := json.MarshalIndent(r, "  ", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode resource: %w", err)
	}
	return data, nil
}

func find(records []resource.Record, id string) (resource.Record, error) {
	idx := slices.IndexFunc(records, func(r resource.Record) bool { return r.ID == id })
	if idx < 0 {
		return resource.Record{}, ErrNotFound
	}
	return records[idx], nil
}
