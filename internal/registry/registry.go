// Package registry loads the ordered list of federation hubs a search runs
// against. The list is read once per invocation and never mutated afterwards.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/dreamware/solarnet/internal/federation"
)

// Example is printed to operators when no usable registry file exists.
const Example = `{
  "nodes": [
    {
      "name": "Oakland Hub",
      "url": "http://192.168.1.100:8081",
      "location": "Oakland, CA"
    },
    {
      "name": "Berkeley Hub",
      "url": "http://192.168.1.101:8081",
      "location": "Berkeley, CA",
      "communication": {"meshtastic_channel": "BerkeleyMesh"}
    }
  ]
}`

// document is the on-disk shape: {"nodes": [...]}.
type document struct {
	Nodes []federation.HubDescriptor `json:"nodes" yaml:"nodes"`
}

// Registry is an immutable, validated, ordered list of hubs.
type Registry struct {
	hubs []federation.HubDescriptor
}

// New validates hubs and returns a registry preserving their order. Base URLs
// without a scheme are assumed to be http.
func New(hubs ...federation.HubDescriptor) (*Registry, error) {
	normalized := make([]federation.HubDescriptor, len(hubs))
	for i, h := range hubs {
		h.Name = strings.TrimSpace(h.Name)
		h.URL = normalizeURL(h.URL)
		normalized[i] = h
	}
	if err := federation.ValidateHubs(normalized); err != nil {
		return nil, err
	}
	return &Registry{hubs: normalized}, nil
}

// Load reads a registry file. Files ending in .json, or whose content starts
// with '{', are decoded as JSON; anything else as YAML.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	reg, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes and validates a registry document.
func Parse(data []byte, isJSON bool) (*Registry, error) {
	var doc document
	trimmed := bytes.TrimSpace(data)
	if isJSON || bytes.HasPrefix(trimmed, []byte("{")) {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("invalid registry JSON: %w", err)
		}
	} else if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("invalid registry YAML: %w", err)
	}
	return New(doc.Nodes...)
}

// Hubs returns a copy of the hub list in registry order.
func (r *Registry) Hubs() []federation.HubDescriptor {
	out := make([]federation.HubDescriptor, len(r.hubs))
	copy(out, r.hubs)
	return out
}

// Len is the number of hubs.
func (r *Registry) Len() int { return len(r.hubs) }

// Lookup finds a hub by name.
func (r *Registry) Lookup(name string) (federation.HubDescriptor, bool) {
	idx := slices.IndexFunc(r.hubs, func(h federation.HubDescriptor) bool { return h.Name == name })
	if idx < 0 {
		return federation.HubDescriptor{}, false
	}
	return r.hubs[idx], true
}

func normalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u != "" && !strings.Contains(u, "://") {
		u = "http://" + u
	}
	return u
}
