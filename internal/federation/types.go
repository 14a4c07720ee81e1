package federation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/dreamware/solarnet/internal/resource"
)

var (
	// ErrEmptyRegistry is returned when a search is asked to run against no hubs.
	ErrEmptyRegistry = errors.New("registry has no hubs")
	// ErrInvalidHub is returned when a hub descriptor lacks a name or a usable URL.
	ErrInvalidHub = errors.New("invalid hub descriptor")
	// ErrDuplicateHub is returned when two hubs share a name.
	ErrDuplicateHub = errors.New("duplicate hub name")
)

// HubDescriptor identifies one federation peer. It is read-only for the
// duration of a search.
type HubDescriptor struct {
	Name          string            `json:"name" yaml:"name"`
	URL           string            `json:"url" yaml:"url"`
	Location      string            `json:"location,omitempty" yaml:"location,omitempty"`
	Communication Communication `json:"communication,omitempty" yaml:"communication,omitempty"`
}

// Communication holds a hub's opaque contact hints, such as a mesh channel
// or a group name. A value that is not a string is kept as its JSON text.
type Communication map[string]string

// UnmarshalJSON accepts any JSON value for each key.
func (c *Communication) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("communication must be an object: %w", err)
	}
	if raw == nil {
		*c = nil
		return nil
	}
	out := make(Communication, len(raw))
	for k, v := range raw {
		var s string
		if json.Unmarshal(v, &s) == nil {
			out[k] = s
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return err
		}
		out[k] = buf.String()
	}
	*c = out
	return nil
}

// UnmarshalYAML accepts any YAML value for each key. Scalars keep their
// source text; collections become JSON text.
func (c *Communication) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("communication must be a mapping (line %d)", value.Line)
	}
	out := make(Communication, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i].Value, value.Content[i+1]
		if val.Kind == yaml.ScalarNode {
			if val.ShortTag() != "!!null" {
				out[key] = val.Value
			} else {
				out[key] = ""
			}
			continue
		}
		var v any
		if err := val.Decode(&v); err != nil {
			return err
		}
		text, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("communication %q: %w", key, err)
		}
		out[key] = string(text)
	}
	*c = out
	return nil
}

// ResourcesURL returns the catalog endpoint of the hub.
func (h HubDescriptor) ResourcesURL() string {
	return strings.TrimRight(h.URL, "/") + "/api/resources"
}

// HealthURL returns the liveness endpoint of the hub.
func (h HubDescriptor) HealthURL() string {
	return strings.TrimRight(h.URL, "/") + "/api/health"
}

// Validate checks a single descriptor.
func (h HubDescriptor) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidHub)
	}
	if strings.TrimSpace(h.URL) == "" {
		return fmt.Errorf("%w: hub %q: missing url", ErrInvalidHub, h.Name)
	}
	u, err := url.Parse(h.URL)
	if err != nil {
		return fmt.Errorf("%w: hub %q: %v", ErrInvalidHub, h.Name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: hub %q: url %q must be absolute http(s)", ErrInvalidHub, h.Name, h.URL)
	}
	return nil
}

// ValidateHubs checks a whole registry: it must be non-empty, every hub valid,
// and names unique.
func ValidateHubs(hubs []HubDescriptor) error {
	if len(hubs) == 0 {
		return ErrEmptyRegistry
	}
	for i, h := range hubs {
		if err := h.Validate(); err != nil {
			return fmt.Errorf("hub #%d: %w", i+1, err)
		}
		if idx := slices.IndexFunc(hubs[:i], func(o HubDescriptor) bool { return o.Name == h.Name }); idx >= 0 {
			return fmt.Errorf("%w: %q at #%d and #%d", ErrDuplicateHub, h.Name, idx+1, i+1)
		}
	}
	return nil
}

// OutcomeKind tags the variant held by a HubOutcome.
type OutcomeKind string

const (
	OutcomeSuccess           OutcomeKind = "success"
	OutcomeTimeout           OutcomeKind = "timeout"
	OutcomeConnectionFailure OutcomeKind = "connection_failure"
	OutcomeHTTPError         OutcomeKind = "http_error"
	OutcomeProtocolError     OutcomeKind = "protocol_error"
)

// HubOutcome is the result of contacting one hub. Records is set only for
// OutcomeSuccess, StatusCode only for OutcomeHTTPError and Detail only for
// OutcomeProtocolError.
type HubOutcome struct {
	Kind       OutcomeKind       `json:"kind"`
	Records    []resource.Record `json:"records,omitempty"`
	StatusCode int               `json:"status_code,omitempty"`
	Detail     string            `json:"detail,omitempty"`
}

// Success wraps the records a hub returned after filtering. A nil slice is
// replaced by an empty one.
func Success(records []resource.Record) HubOutcome {
	if records == nil {
		records = []resource.Record{}
	}
	return HubOutcome{Kind: OutcomeSuccess, Records: records}
}

// Timeout reports a hub that did not answer within its budget.
func Timeout() HubOutcome { return HubOutcome{Kind: OutcomeTimeout} }

// ConnectionFailure reports a hub that could not be reached.
func ConnectionFailure() HubOutcome { return HubOutcome{Kind: OutcomeConnectionFailure} }

// HTTPError reports a hub that answered with a status other than 200.
func HTTPError(status int) HubOutcome {
	return HubOutcome{Kind: OutcomeHTTPError, StatusCode: status}
}

// ProtocolError reports a hub whose body could not be used as a catalog.
func ProtocolError(detail string) HubOutcome {
	return HubOutcome{Kind: OutcomeProtocolError, Detail: detail}
}

// OK reports whether the hub answered with a usable catalog.
func (o HubOutcome) OK() bool { return o.Kind == OutcomeSuccess }

// Count is the number of records contributed by the outcome.
func (o HubOutcome) Count() int {
	if !o.OK() {
		return 0
	}
	return len(o.Records)
}

// String renders the outcome for logs.
func (o HubOutcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return fmt.Sprintf("success (%d)", len(o.Records))
	case OutcomeHTTPError:
		return fmt.Sprintf("http error %d", o.StatusCode)
	case OutcomeProtocolError:
		return "protocol error: " + o.Detail
	default:
		return strings.ReplaceAll(string(o.Kind), "_", " ")
	}
}

// HubResult pairs a hub with its outcome.
type HubResult struct {
	Hub     HubDescriptor `json:"hub"`
	Outcome HubOutcome    `json:"outcome"`
}

// FederatedResult holds one entry per registry hub, in registry order.
type FederatedResult struct {
	Hubs       []HubResult `json:"hubs"`
	TotalCount int         `json:"total_count"`
}

// Outcome returns the outcome recorded for the named hub.
func (r *FederatedResult) Outcome(name string) (HubOutcome, bool) {
	for _, h := range r.Hubs {
		if h.Hub.Name == name {
			return h.Outcome, true
		}
	}
	return HubOutcome{}, false
}

// Names lists hub names in result order.
func (r *FederatedResult) Names() []string {
	names := make([]string, len(r.Hubs))
	for i, h := range r.Hubs {
		names[i] = h.Hub.Name
	}
	return names
}

// WithRecords returns the entries whose hub contributed at least one record.
func (r *FederatedResult) WithRecords() []HubResult {
	var out []HubResult
	for _, h := range r.Hubs {
		if h.Outcome.Count() > 0 {
			out = append(out, h)
		}
	}
	return out
}

// Failures returns the entries whose hub did not succeed.
func (r *FederatedResult) Failures() []HubResult {
	var out []HubResult
	for _, h := range r.Hubs {
		if !h.Outcome.OK() {
			out = append(out, h)
		}
	}
	return out
}
