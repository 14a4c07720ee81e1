// Package render turns a federated search result into what an operator reads:
// a hub-grouped text listing for terminals and radio relays, or JSON.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dreamware/solarnet/internal/federation"
	"github.com/dreamware/solarnet/internal/registry"
	"github.com/dreamware/solarnet/internal/resource"
)

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" or "json"; empty means text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q: want text or json", s)
}

var typeMarkers = map[resource.Type]string{
	resource.TypeTool:      "🔧",
	resource.TypeFood:      "🍅",
	resource.TypeSkill:     "🎓",
	resource.TypeEnergy:    "⚡",
	resource.TypeWater:     "💧",
	resource.TypeSpace:     "🏠",
	resource.TypeKnowledge: "📚",
}

var statusMarkers = map[resource.Status]string{
	resource.StatusAvailable:   "✅",
	resource.StatusInUse:       "🔄",
	resource.StatusUnavailable: "❌",
	resource.StatusReserved:    "🔒",
}

// TypeMarker returns the emoji for t, or a parcel for unknown types.
func TypeMarker(t resource.Type) string {
	if m, ok := typeMarkers[t]; ok {
		return m
	}
	return "📦"
}

// StatusMarker returns the emoji for s, or a question mark for unknown states.
func StatusMarker(s resource.Status) string {
	if m, ok := statusMarkers[s]; ok {
		return m
	}
	return "❓"
}

// QuantityString renders how much of a record there is. Counted items only
// show a quantity when it is not exactly one.
func QuantityString(r resource.Record) string {
	qty := "?"
	if r.CurrentQuantity != nil {
		qty = strconv.FormatFloat(*r.CurrentQuantity, 'f', -1, 64)
	}
	unit := r.UnitOrDefault()
	if unit != resource.DefaultUnit {
		return qty + " " + unit
	}
	if r.CurrentQuantity != nil && *r.CurrentQuantity == 1 {
		return ""
	}
	return "qty: " + qty
}

// RecordLine renders one record as listed under its hub.
func RecordLine(r resource.Record, hubName string) string {
	name := orUnknown(r.Name)
	location := orUnknown(r.CurrentLocation)
	line := fmt.Sprintf("  %s %s %s - %s (%s) %s",
		TypeMarker(r.Type), StatusMarker(r.Status), name, location, hubName, QuantityString(r))
	return strings.TrimRight(line, " ")
}

// FailureLine renders a hub that returned no catalog. Successful outcomes
// render as the empty string.
func FailureLine(hr federation.HubResult) string {
	name := hr.Hub.Name
	switch hr.Outcome.Kind {
	case federation.OutcomeTimeout:
		return fmt.Sprintf("⏱️  %s - Timeout (offline?)", name)
	case federation.OutcomeConnectionFailure:
		return fmt.Sprintf("❌ %s - Connection failed (offline)", name)
	case federation.OutcomeHTTPError:
		return fmt.Sprintf("⚠️  %s - HTTP %d", name, hr.Outcome.StatusCode)
	case federation.OutcomeProtocolError:
		return fmt.Sprintf("❌ %s - Error: %s", name, hr.Outcome.Detail)
	}
	return ""
}

// Header announces a search before hubs are contacted.
func Header(filter resource.Filter) string {
	return fmt.Sprintf("🌐 Searching federated network for %s...", filter.Describe())
}

// RegistryTip explains how to create a registry file.
func RegistryTip() string {
	return "💡 Tip: Create federation.json like this:\n\n" + registry.Example + "\n"
}

// Text writes the full listing: failures, hubs with results in registry
// order, the total, and how to reach those hubs off-grid.
func Text(w io.Writer, result *federation.FederatedResult) error {
	p := &printer{w: w}

	failures := result.Failures()
	for _, hr := range failures {
		p.line(FailureLine(hr))
	}
	if len(failures) > 0 {
		p.line("")
	}

	found := result.WithRecords()
	if len(found) == 0 {
		p.line("❌ No resources found matching your criteria.")
		p.line("")
		return p.err
	}

	for _, hr := range found {
		p.line("📍 " + hr.Hub.Name + ":")
		for _, r := range hr.Outcome.Records {
			p.line(RecordLine(r, hr.Hub.Name))
		}
		p.line("")
	}

	p.line(fmt.Sprintf("✅ Found %d resource(s) across %d hub(s)", result.TotalCount, len(found)))
	p.line("")

	for _, hr := range found {
		hints := communicationHints(hr.Hub)
		if len(hints) == 0 {
			continue
		}
		p.line("📡 " + hr.Hub.Name + " communication:")
		for _, h := range hints {
			p.line("   " + h)
		}
		p.line("")
	}
	return p.err
}

// JSON writes result as indented JSON.
func JSON(w io.Writer, result *federation.FederatedResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// Write dispatches on format.
func Write(w io.Writer, format Format, result *federation.FederatedResult) error {
	if format == FormatJSON {
		return JSON(w, result)
	}
	return Text(w, result)
}

func communicationHints(hub federation.HubDescriptor) []string {
	if len(hub.Communication) == 0 {
		return nil
	}
	var hints []string
	if ch := hub.Communication["meshtastic_channel"]; ch != "" {
		hints = append(hints, "Meshtastic: "+ch)
	}
	if g := hub.Communication["briar_group"]; g != "" {
		hints = append(hints, "Briar: "+g)
	}
	return hints
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// printer remembers the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(s string) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintln(p.w, s)
}
