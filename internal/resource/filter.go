package resource

import "strings"

// Filter narrows a record collection. Both constraints are optional and
// combine with AND.
type Filter struct {
	// Type keeps records whose type matches exactly. Empty means any type.
	Type Type `json:"type,omitempty"`
	// Text keeps records whose name or classification contains it,
	// ignoring case. Empty means any text.
	Text string `json:"text,omitempty"`
}

// Validate rejects a type constraint outside the enumeration.
func (f Filter) Validate() error {
	if f.Type == "" {
		return nil
	}
	_, err := ParseType(string(f.Type))
	return err
}

// Matches reports whether r satisfies every constraint of f.
func (f Filter) Matches(r Record) bool {
	return f.matchesType(r) && f.matchesText(r, strings.ToLower(f.Text))
}

// Apply returns the records that satisfy f, preserving input order. The type
// predicate runs first. The result is never nil and never aliases records.
func (f Filter) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.matchesType(r) {
			out = append(out, r)
		}
	}
	if f.Text == "" {
		return out
	}

	needle := strings.ToLower(f.Text)
	kept := out[:0]
	for _, r := range out {
		if f.matchesText(r, needle) {
			kept = append(kept, r)
		}
	}
	return kept
}

// Describe renders the filter the way the search CLI announces it,
// e.g. "tools matching 'saw'".
func (f Filter) Describe() string {
	desc := "all resources"
	if f.Type != "" {
		desc = string(f.Type) + "s"
	}
	if f.Text != "" {
		desc += " matching '" + f.Text + "'"
	}
	return desc
}

func (f Filter) matchesType(r Record) bool {
	return f.Type == "" || r.Type == f.Type
}

func (f Filter) matchesText(r Record, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Name), needle) ||
		strings.Contains(strings.ToLower(r.Classification), needle)
}
