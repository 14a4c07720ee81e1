package resource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidType is returned when a resource type is not part of the
// fixed enumeration.
var ErrInvalidType = errors.New("invalid resource type")

// Type classifies a unit of shareable capacity.
type Type string

const (
	TypeTool      Type = "tool"
	TypeFood      Type = "food"
	TypeSkill     Type = "skill"
	TypeEnergy    Type = "energy"
	TypeWater     Type = "water"
	TypeSpace     Type = "space"
	TypeKnowledge Type = "knowledge"
)

// Types lists every member of the resource type enumeration in display order.
var Types = []Type{TypeTool, TypeFood, TypeSkill, TypeEnergy, TypeWater, TypeSpace, TypeKnowledge}

// Valid reports whether t is a member of the enumeration.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// ParseType converts s into a Type. The empty string parses to the empty
// Type, meaning "no constraint".
func ParseType(s string) (Type, error) {
	if s == "" {
		return "", nil
	}
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q (want one of %s)", ErrInvalidType, s, TypeNames())
	}
	return t, nil
}

// TypeNames returns the enumeration as a comma separated list.
func TypeNames() string {
	names := make([]string, len(Types))
	for i, t := range Types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// Status is the availability of a resource at its hub.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusInUse       Status = "in_use"
	StatusUnavailable Status = "unavailable"
	StatusReserved    Status = "reserved"
)

// DefaultUnit is assumed when a record carries no unit.
const DefaultUnit = "item"

// Record is one unit of shareable capacity reported by a hub. Every field is
// optional on the wire; unknown type and status strings decode unchanged.
// Scalar ids and names (42, true) decode as their literal text and a numeric
// string is accepted as a quantity.
type Record struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Type            Type     `json:"type"`
	Classification  string   `json:"classification,omitempty"`
	Status          Status   `json:"status,omitempty"`
	CurrentLocation string   `json:"currentLocation,omitempty"`
	CurrentQuantity *float64 `json:"currentQuantity,omitempty"`
	Unit            string   `json:"unit,omitempty"`
	Note            string   `json:"note,omitempty"`

	// Extra holds fields the typed view does not model, or whose JSON type
	// it cannot hold, exactly as received. They are encoded back unchanged
	// and take precedence over a typed field of the same name.
	Extra map[string]json.RawMessage `json:"-"`
}

// ErrNotObject is returned when a record is decoded from anything but a JSON
// object.
var ErrNotObject = errors.New("resource record must be a JSON object")

type recordFields Record

// MarshalJSON encodes the typed fields merged with Extra.
func (r Record) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(recordFields(r))
	if err != nil || len(r.Extra) == 0 {
		return data, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		fields[k] = v
	}
	return json.Marshal(fields)
}

// UnmarshalJSON decodes a record object. It fails only when data is not an
// object; fields it cannot type end up in Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return ErrNotObject
	}
	*r = Record{}
	for key, raw := range fields {
		if r.decodeField(key, raw) {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]json.RawMessage)
		}
		r.Extra[key] = raw
	}
	return nil
}

func (r *Record) decodeField(key string, raw json.RawMessage) bool {
	var text string
	switch key {
	case "id":
		return decodeText(raw, &r.ID)
	case "name":
		return decodeText(raw, &r.Name)
	case "type":
		ok := decodeText(raw, &text)
		r.Type = Type(text)
		return ok
	case "status":
		ok := decodeText(raw, &text)
		r.Status = Status(text)
		return ok
	case "classification":
		return decodeText(raw, &r.Classification)
	case "currentLocation":
		return decodeText(raw, &r.CurrentLocation)
	case "unit":
		return decodeText(raw, &r.Unit)
	case "note":
		return decodeText(raw, &r.Note)
	case "currentQuantity":
		return decodeQuantity(raw, &r.CurrentQuantity)
	}
	return false
}

// decodeText accepts a string, null, or a number or boolean taken literally.
func decodeText(raw json.RawMessage, dst *string) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch raw[0] {
	case '"':
		return json.Unmarshal(raw, dst) == nil
	case '{', '[':
		return false
	case 'n':
		return string(raw) == "null"
	default:
		*dst = string(raw)
		return true
	}
}

// decodeQuantity accepts a number, null, or a string holding a number.
func decodeQuantity(raw json.RawMessage, dst **float64) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch q := v.(type) {
	case nil:
		return true
	case float64:
		*dst = Quantity(q)
		return true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(q), 64)
		if err != nil {
			return false
		}
		*dst = Quantity(f)
		return true
	}
	return false
}

// UnitOrDefault returns the record unit, falling back to DefaultUnit.
func (r Record) UnitOrDefault() string {
	if r.Unit == "" {
		return DefaultUnit
	}
	return r.Unit
}

// Quantity is a convenience for building records with a quantity.
func Quantity(q float64) *float64 {
	return &q
}
