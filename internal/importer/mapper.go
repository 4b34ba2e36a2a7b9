package importer

import (
	"fmt"
	"strings"
)

// Field is one canonical column of the trade schema with the header names
// platforms use for it.
type Field struct {
	Name     string   `json:"name"`
	Aliases  []string `json:"aliases"`
	Required bool     `json:"required"`
}

// Schema is an ordered list of canonical fields.
type Schema []Field

// Mapping maps canonical field names to source column indexes.
type Mapping map[string]int

// Canonical field names shared by every processor.
const (
	FieldExternalID = "external_id"
	FieldInstrument = "instrument"
	FieldSide       = "side"
	FieldQuantity   = "quantity"
	FieldEntryPrice = "entry_price"
	FieldClosePrice = "close_price"
	FieldEntryTime  = "entry_time"
	FieldCloseTime  = "close_time"
	FieldPnL        = "pnl"
	FieldCommission = "commission"
	FieldSwap       = "swap"
)

// normalizeHeader reduces a header cell to lowercase alphanumerics so that
// "Close Time", "close_time", and "CloseTime" all compare equal.
func normalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Map resolves the schema against a header row. Matching is by normalized
// alias first, then by substring. Overrides (canonical field -> column
// index) win over auto-matching; an override of -1 drops an auto-matched
// optional field. Missing required fields are an error listing all of them.
func (s Schema) Map(header []string, overrides map[string]int) (Mapping, error) {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = normalizeHeader(h)
	}

	m := make(Mapping, len(s))
	for _, f := range s {
		if idx, ok := overrides[f.Name]; ok {
			if idx >= 0 && idx < len(header) {
				m[f.Name] = idx
			}
			continue
		}
		if idx, ok := matchColumn(norm, f.Aliases); ok {
			m[f.Name] = idx
		}
	}

	var missing []string
	for _, f := range s {
		if _, ok := m[f.Name]; !ok && f.Required {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unmapped required fields: %s", strings.Join(missing, ", "))
	}
	return m, nil
}

func matchColumn(norm []string, aliases []string) (int, bool) {
	// Exact matches beat substring matches regardless of column order.
	for _, a := range aliases {
		na := normalizeHeader(a)
		for i, h := range norm {
			if h == na {
				return i, true
			}
		}
	}
	for _, a := range aliases {
		na := normalizeHeader(a)
		for i, h := range norm {
			if h != "" && na != "" && strings.Contains(h, na) {
				return i, true
			}
		}
	}
	return 0, false
}

// get returns the mapped cell, or "" when the field is unmapped or the row
// is short.
func (m Mapping) get(rec []string, field string) string {
	idx, ok := m[field]
	if !ok || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}
