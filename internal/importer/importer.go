// Package importer turns platform trade exports into journal trades.
// Each platform has a Processor that maps the export's columns onto the
// canonical schema and normalizes rows; invalid rows are skipped and
// reported, never fatal. The Service wraps preview (parse only) and commit
// (transactional save with duplicate counting).
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/riskbook-dev/riskbook/internal/model"
)

// RowError reports one skipped row. Row is the 1-based line number in the
// source file, counting the header.
type RowError struct {
	Row int    `json:"row"`
	Msg string `json:"msg"`
}

// Processor converts one platform's export rows into trades.
type Processor interface {
	// Platform returns the processor name, e.g. "topstep".
	Platform() string
	// Detect reports whether the header row looks like this platform's
	// export format.
	Detect(header []string) bool
	// Process maps and normalizes data rows. Overrides force canonical
	// fields onto specific columns. Row errors are per-row skips; the
	// returned error means the whole file is unusable (e.g. required
	// columns missing).
	Process(header []string, rows [][]string, overrides map[string]int) ([]model.Trade, []RowError, error)
	// Mapping resolves the column mapping without processing, for preview.
	Mapping(header []string, overrides map[string]int) (Mapping, error)
	// Schema describes the canonical fields and their platform aliases.
	Schema() Schema
}

// Registry holds named processors.
type Registry struct {
	processors map[string]Processor
}

// NewRegistry creates an empty processor registry.
func NewRegistry() *Registry {
	return &Registry{processors: make(map[string]Processor)}
}

// Register adds a processor. Panics on duplicate platform.
func (r *Registry) Register(p Processor) {
	key := strings.ToLower(p.Platform())
	if _, ok := r.processors[key]; ok {
		panic("duplicate processor platform: " + key)
	}
	r.processors[key] = p
}

// Get returns the processor for a platform, or nil.
func (r *Registry) Get(platform string) Processor {
	return r.processors[strings.ToLower(platform)]
}

// Detect returns the first processor whose format matches the header.
func (r *Registry) Detect(header []string) Processor {
	for _, name := range r.Platforms() {
		if p := r.processors[name]; p.Detect(header) {
			return p
		}
	}
	return nil
}

// Platforms returns the registered platform names, sorted.
func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.processors))
	for name := range r.processors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with all built-in processors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewMT5Report())
	r.Register(NewTopstep())
	r.Register(NewMatchTrader())
	return r
}

// ReadCSV splits a CSV export into header and data rows. Exports pad or
// truncate rows inconsistently, so field counts are not enforced here.
func ReadCSV(r io.Reader) (header []string, rows [][]string, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("empty file")
	}
	return records[0], records[1:], nil
}
