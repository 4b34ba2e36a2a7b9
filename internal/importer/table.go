package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riskbook-dev/riskbook/internal/journal"
	"github.com/riskbook-dev/riskbook/internal/model"
)

// tableProcessor is the shared implementation behind the built-in
// processors: a schema, the platform's time layouts, an optional trailer
// filter, and an optional per-trade normalize hook.
type tableProcessor struct {
	platform    string
	schema      Schema
	timeLayouts []string
	detectCols  []string // normalized header cells that identify the format
	skip        func(rec []string) bool
	normalize   func(*model.Trade)
}

func (p *tableProcessor) Platform() string { return p.platform }

func (p *tableProcessor) Schema() Schema { return p.schema }

func (p *tableProcessor) Detect(header []string) bool {
	norm := make(map[string]bool, len(header))
	for _, h := range header {
		norm[normalizeHeader(h)] = true
	}
	for _, want := range p.detectCols {
		if !norm[want] {
			return false
		}
	}
	return true
}

func (p *tableProcessor) Mapping(header []string, overrides map[string]int) (Mapping, error) {
	return p.schema.Map(header, overrides)
}

func (p *tableProcessor) Process(header []string, rows [][]string, overrides map[string]int) ([]model.Trade, []RowError, error) {
	m, err := p.schema.Map(header, overrides)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", p.platform, err)
	}

	var trades []model.Trade
	var errs []RowError
	for i, rec := range rows {
		line := i + 2 // 1-based, after the header
		if p.skip != nil && p.skip(rec) {
			continue
		}
		if isBlankRow(rec) {
			continue
		}
		t, err := p.row(m, rec)
		if err != nil {
			errs = append(errs, RowError{Row: line, Msg: err.Error()})
			continue
		}
		if verrs := journal.ValidateTrade(t); len(verrs) > 0 {
			msgs := make([]string, len(verrs))
			for j, ve := range verrs {
				msgs[j] = ve.Error()
			}
			errs = append(errs, RowError{Row: line, Msg: strings.Join(msgs, "; ")})
			continue
		}
		trades = append(trades, t)
	}
	return trades, errs, nil
}

func (p *tableProcessor) row(m Mapping, rec []string) (model.Trade, error) {
	t := model.Trade{
		Platform:   p.platform,
		ExternalID: m.get(rec, FieldExternalID),
		Instrument: m.get(rec, FieldInstrument),
		Side:       parseSide(m.get(rec, FieldSide)),
	}

	var err error
	for _, f := range []struct {
		name     string
		dst      *decimal.Decimal
		required bool
	}{
		{FieldQuantity, &t.Quantity, false},
		{FieldEntryPrice, &t.EntryPrice, false},
		{FieldClosePrice, &t.ClosePrice, false},
		{FieldPnL, &t.PnL, true},
		{FieldCommission, &t.Commission, false},
		{FieldSwap, &t.Swap, false},
	} {
		if *f.dst, err = p.parseDecimal(m.get(rec, f.name), f.required); err != nil {
			return model.Trade{}, fmt.Errorf("%s: %w", f.name, err)
		}
	}

	if raw := m.get(rec, FieldEntryTime); raw != "" {
		if t.EntryTime, err = p.parseTime(raw); err != nil {
			return model.Trade{}, fmt.Errorf("%s: %w", FieldEntryTime, err)
		}
	}
	raw := m.get(rec, FieldCloseTime)
	if raw == "" {
		return model.Trade{}, fmt.Errorf("%s: missing", FieldCloseTime)
	}
	if t.CloseTime, err = p.parseTime(raw); err != nil {
		return model.Trade{}, fmt.Errorf("%s: %w", FieldCloseTime, err)
	}

	if p.normalize != nil {
		p.normalize(&t)
	}
	return t, nil
}

func (p *tableProcessor) parseDecimal(raw string, required bool) (decimal.Decimal, error) {
	if raw == "" {
		if required {
			return decimal.Decimal{}, fmt.Errorf("missing")
		}
		return decimal.Zero, nil
	}
	// Exports often format money with thousands separators.
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.TrimPrefix(raw, "$")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid number %q", raw)
	}
	return d, nil
}

func (p *tableProcessor) parseTime(raw string) (time.Time, error) {
	for _, layout := range p.timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", raw)
}

func parseSide(s string) model.TradeSide {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "long":
		return model.SideLong
	case "sell", "short":
		return model.SideShort
	default:
		return ""
	}
}

func isBlankRow(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
