package importer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/riskbook-dev/riskbook/internal/audit"
	"github.com/riskbook-dev/riskbook/internal/id"
	"github.com/riskbook-dev/riskbook/internal/model"
	"github.com/riskbook-dev/riskbook/internal/store"
)

// Service runs the import pipeline against the store.
type Service struct {
	store    store.Store
	audit    *audit.Recorder
	registry *Registry
	now      func() time.Time
}

// NewService creates an import Service. A nil registry means the built-in
// processors.
func NewService(st store.Store, rec *audit.Recorder, reg *Registry) *Service {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Service{store: st, audit: rec, registry: reg, now: time.Now}
}

// Registry exposes the processor registry, for the platforms endpoint.
func (s *Service) Registry() *Registry { return s.registry }

// Preview is the parsed, not-yet-persisted result of an import file.
type Preview struct {
	Platform  string        `json:"platform"`
	Header    []string      `json:"header"`
	Mapping   Mapping       `json:"mapping"`
	Trades    []model.Trade `json:"trades"`
	RowErrors []RowError    `json:"row_errors,omitempty"`
	RowsTotal int           `json:"rows_total"`
}

// Preview parses a file without touching the store. An empty platform
// auto-detects from the header row.
func (s *Service) Preview(r io.Reader, platform string, overrides map[string]int) (Preview, error) {
	header, rows, err := ReadCSV(r)
	if err != nil {
		return Preview{}, store.NewError(store.CodeValidation, "unreadable file: %v", err)
	}

	var proc Processor
	if platform == "" {
		if proc = s.registry.Detect(header); proc == nil {
			return Preview{}, store.NewError(store.CodeValidation, "could not detect platform from header")
		}
	} else if proc = s.registry.Get(platform); proc == nil {
		return Preview{}, store.NewError(store.CodeValidation, "unknown platform %q", platform)
	}

	mapping, err := proc.Mapping(header, overrides)
	if err != nil {
		return Preview{}, store.NewError(store.CodeValidation, "%v", err)
	}
	trades, rowErrs, err := proc.Process(header, rows, overrides)
	if err != nil {
		return Preview{}, store.NewError(store.CodeValidation, "%v", err)
	}

	return Preview{
		Platform:  proc.Platform(),
		Header:    header,
		Mapping:   mapping,
		Trades:    trades,
		RowErrors: rowErrs,
		RowsTotal: len(rows),
	}, nil
}

// Commit parses a file and saves its trades to the account in one batch.
// Duplicate rows are counted, not fatal; a batch where every parsed row is
// a duplicate fails with DUPLICATE_TRADES. The batch summary is recorded
// either way the import succeeds.
func (s *Service) Commit(ctx context.Context, userID, accountID, platform, fileName string, r io.Reader, overrides map[string]int) (model.ImportBatch, error) {
	account, err := s.store.Account(ctx, accountID)
	if err != nil {
		return model.ImportBatch{}, err
	}
	if account.UserID != userID {
		return model.ImportBatch{}, store.NewError(store.CodeNotFound, "account %s not found", accountID)
	}

	p, err := s.Preview(r, platform, overrides)
	if err != nil {
		return model.ImportBatch{}, err
	}
	if len(p.Trades) == 0 {
		return model.ImportBatch{}, store.NewError(store.CodeValidation, "no importable rows in %s", fileName)
	}

	now := s.now().UTC()
	for i := range p.Trades {
		p.Trades[i].ID = id.New()
		p.Trades[i].AccountID = accountID
		p.Trades[i].CreatedAt = now
	}

	inserted, duplicates, err := s.store.SaveTrades(ctx, p.Trades)
	if err != nil {
		return model.ImportBatch{}, fmt.Errorf("saving trades: %w", err)
	}
	if inserted == 0 {
		return model.ImportBatch{}, store.NewError(store.CodeDuplicateTrades,
			"all %d rows in %s were already imported", duplicates, fileName)
	}

	batch := model.ImportBatch{
		ID:            id.New(),
		AccountID:     accountID,
		Platform:      p.Platform,
		FileName:      fileName,
		RowsTotal:     p.RowsTotal,
		RowsImported:  inserted,
		RowsSkipped:   len(p.RowErrors),
		RowsDuplicate: duplicates,
		CreatedAt:     now,
	}
	if err := s.store.CreateBatch(ctx, batch); err != nil {
		return model.ImportBatch{}, fmt.Errorf("recording batch: %w", err)
	}
	s.audit.Record(ctx, accountID, model.ActionImportCommitted,
		fmt.Sprintf("%s: %d imported, %d duplicate, %d skipped", fileName, inserted, duplicates, len(p.RowErrors)))
	return batch, nil
}
