package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riskbook-dev/riskbook/internal/model"
)

// Header is the CSV header for journal exports.
const Header = "id,account_id,platform,external_id,instrument,side,quantity,entry_price,close_price,entry_time,close_time,pnl,commission,swap,tags,notes"

const (
	numFields     = 16
	timeFormat    = "2006-01-02 15:04:05"
	colID         = 0
	colAccountID  = 1
	colPlatform   = 2
	colExternalID = 3
	colInstrument = 4
	colSide       = 5
	colQuantity   = 6
	colEntryPrice = 7
	colClosePrice = 8
	colEntryTime  = 9
	colCloseTime  = 10
	colPnL        = 11
	colCommission = 12
	colSwap       = 13
	colTags       = 14
	colNotes      = 15
)

// WriteTrades writes trades as CSV (including header).
func WriteTrades(w io.Writer, trades []model.Trade) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, t := range trades {
		if err := cw.Write(MarshalTrade(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// ReadTrades reads an exported journal back into trades.
func ReadTrades(r io.Reader) ([]model.Trade, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var trades []model.Trade
	for i, rec := range records[1:] {
		t, err := UnmarshalTrade(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		trades = append(trades, t)
	}
	return trades, nil
}

// MarshalTrade converts a Trade to a CSV row.
func MarshalTrade(t model.Trade) []string {
	row := make([]string, numFields)
	row[colID] = t.ID
	row[colAccountID] = t.AccountID
	row[colPlatform] = t.Platform
	row[colExternalID] = t.ExternalID
	row[colInstrument] = t.Instrument
	row[colSide] = string(t.Side)
	row[colQuantity] = t.Quantity.String()
	row[colEntryPrice] = t.EntryPrice.String()
	row[colClosePrice] = t.ClosePrice.String()
	if !t.EntryTime.IsZero() {
		row[colEntryTime] = t.EntryTime.UTC().Format(timeFormat)
	}
	row[colCloseTime] = t.CloseTime.UTC().Format(timeFormat)
	row[colPnL] = t.PnL.String()
	row[colCommission] = t.Commission.String()
	row[colSwap] = t.Swap.String()
	row[colTags] = model.JoinTags(t.Tags)
	row[colNotes] = t.Notes
	return row
}

// UnmarshalTrade converts a CSV row to a Trade.
func UnmarshalTrade(rec []string) (model.Trade, error) {
	if len(rec) != numFields {
		return model.Trade{}, fmt.Errorf("expected %d fields, got %d", numFields, len(rec))
	}

	t := model.Trade{
		ID:         rec[colID],
		AccountID:  rec[colAccountID],
		Platform:   rec[colPlatform],
		ExternalID: rec[colExternalID],
		Instrument: rec[colInstrument],
		Side:       model.TradeSide(rec[colSide]),
		Tags:       model.SplitTags(rec[colTags]),
		Notes:      rec[colNotes],
	}

	var err error
	for _, f := range []struct {
		col  int
		name string
		dst  *decimal.Decimal
	}{
		{colQuantity, "quantity", &t.Quantity},
		{colEntryPrice, "entry_price", &t.EntryPrice},
		{colClosePrice, "close_price", &t.ClosePrice},
		{colPnL, "pnl", &t.PnL},
		{colCommission, "commission", &t.Commission},
		{colSwap, "swap", &t.Swap},
	} {
		if *f.dst, err = decimal.NewFromString(rec[f.col]); err != nil {
			return model.Trade{}, fmt.Errorf("parsing %s %q: %w", f.name, rec[f.col], err)
		}
	}

	if rec[colEntryTime] != "" {
		if t.EntryTime, err = time.Parse(timeFormat, rec[colEntryTime]); err != nil {
			return model.Trade{}, fmt.Errorf("parsing entry_time %q: %w", rec[colEntryTime], err)
		}
		t.EntryTime = t.EntryTime.UTC()
	}
	if t.CloseTime, err = time.Parse(timeFormat, rec[colCloseTime]); err != nil {
		return model.Trade{}, fmt.Errorf("parsing close_time %q: %w", rec[colCloseTime], err)
	}
	t.CloseTime = t.CloseTime.UTC()

	return t, nil
}
