package importer

import (
	"strings"

	"github.com/riskbook-dev/riskbook/internal/model"
)

// NewMT5Report builds the processor for generic MetaTrader 5 report
// exports: ID / Open Time / Close Time / Type / Volume / Symbol /
// Open Price / Close Price / Profit / Commission / Swap, with dd/mm/yyyy
// timestamps and a "Total" trailer row.
func NewMT5Report() Processor {
	return &tableProcessor{
		platform: "mt5report",
		schema: Schema{
			{Name: FieldExternalID, Aliases: []string{"id", "ticket", "deal"}},
			{Name: FieldInstrument, Aliases: []string{"symbol", "instrument"}, Required: true},
			{Name: FieldSide, Aliases: []string{"type", "side", "direction"}},
			{Name: FieldQuantity, Aliases: []string{"volume", "lots", "size"}},
			{Name: FieldEntryPrice, Aliases: []string{"open price", "entry price"}},
			{Name: FieldClosePrice, Aliases: []string{"close price", "exit price"}},
			{Name: FieldEntryTime, Aliases: []string{"open time", "entry time"}},
			{Name: FieldCloseTime, Aliases: []string{"close time", "exit time"}, Required: true},
			{Name: FieldPnL, Aliases: []string{"profit", "pnl"}, Required: true},
			{Name: FieldCommission, Aliases: []string{"commission", "fees"}},
			{Name: FieldSwap, Aliases: []string{"swap", "rollover"}},
		},
		timeLayouts: []string{
			"02/01/2006 15:04:05",
			"02/01/2006 15:04",
			"2006.01.02 15:04:05",
		},
		detectCols: []string{"closetime", "profit", "swap"},
		skip: func(rec []string) bool {
			return len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "Total")
		},
	}
}

// NewTopstep builds the processor for Topstep trade exports. Fees are
// reported as positive costs and normalized to signed commission.
func NewTopstep() Processor {
	return &tableProcessor{
		platform: "topstep",
		schema: Schema{
			{Name: FieldExternalID, Aliases: []string{"id", "trade id"}},
			{Name: FieldInstrument, Aliases: []string{"contract name", "contract", "symbol"}, Required: true},
			{Name: FieldSide, Aliases: []string{"type", "side"}},
			{Name: FieldQuantity, Aliases: []string{"size", "quantity"}},
			{Name: FieldEntryPrice, Aliases: []string{"entry price"}},
			{Name: FieldClosePrice, Aliases: []string{"exit price"}},
			{Name: FieldEntryTime, Aliases: []string{"entered at", "entry time"}},
			{Name: FieldCloseTime, Aliases: []string{"exited at", "exit time"}, Required: true},
			{Name: FieldPnL, Aliases: []string{"pnl", "profit"}, Required: true},
			{Name: FieldCommission, Aliases: []string{"fees", "commission"}},
		},
		timeLayouts: []string{
			"2006-01-02T15:04:05Z07:00",
			"2006-01-02 15:04:05",
			"01/02/2006 15:04:05",
		},
		detectCols: []string{"contractname", "enteredat", "exitedat"},
		normalize: func(t *model.Trade) {
			if t.Commission.IsPositive() {
				t.Commission = t.Commission.Neg()
			}
		},
	}
}

// NewMatchTrader builds the processor for Match-Trader position exports.
func NewMatchTrader() Processor {
	return &tableProcessor{
		platform: "matchtrader",
		schema: Schema{
			{Name: FieldExternalID, Aliases: []string{"position id", "id"}},
			{Name: FieldInstrument, Aliases: []string{"symbol", "instrument"}, Required: true},
			{Name: FieldSide, Aliases: []string{"side", "type"}},
			{Name: FieldQuantity, Aliases: []string{"volume", "lots"}},
			{Name: FieldEntryPrice, Aliases: []string{"open price"}},
			{Name: FieldClosePrice, Aliases: []string{"close price"}},
			{Name: FieldEntryTime, Aliases: []string{"open time"}},
			{Name: FieldCloseTime, Aliases: []string{"close time"}, Required: true},
			{Name: FieldPnL, Aliases: []string{"profit", "net profit"}, Required: true},
			{Name: FieldCommission, Aliases: []string{"commission"}},
			{Name: FieldSwap, Aliases: []string{"swap"}},
		},
		timeLayouts: []string{
			"2006-01-02 15:04:05",
			"02.01.2006 15:04:05",
			"2006-01-02T15:04:05Z07:00",
		},
		detectCols: []string{"positionid", "opentime", "closetime"},
	}
}
