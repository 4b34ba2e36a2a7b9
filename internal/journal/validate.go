package journal

import (
	"fmt"
	"strings"

	"github.com/riskbook-dev/riskbook/internal/model"
)

// ValidationError describes a single invalid field on a trade.
type ValidationError struct {
	Field       string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// ValidateTrade checks the invariants every saved trade must satisfy.
// Import processors run the same checks per row before normalizing.
func ValidateTrade(t model.Trade) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(t.Instrument) == "" {
		errs = append(errs, ValidationError{Field: "instrument", Description: "is required"})
	}
	if t.CloseTime.IsZero() {
		errs = append(errs, ValidationError{Field: "close_time", Description: "is required"})
	}
	if !t.EntryTime.IsZero() && !t.CloseTime.IsZero() && t.EntryTime.After(t.CloseTime) {
		errs = append(errs, ValidationError{
			Field:       "entry_time",
			Description: fmt.Sprintf("%s is after close time %s", t.EntryTime.Format("2006-01-02 15:04:05"), t.CloseTime.Format("2006-01-02 15:04:05")),
		})
	}
	if t.Quantity.IsNegative() {
		errs = append(errs, ValidationError{Field: "quantity", Description: "must not be negative"})
	}
	switch t.Side {
	case "", model.SideLong, model.SideShort:
	default:
		errs = append(errs, ValidationError{Field: "side", Description: fmt.Sprintf("unknown side %q", t.Side)})
	}
	for _, tag := range t.Tags {
		if strings.Contains(tag, ";") {
			errs = append(errs, ValidationError{Field: "tags", Description: fmt.Sprintf("tag %q contains the separator", tag)})
		}
	}

	return errs
}
