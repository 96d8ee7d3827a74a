package store

import (
	"fmt"
	"time"

	"github.com/wonny/futsync/internal/domain"
)

// stringSpec declares the schema limit for one text column. The specs
// mirror the VARCHAR widths in schema.go; keep the two in sync when the
// schema changes.
type stringSpec struct {
	name     string
	maxLen   int
	required bool
	get      func(*domain.Contract) *string
}

var contractStringSpecs = []stringSpec{
	{"ts_code", 20, true, func(c *domain.Contract) *string { return &c.TSCode }},
	{"symbol", 20, false, func(c *domain.Contract) *string { return &c.Symbol }},
	{"exchange", 10, true, func(c *domain.Contract) *string { return &c.Exchange }},
	{"name", 50, false, func(c *domain.Contract) *string { return &c.Name }},
	{"fut_code", 10, true, func(c *domain.Contract) *string { return &c.FutCode }},
	{"trade_unit", 20, false, func(c *domain.Contract) *string { return &c.TradeUnit }},
	{"quote_unit", 20, false, func(c *domain.Contract) *string { return &c.QuoteUnit }},
}

// validateContract checks one master row against the declared field
// specs. Over-length strings are truncated in place rather than
// rejected; a missing required field or delist date rejects the row.
func validateContract(c *domain.Contract) error {
	for _, spec := range contractStringSpecs {
		field := spec.get(c)
		if spec.required && *field == "" {
			return domain.NewValidationError(fmt.Sprintf("%s is required", spec.name), nil)
		}
		if runes := []rune(*field); len(runes) > spec.maxLen {
			*field = string(runes[:spec.maxLen])
		}
	}

	if c.DelistDate.IsZero() {
		return domain.NewValidationError("delist_date is required", nil)
	}
	return nil
}

// nullDate maps the zero time to SQL NULL.
func nullDate(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
