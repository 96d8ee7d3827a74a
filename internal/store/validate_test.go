package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/futsync/internal/domain"
)

func validContract() domain.Contract {
	return domain.Contract{
		TSCode:     "CU2606.SHF",
		Symbol:     "cu2606",
		Exchange:   "SHFE",
		Name:       "沪铜2606",
		FutCode:    "CU",
		DelistDate: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestValidateContract(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Contract)
		wantErr bool
	}{
		{"valid row", func(c *domain.Contract) {}, false},
		{"missing ts_code", func(c *domain.Contract) { c.TSCode = "" }, true},
		{"missing exchange", func(c *domain.Contract) { c.Exchange = "" }, true},
		{"missing fut_code", func(c *domain.Contract) { c.FutCode = "" }, true},
		{"missing delist date", func(c *domain.Contract) { c.DelistDate = time.Time{} }, true},
		{"optional fields empty", func(c *domain.Contract) { c.Symbol, c.Name = "", "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validContract()
			tt.mutate(&c)

			err := validateContract(&c)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, domain.KindValidation, domain.KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateContract_TruncatesOverLengthFields(t *testing.T) {
	c := validContract()
	c.Name = strings.Repeat("沪", 60)

	require.NoError(t, validateContract(&c))
	assert.Equal(t, 50, len([]rune(c.Name)), "name truncated to its column width in runes")
}

func TestNullDate(t *testing.T) {
	assert.Nil(t, nullDate(time.Time{}))

	d := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, d, nullDate(d))
}
