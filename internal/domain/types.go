package domain

import "time"

// Contract is one row of the futures contract master. The master is a
// complete snapshot: it is replaced wholesale on every refresh, never
// patched incrementally.
type Contract struct {
	TSCode     string    `json:"ts_code"` // full instrument code, e.g. "CU2603.SHF"
	Symbol     string    `json:"symbol"`
	Exchange   string    `json:"exchange"` // exchange code, e.g. "SHFE"
	Name       string    `json:"name"`
	FutCode    string    `json:"fut_code"` // product code, e.g. "CU"
	Multiplier float64   `json:"multiplier"`
	PerUnit    float64   `json:"per_unit"`
	TradeUnit  string    `json:"trade_unit"`
	QuoteUnit  string    `json:"quote_unit"`
	ListDate   time.Time `json:"list_date"`
	DelistDate time.Time `json:"delist_date"`
}

// ValidAt reports whether the contract is still tradable at the given
// trade date. A contract is valid iff its delist date is strictly after
// the date.
func (c Contract) ValidAt(date time.Time) bool {
	return c.DelistDate.After(date)
}

// DailyQuote is one daily bar for one instrument. Rows are append-only:
// at most one row exists per (instrument, trade date).
type DailyQuote struct {
	TSCode    string    `json:"ts_code"`
	TradeDate time.Time `json:"trade_date"`

	Open     *float64 `json:"open"`
	High     *float64 `json:"high"`
	Low      *float64 `json:"low"`
	Close    *float64 `json:"close"`
	PreClose *float64 `json:"pre_close"`

	// ChangeRate is (close-pre_close)/pre_close*100; nil unless both
	// close and pre_close are present and pre_close is non-zero.
	ChangeRate *float64 `json:"change_rate"`

	Volume       *float64 `json:"volume"`
	Amount       *float64 `json:"amount"`
	OpenInterest *float64 `json:"open_interest"`
}

// DeriveChangeRate fills ChangeRate from Close and PreClose.
func (q *DailyQuote) DeriveChangeRate() {
	q.ChangeRate = nil
	if q.Close == nil || q.PreClose == nil || *q.PreClose == 0 {
		return
	}
	rate := (*q.Close - *q.PreClose) / *q.PreClose * 100
	q.ChangeRate = &rate
}

// MainContract records the most liquid instrument of one product on one
// trading date. One row per (trade date, exchange, product); later runs
// for the same key supersede earlier ones.
type MainContract struct {
	TradeDate    time.Time `json:"trade_date"`
	Exchange     string    `json:"exchange"`
	FutCode      string    `json:"fut_code"`
	TSCode       string    `json:"ts_code"`
	Volume       float64   `json:"volume"`
	Amount       float64   `json:"amount"`
	OpenInterest float64   `json:"open_interest"`
}
