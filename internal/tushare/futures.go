package tushare

import (
	"context"
	"time"

	"github.com/wonny/futsync/internal/domain"
)

const (
	basicFields   = "ts_code,symbol,exchange,name,fut_code,multiplier,trade_unit,per_unit,quote_unit,list_date,delist_date"
	dailyFields   = "ts_code,trade_date,pre_close,open,high,low,close,vol,amount,oi"
	mappingFields = "ts_code,trade_date,mapping_ts_code"
)

// FetchContractMaster fetches the contract master for every configured
// exchange, one rate-limited call per exchange, and concatenates the
// results. Rows whose delist date is not strictly in the future are
// dropped; rows without a parseable delist date are dropped too, since
// validity cannot be judged without one. An empty overall result is not
// an error.
func (c *Client) FetchContractMaster(ctx context.Context) ([]domain.Contract, error) {
	today := midnight(c.now())

	var contracts []domain.Contract
	for _, exchange := range c.exchanges {
		tbl, err := c.call(ctx, "fut_basic", map[string]string{
			"exchange": exchange,
			"fut_type": "1", // 일반 선물만 (연속/지수 계약 제외)
		}, basicFields)
		if err != nil {
			return nil, err
		}

		kept := 0
		for i := 0; i < tbl.len(); i++ {
			delist, ok := parseDate(tbl.str(i, "delist_date"))
			if !ok || !delist.After(today) {
				continue
			}

			contract := domain.Contract{
				TSCode:     tbl.str(i, "ts_code"),
				Symbol:     tbl.str(i, "symbol"),
				Exchange:   exchange,
				Name:       tbl.str(i, "name"),
				FutCode:    tbl.str(i, "fut_code"),
				TradeUnit:  tbl.str(i, "trade_unit"),
				QuoteUnit:  tbl.str(i, "quote_unit"),
				DelistDate: delist,
			}
			if v := tbl.float(i, "multiplier"); v != nil {
				contract.Multiplier = *v
			}
			if v := tbl.float(i, "per_unit"); v != nil {
				contract.PerUnit = *v
			}
			if list, ok := parseDate(tbl.str(i, "list_date")); ok {
				contract.ListDate = list
			}

			contracts = append(contracts, contract)
			kept++
		}

		c.log.WithFields(map[string]interface{}{
			"exchange": exchange,
			"total":    tbl.len(),
			"kept":     kept,
		}).Debug("Contract master fetched")
	}

	return contracts, nil
}

// FetchDailyQuote fetches daily bars for one instrument over an
// inclusive date range. A provider response with no rows returns
// (nil, nil): non-trading days and freshly listed contracts legitimately
// have no data, and that must stay distinct from a call failure.
func (c *Client) FetchDailyQuote(ctx context.Context, tsCode string, start, end time.Time) ([]domain.DailyQuote, error) {
	tbl, err := c.call(ctx, "fut_daily", map[string]string{
		"ts_code":    tsCode,
		"start_date": formatDate(start),
		"end_date":   formatDate(end),
	}, dailyFields)
	if err != nil {
		return nil, err
	}
	if tbl.len() == 0 {
		return nil, nil
	}

	quotes := make([]domain.DailyQuote, 0, tbl.len())
	for i := 0; i < tbl.len(); i++ {
		tradeDate, ok := parseDate(tbl.str(i, "trade_date"))
		if !ok {
			continue
		}

		quote := domain.DailyQuote{
			TSCode:       tbl.str(i, "ts_code"),
			TradeDate:    tradeDate,
			Open:         tbl.float(i, "open"),
			High:         tbl.float(i, "high"),
			Low:          tbl.float(i, "low"),
			Close:        tbl.float(i, "close"),
			PreClose:     tbl.float(i, "pre_close"),
			Volume:       tbl.float(i, "vol"),
			Amount:       tbl.float(i, "amount"),
			OpenInterest: tbl.float(i, "oi"),
		}
		quote.DeriveChangeRate()
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

// Mapping is one provider row linking a continuous main-contract code to
// the concrete instrument that backed it on a trading date.
type Mapping struct {
	TradeDate    time.Time
	MappedTSCode string
}

// FetchMainMapping fetches the provider's own main-contract mapping for
// a continuous code (e.g. "CU.SHF") over an inclusive date range. Empty
// results are (nil, nil), matching FetchDailyQuote.
func (c *Client) FetchMainMapping(ctx context.Context, continuousCode string, start, end time.Time) ([]Mapping, error) {
	tbl, err := c.call(ctx, "fut_mapping", map[string]string{
		"ts_code":    continuousCode,
		"start_date": formatDate(start),
		"end_date":   formatDate(end),
	}, mappingFields)
	if err != nil {
		return nil, err
	}
	if tbl.len() == 0 {
		return nil, nil
	}

	mappings := make([]Mapping, 0, tbl.len())
	for i := 0; i < tbl.len(); i++ {
		tradeDate, ok := parseDate(tbl.str(i, "trade_date"))
		if !ok {
			continue
		}
		mapped := tbl.str(i, "mapping_ts_code")
		if mapped == "" {
			continue
		}
		mappings = append(mappings, Mapping{TradeDate: tradeDate, MappedTSCode: mapped})
	}
	return mappings, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
