package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/futsync/internal/domain"
	"github.com/wonny/futsync/internal/store"
)

// tsCodeSuffix maps exchange codes to the provider's instrument-code
// suffix, used to build continuous main-contract codes like "CU.SHF".
var tsCodeSuffix = map[string]string{
	"CFFEX": "CFX",
	"SHFE":  "SHF",
	"DCE":   "DCE",
	"CZCE":  "ZCE",
	"INE":   "INE",
	"GFEX":  "GFE",
}

// SyncMainContractHistory backfills main-contract selections for the
// past `days` calendar days from the provider's own mapping series.
// Activity figures are attached from stored bars where available; the
// mapping itself is authoritative for which instrument was main.
func (o *Orchestrator) SyncMainContractHistory(ctx context.Context, days int, progress ProgressFunc) (Result, error) {
	if err := o.acquire(); err != nil {
		return Result{}, err
	}
	defer o.release()

	result, err := o.syncMainContractHistory(ctx, days, progress)
	if err != nil {
		notify(progress, -1, err.Error())
		return Result{}, err
	}
	return result, nil
}

func (o *Orchestrator) syncMainContractHistory(ctx context.Context, days int, progress ProgressFunc) (Result, error) {
	tradeDate := o.calendar.LastTradingDate(o.now())
	start := tradeDate.AddDate(0, 0, -days)
	result := Result{TradeDate: tradeDate}

	products, err := o.contracts.Products(ctx, tradeDate)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list products: %w", err)
	}

	result.Total = len(products)
	notify(progress, 0, fmt.Sprintf("주력 계약 이력 수집 시작: 품목 %d건, %d일", len(products), days))

	for i, p := range products {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		if err := o.backfillOneProduct(ctx, p, start, result.TradeDate, &result); err != nil {
			result.Failed++
			o.log.WithError(err).WithFields(map[string]interface{}{
				"exchange": p.Exchange,
				"fut_code": p.FutCode,
			}).Warn("Main contract history failed for product")
		}

		notify(progress, (i+1)*100/len(products),
			fmt.Sprintf("주력 계약 이력 %d/%d", i+1, len(products)))
	}

	notify(progress, 100, fmt.Sprintf("주력 계약 이력 완료: 성공 %d, 스킵 %d, 실패 %d",
		result.Success, result.Skipped, result.Failed))
	return result, nil
}

func (o *Orchestrator) backfillOneProduct(ctx context.Context, p store.Product, start, end time.Time, result *Result) error {
	suffix, ok := tsCodeSuffix[p.Exchange]
	if !ok {
		// Unknown exchange has no continuous code. Logged, not fatal.
		result.Skipped++
		return nil
	}
	continuousCode := p.FutCode + "." + suffix

	mappings, err := o.provider.FetchMainMapping(ctx, continuousCode, start, end)
	if err != nil {
		return err
	}
	if len(mappings) == 0 {
		result.Skipped++
		return nil
	}

	for _, m := range mappings {
		main := domain.MainContract{
			TradeDate: m.TradeDate,
			Exchange:  p.Exchange,
			FutCode:   p.FutCode,
			TSCode:    m.MappedTSCode,
		}

		q, err := o.quotes.GetByCodeAndDate(ctx, m.MappedTSCode, m.TradeDate)
		if err != nil {
			return err
		}
		if q != nil {
			if q.Volume != nil {
				main.Volume = *q.Volume
			}
			if q.Amount != nil {
				main.Amount = *q.Amount
			}
			if q.OpenInterest != nil {
				main.OpenInterest = *q.OpenInterest
			}
		}

		if err := o.mains.Upsert(ctx, main); err != nil {
			return err
		}
	}

	result.Success++
	return nil
}
