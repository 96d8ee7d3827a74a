// Package selector picks the main (most liquid) contract of a product.
package selector

import "time"

// Scoring weights. Open interest is a steadier liquidity signal than
// single-day volume, so it carries the larger share.
const (
	VolumeWeight       = 0.4
	OpenInterestWeight = 0.6
)

// Candidate is one valid contract of a product with its activity figures
// at the trading date under consideration. Missing provider data is
// represented as zero.
type Candidate struct {
	TSCode       string
	Volume       float64
	OpenInterest float64
	DelistDate   time.Time
}

// Score returns the liquidity score used for main-contract selection.
func (c Candidate) Score() float64 {
	return c.Volume*VolumeWeight + c.OpenInterest*OpenInterestWeight
}

// Select returns the candidate with the strictly greatest score. On an
// exact tie the first-seen candidate wins, so the caller must supply
// candidates in a stable order.
//
// If no candidate has positive volume or open interest the scores carry
// no signal; the candidate with the nearest future delist date is chosen
// instead. An empty candidate set yields ok=false, which is a legitimate
// outcome rather than an error.
func Select(candidates []Candidate) (best Candidate, ok bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}

	hasActivity := false
	for _, c := range candidates {
		if c.Volume > 0 || c.OpenInterest > 0 {
			hasActivity = true
			break
		}
	}

	if !hasActivity {
		return nearestDelist(candidates), true
	}

	best = candidates[0]
	for _, c := range candidates[1:] {
		if c.Score() > best.Score() {
			best = c
		}
	}
	return best, true
}

// nearestDelist returns the candidate whose delist date comes first.
// Ties keep the first-seen candidate.
func nearestDelist(candidates []Candidate) Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.DelistDate.Before(best.DelistDate) {
			best = c
		}
	}
	return best
}
