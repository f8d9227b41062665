// Package dashboard groups positions into the summary and per-ticker views.
// Premium figures for closed positions use premium_net: fees already paid are
// not counted as income.
package dashboard

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/wheel-tracker/internal/metrics"
	"github.com/trogers1052/wheel-tracker/internal/models"
)

const upcomingWindowDays = 7

// Window bounds an aggregation by open_date. Nil bounds are unbounded.
type Window struct {
	Start *models.Date
	End   *models.Date
}

// Contains reports whether the position's open date falls inside the window.
func (w Window) Contains(p *models.Position) bool {
	if w.Start != nil && p.OpenDate.Before(w.Start.Time) {
		return false
	}
	if w.End != nil && p.OpenDate.After(w.End.Time) {
		return false
	}
	return true
}

// Summary is the dashboard headline view
type Summary struct {
	TotalPremiumCollected decimal.Decimal    `json:"total_premium_collected"`
	PremiumMTD            decimal.Decimal    `json:"premium_mtd"`
	OpenPositionCount     int                `json:"open_position_count"`
	UpcomingExpirations   []*models.Position `json:"upcoming_expirations"`
}

// TickerSummary aggregates one ticker's closed trades
type TickerSummary struct {
	Ticker           string           `json:"ticker"`
	TotalPremium     decimal.Decimal  `json:"total_premium"`
	TradeCount       int              `json:"trade_count"`
	AvgAnnualizedROC *decimal.Decimal `json:"avg_annualized_roc,omitempty"`
}

// Summarize builds the headline view. Total premium is windowed; MTD always
// starts at the first of the current month regardless of the window; open
// count and upcoming expirations are not windowed at all.
func Summarize(positions []*models.Position, window Window, now time.Time) Summary {
	today := models.DateOf(now)
	mtdStart := models.NewDate(today.Year(), today.Month(), 1)
	cutoff := today.AddDays(upcomingWindowDays)

	s := Summary{
		TotalPremiumCollected: decimal.Zero,
		PremiumMTD:            decimal.Zero,
		UpcomingExpirations:   []*models.Position{},
	}

	for _, p := range positions {
		if p.Status == models.StatusOpen {
			s.OpenPositionCount++
			days := today.DaysUntil(p.ExpirationDate)
			if days >= 0 && !p.ExpirationDate.After(cutoff.Time) {
				upcoming := *p
				metrics.Apply(&upcoming)
				s.UpcomingExpirations = append(s.UpcomingExpirations, &upcoming)
			}
			continue
		}

		net := metrics.Compute(p).PremiumNet
		if window.Contains(p) {
			s.TotalPremiumCollected = s.TotalPremiumCollected.Add(net)
		}
		if !p.OpenDate.Before(mtdStart.Time) {
			s.PremiumMTD = s.PremiumMTD.Add(net)
		}
	}

	sort.SliceStable(s.UpcomingExpirations, func(i, j int) bool {
		return s.UpcomingExpirations[i].ExpirationDate.Before(s.UpcomingExpirations[j].ExpirationDate.Time)
	})

	return s
}

// ByTicker aggregates closed positions in the window per ticker, sorted by
// total premium descending. Positions without a defined annualized ROC are
// excluded from the average, not counted as zero.
func ByTicker(positions []*models.Position, window Window) []TickerSummary {
	type bucket struct {
		premium decimal.Decimal
		count   int
		rocSum  decimal.Decimal
		rocN    int
	}
	buckets := make(map[string]*bucket)

	for _, p := range positions {
		if p.Status != models.StatusClosed || !window.Contains(p) {
			continue
		}
		b := buckets[p.Ticker]
		if b == nil {
			b = &bucket{premium: decimal.Zero, rocSum: decimal.Zero}
			buckets[p.Ticker] = b
		}

		derived := metrics.Compute(p)
		b.premium = b.premium.Add(derived.PremiumNet)
		b.count++
		if derived.AnnualizedROC != nil {
			b.rocSum = b.rocSum.Add(*derived.AnnualizedROC)
			b.rocN++
		}
	}

	summaries := make([]TickerSummary, 0, len(buckets))
	for ticker, b := range buckets {
		ts := TickerSummary{
			Ticker:       ticker,
			TotalPremium: b.premium,
			TradeCount:   b.count,
		}
		if b.rocN > 0 {
			avg := b.rocSum.Div(decimal.NewFromInt(int64(b.rocN)))
			ts.AvgAnnualizedROC = &avg
		}
		summaries = append(summaries, ts)
	}

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].TotalPremium.Equal(summaries[j].TotalPremium) {
			return summaries[i].TotalPremium.GreaterThan(summaries[j].TotalPremium)
		}
		return summaries[i].Ticker < summaries[j].Ticker
	})

	return summaries
}
