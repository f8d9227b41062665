// Package alerts turns a set of open positions and a price snapshot into
// alert records. Evaluation is pure: calling it twice with the same inputs
// yields the same alerts, and it never initiates price fetches itself.
package alerts

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trogers1052/wheel-tracker/internal/models"
)

// Alert kind constants
const (
	KindExpiration = "EXPIRATION"
	KindNearStrike = "NEAR_STRIKE"
	KindStalePrice = "STALE_PRICE"
)

// Alert is a single evaluated warning. IDs are stable across evaluations so
// dismissals can be matched up.
type Alert struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Ticker     string    `json:"ticker"`
	PositionID uuid.UUID `json:"position_id,omitempty"`
	Message    string    `json:"message"`
}

// Thresholds configures the evaluation rules
type Thresholds struct {
	ExpirationWarningDays int
	NearStrikeFraction    decimal.Decimal
	StalePriceMinutes     int
}

// DefaultThresholds returns the standard rule configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ExpirationWarningDays: 7,
		NearStrikeFraction:    decimal.NewFromFloat(0.05),
		StalePriceMinutes:     5,
	}
}

// Evaluate scans open positions against the snapshot and produces alerts.
// Positions that are not OPEN are ignored. Expiration alerts never depend on
// price data; near-strike and stale checks are skipped for tickers the
// snapshot has no data for. A stale alert is emitted at most once per ticker.
func Evaluate(positions []*models.Position, snapshot models.PriceSnapshot, th Thresholds, now time.Time) []Alert {
	var alerts []Alert
	staleSeen := make(map[string]bool)
	today := models.DateOf(now)

	for _, p := range positions {
		if p.Status != models.StatusOpen {
			continue
		}

		if a, ok := expirationAlert(p, today, th.ExpirationWarningDays); ok {
			alerts = append(alerts, a)
		}

		quote, ok := snapshot[p.Ticker]
		if !ok {
			continue
		}

		if quote.CurrentPrice != nil {
			if a, ok := nearStrikeAlert(p, *quote.CurrentPrice, th.NearStrikeFraction); ok {
				alerts = append(alerts, a)
			}
		}

		if quote.LastFetched != nil && !staleSeen[p.Ticker] {
			age := now.Sub(*quote.LastFetched)
			if age > time.Duration(th.StalePriceMinutes)*time.Minute {
				staleSeen[p.Ticker] = true
				alerts = append(alerts, Alert{
					ID:      "stale:" + p.Ticker,
					Kind:    KindStalePrice,
					Ticker:  p.Ticker,
					Message: fmt.Sprintf("price for %s is %d minutes old", p.Ticker, int(age.Minutes())),
				})
			}
		}
	}

	return alerts
}

func expirationAlert(p *models.Position, today models.Date, warnDays int) (Alert, bool) {
	days := today.DaysUntil(p.ExpirationDate)
	if days < 0 || days > warnDays {
		return Alert{}, false
	}

	var message string
	switch {
	case days == 0:
		message = fmt.Sprintf("%s %s expires today", p.Ticker, typeLabel(p.Type))
	case days == 1:
		message = fmt.Sprintf("%s %s expires in 1 day", p.Ticker, typeLabel(p.Type))
	default:
		message = fmt.Sprintf("%s %s expires in %d days", p.Ticker, typeLabel(p.Type), days)
	}

	return Alert{
		ID:         "exp:" + p.ID.String(),
		Kind:       KindExpiration,
		Ticker:     p.Ticker,
		PositionID: p.ID,
		Message:    message,
	}, true
}

func nearStrikeAlert(p *models.Position, price, fraction decimal.Decimal) (Alert, bool) {
	one := decimal.NewFromInt(1)

	var near bool
	switch p.Type {
	case models.TypeCoveredCall:
		// Price approaching the strike from below threatens assignment.
		near = price.GreaterThanOrEqual(p.StrikePrice.Mul(one.Sub(fraction)))
	case models.TypeCashSecuredPut:
		near = price.LessThanOrEqual(p.StrikePrice.Mul(one.Add(fraction)))
	default:
		return Alert{}, false
	}
	if !near {
		return Alert{}, false
	}

	return Alert{
		ID:         "strike:" + p.ID.String(),
		Kind:       KindNearStrike,
		Ticker:     p.Ticker,
		PositionID: p.ID,
		Message: fmt.Sprintf("%s at %s is near the %s strike of %s",
			p.Ticker, price.StringFixed(2), typeLabel(p.Type), p.StrikePrice.StringFixed(2)),
	}, true
}

func typeLabel(t models.PositionType) string {
	switch t {
	case models.TypeCoveredCall:
		return "covered call"
	case models.TypeCashSecuredPut:
		return "cash-secured put"
	}
	return string(t)
}
