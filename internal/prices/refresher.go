package prices

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickerSource supplies the tickers worth refreshing, typically the distinct
// tickers across all open positions.
type TickerSource interface {
	OpenTickers() ([]string, error)
}

// Refresher keeps the price cache warm on a fixed interval so the alert
// evaluator always sees a recent snapshot.
type Refresher struct {
	svc      *Service
	source   TickerSource
	interval time.Duration
	log      zerolog.Logger
}

// NewRefresher builds a refresher ticking at the given interval.
func NewRefresher(svc *Service, source TickerSource, interval time.Duration, log zerolog.Logger) *Refresher {
	return &Refresher{
		svc:      svc,
		source:   source,
		interval: interval,
		log:      log,
	}
}

// Run refreshes until ctx is canceled. Failures are logged and the next tick
// tries again; a refresh never blocks request handling.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	tickers, err := r.source.OpenTickers()
	if err != nil {
		r.log.Error().Err(err).Msg("failed to list open tickers")
		return
	}
	if len(tickers) == 0 {
		return
	}

	if _, err := r.svc.Snapshot(ctx, tickers); err != nil {
		r.log.Error().Err(err).Msg("price refresh failed")
		return
	}
	r.log.Debug().Int("tickers", len(tickers)).Msg("price snapshot refreshed")
}
