// Package prices assembles price snapshots for the alert evaluator and the
// prices endpoint. Quotes are cached in redis with a short TTL so repeated
// dashboard polls do not hammer the upstream quote source.
package prices

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/trogers1052/wheel-tracker/internal/models"
)

const cacheKeyPrefix = "price:"

// Service serves price snapshots from the cache, falling back to the fetcher
type Service struct {
	fetcher Fetcher
	cache   *redis.Client
	ttl     time.Duration
	log     zerolog.Logger
}

// NewService builds a price service. ttl bounds how long a cached quote is
// served before a refetch.
func NewService(fetcher Fetcher, cache *redis.Client, ttl time.Duration, log zerolog.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		cache:   cache,
		ttl:     ttl,
		log:     log,
	}
}

// Snapshot returns quotes for the given tickers, serving cached entries and
// fetching only the misses. Every requested ticker gets an entry; quotes
// that cannot be obtained carry nil price fields.
func (s *Service) Snapshot(ctx context.Context, tickers []string) (models.PriceSnapshot, error) {
	snapshot := make(models.PriceSnapshot, len(tickers))
	var misses []string

	for _, t := range tickers {
		ticker := strings.ToUpper(strings.TrimSpace(t))
		if ticker == "" {
			continue
		}
		if _, seen := snapshot[ticker]; seen {
			continue
		}

		quote, ok := s.cached(ctx, ticker)
		if ok {
			snapshot[ticker] = quote
			continue
		}
		misses = append(misses, ticker)
	}

	if len(misses) == 0 {
		return snapshot, nil
	}

	fetched, err := s.fetcher.Fetch(ctx, misses)
	if err != nil {
		s.log.Warn().Err(err).Strs("tickers", misses).Msg("quote fetch failed")
	}
	for _, ticker := range misses {
		quote, ok := fetched[ticker]
		if !ok {
			quote = models.TickerQuote{Ticker: ticker}
		}
		snapshot[ticker] = quote
		s.store(ctx, ticker, quote)
	}

	return snapshot, nil
}

func (s *Service) cached(ctx context.Context, ticker string) (models.TickerQuote, bool) {
	data, err := s.cache.Get(ctx, cacheKeyPrefix+ticker).Bytes()
	if err == redis.Nil {
		return models.TickerQuote{}, false
	}
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("price cache read failed")
		return models.TickerQuote{}, false
	}

	var quote models.TickerQuote
	if err := json.Unmarshal(data, &quote); err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("price cache entry corrupt")
		return models.TickerQuote{}, false
	}
	return quote, true
}

func (s *Service) store(ctx context.Context, ticker string, quote models.TickerQuote) {
	data, err := json.Marshal(quote)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeyPrefix+ticker, data, s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("price cache write failed")
	}
}
