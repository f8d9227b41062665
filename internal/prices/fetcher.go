package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/wheel-tracker/internal/models"
)

// Fetcher retrieves quotes for a set of tickers. Implementations must return
// an entry for every requested ticker; tickers that could not be quoted get
// nil price fields rather than an error.
type Fetcher interface {
	Fetch(ctx context.Context, tickers []string) (models.PriceSnapshot, error)
}

// HTTPFetcher pulls quotes from an external quote endpoint that accepts a
// comma-separated symbols parameter and returns a JSON quote list.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher builds a fetcher against the given quote endpoint.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type quotePayload struct {
	Quotes []struct {
		Symbol        string           `json:"symbol"`
		Price         *decimal.Decimal `json:"price"`
		ChangePercent *decimal.Decimal `json:"change_percent"`
	} `json:"quotes"`
}

// Fetch requests quotes for the tickers. A failed request yields a snapshot
// of empty quotes, matching the null-on-error policy of the price proxy.
func (f *HTTPFetcher) Fetch(ctx context.Context, tickers []string) (models.PriceSnapshot, error) {
	snapshot := emptySnapshot(tickers)
	if len(tickers) == 0 {
		return snapshot, nil
	}

	endpoint := f.baseURL + "?symbols=" + url.QueryEscape(strings.Join(tickers, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return snapshot, fmt.Errorf("failed to build quote request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return snapshot, fmt.Errorf("failed to fetch quotes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snapshot, fmt.Errorf("quote endpoint returned status %d", resp.StatusCode)
	}

	var payload quotePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return snapshot, fmt.Errorf("failed to decode quote response: %w", err)
	}

	now := time.Now().UTC()
	for _, q := range payload.Quotes {
		ticker := strings.ToUpper(q.Symbol)
		if _, requested := snapshot[ticker]; !requested {
			continue
		}
		fetched := now
		snapshot[ticker] = models.TickerQuote{
			Ticker:        ticker,
			CurrentPrice:  q.Price,
			ChangePercent: q.ChangePercent,
			LastFetched:   &fetched,
		}
	}

	return snapshot, nil
}

func emptySnapshot(tickers []string) models.PriceSnapshot {
	snapshot := make(models.PriceSnapshot, len(tickers))
	for _, t := range tickers {
		ticker := strings.ToUpper(t)
		snapshot[ticker] = models.TickerQuote{Ticker: ticker}
	}
	return snapshot
}
