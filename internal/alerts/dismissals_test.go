package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trogers1052/wheel-tracker/internal/models"
)

func TestFingerprint(t *testing.T) {
	fetched := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)

	t.Run("stable across map iteration order", func(t *testing.T) {
		snapshot := models.PriceSnapshot{
			"AAPL": {Ticker: "AAPL", LastFetched: &fetched},
			"MSFT": {Ticker: "MSFT", LastFetched: &fetched},
		}
		assert.Equal(t, Fingerprint(snapshot), Fingerprint(snapshot))
	})

	t.Run("changes when a quote is refreshed", func(t *testing.T) {
		later := fetched.Add(time.Minute)
		before := models.PriceSnapshot{"AAPL": {Ticker: "AAPL", LastFetched: &fetched}}
		after := models.PriceSnapshot{"AAPL": {Ticker: "AAPL", LastFetched: &later}}

		assert.NotEqual(t, Fingerprint(before), Fingerprint(after))
	})

	t.Run("missing fetch timestamps are represented", func(t *testing.T) {
		snapshot := models.PriceSnapshot{"AAPL": {Ticker: "AAPL"}}
		assert.Equal(t, "AAPL:-", Fingerprint(snapshot))
	})
}

func TestDismissals(t *testing.T) {
	t.Run("reduce preserves dismissals for an unchanged fingerprint", func(t *testing.T) {
		state := Reduce(DismissalState{}, "fp1").Dismiss("exp:1", "strike:2")

		next := Reduce(state, "fp1")

		assert.Equal(t, state.IDs, next.IDs)
	})

	t.Run("reduce clears dismissals on a new fingerprint", func(t *testing.T) {
		state := Reduce(DismissalState{}, "fp1").Dismiss("exp:1")

		next := Reduce(state, "fp2")

		assert.Empty(t, next.IDs)
		assert.Equal(t, "fp2", next.Fingerprint)
	})

	t.Run("dismiss does not mutate the previous state", func(t *testing.T) {
		state := Reduce(DismissalState{}, "fp1")
		next := state.Dismiss("exp:1")

		assert.Empty(t, state.IDs)
		assert.Len(t, next.IDs, 1)
	})

	t.Run("active filters dismissed alerts", func(t *testing.T) {
		all := []Alert{
			{ID: "exp:1", Kind: KindExpiration},
			{ID: "strike:2", Kind: KindNearStrike},
		}
		state := Reduce(DismissalState{}, "fp1").Dismiss("exp:1")

		active := Active(all, state)

		assert.Len(t, active, 1)
		assert.Equal(t, "strike:2", active[0].ID)
	})

	t.Run("active with zero state passes everything", func(t *testing.T) {
		all := []Alert{{ID: "exp:1"}}
		assert.Equal(t, all, Active(all, DismissalState{}))
	})
}
