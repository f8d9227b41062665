package alerts

import (
	"sort"
	"strconv"
	"strings"

	"github.com/trogers1052/wheel-tracker/internal/models"
)

// DismissalState is the caller-held record of dismissed alert ids, bound to
// the snapshot fingerprint it was built against. The zero value dismisses
// nothing.
type DismissalState struct {
	Fingerprint string
	IDs         map[string]struct{}
}

// Fingerprint derives a stable identity for a snapshot from its per-ticker
// fetch timestamps. A genuine refresh changes the fingerprint; re-reading
// unchanged prices does not.
func Fingerprint(snapshot models.PriceSnapshot) string {
	parts := make([]string, 0, len(snapshot))
	for ticker, quote := range snapshot {
		if quote.LastFetched != nil {
			parts = append(parts, ticker+":"+strconv.FormatInt(quote.LastFetched.Unix(), 10))
		} else {
			parts = append(parts, ticker+":-")
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// Reduce advances the dismissal state for a new snapshot fingerprint. A
// changed fingerprint clears all dismissals; an unchanged one preserves them.
func Reduce(prev DismissalState, fingerprint string) DismissalState {
	if prev.Fingerprint == fingerprint && prev.IDs != nil {
		return prev
	}
	return DismissalState{Fingerprint: fingerprint, IDs: map[string]struct{}{}}
}

// Dismiss returns a copy of the state with the given alert ids added.
func (s DismissalState) Dismiss(ids ...string) DismissalState {
	next := DismissalState{Fingerprint: s.Fingerprint, IDs: make(map[string]struct{}, len(s.IDs)+len(ids))}
	for id := range s.IDs {
		next.IDs[id] = struct{}{}
	}
	for _, id := range ids {
		next.IDs[id] = struct{}{}
	}
	return next
}

// Active filters evaluated alerts down to the ones not dismissed.
func Active(alerts []Alert, s DismissalState) []Alert {
	if len(s.IDs) == 0 {
		return alerts
	}
	active := make([]Alert, 0, len(alerts))
	for _, a := range alerts {
		if _, dismissed := s.IDs[a.ID]; !dismissed {
			active = append(active, a)
		}
	}
	return active
}
