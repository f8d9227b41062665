package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/trogers1052/wheel-tracker/internal/alerts"
	"github.com/trogers1052/wheel-tracker/internal/dashboard"
	"github.com/trogers1052/wheel-tracker/internal/database"
	"github.com/trogers1052/wheel-tracker/internal/export"
	"github.com/trogers1052/wheel-tracker/internal/kafka"
	"github.com/trogers1052/wheel-tracker/internal/models"
	"github.com/trogers1052/wheel-tracker/internal/prices"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db         *database.DB
	producer   *kafka.Producer
	prices     *prices.Service
	thresholds alerts.Thresholds
}

// NewHandler creates a new Handler. producer may be nil when events are
// disabled.
func NewHandler(db *database.DB, producer *kafka.Producer, priceSvc *prices.Service, thresholds alerts.Thresholds) *Handler {
	return &Handler{
		db:         db,
		producer:   producer,
		prices:     priceSvc,
		thresholds: thresholds,
	}
}

// ListAccounts handles GET /accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	accounts, err := h.db.ListAccounts(uid)
	if err != nil {
		respondError(w, err)
		return
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}
	respondJSON(w, http.StatusOK, accounts)
}

// CreateAccount handles POST /accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req models.AccountCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, models.Invalid("", "invalid request body"))
		return
	}

	account, err := h.db.CreateAccount(uid, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, account)
}

// UpdateAccount handles PATCH /accounts/{id}
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req models.AccountUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, models.Invalid("", "invalid request body"))
		return
	}

	account, err := h.db.UpdateAccount(uid, id, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

// ListPositions handles GET /positions
func (h *Handler) ListPositions(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		respondError(w, err)
		return
	}

	positions, err := h.db.ListPositions(uid, filter)
	if err != nil {
		respondError(w, err)
		return
	}
	if positions == nil {
		positions = []*models.Position{}
	}
	respondJSON(w, http.StatusOK, positions)
}

// CreatePosition handles POST /positions
func (h *Handler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req models.PositionCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, models.Invalid("", "invalid request body"))
		return
	}

	position, err := h.db.CreatePosition(uid, &req)
	if err != nil {
		respondError(w, err)
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishPositionOpened(r.Context(), position); err != nil {
			log.Warn().Err(err).Str("position_id", position.ID.String()).Msg("failed to publish position opened event")
		}
	}

	respondJSON(w, http.StatusCreated, position)
}

// UpdatePosition handles PATCH /positions/{id}
func (h *Handler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req models.PositionUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, models.Invalid("", "invalid request body"))
		return
	}

	position, err := h.db.UpdatePosition(uid, id, &req)
	if err != nil {
		respondError(w, err)
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishPositionUpdated(r.Context(), position); err != nil {
			log.Warn().Err(err).Str("position_id", position.ID.String()).Msg("failed to publish position updated event")
		}
	}

	respondJSON(w, http.StatusOK, position)
}

// ClosePosition handles POST /positions/{id}/close
func (h *Handler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req models.PositionClose
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, models.Invalid("", "invalid request body"))
		return
	}

	position, err := h.db.ClosePosition(uid, id, &req)
	if err != nil {
		respondError(w, err)
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishPositionClosed(r.Context(), position); err != nil {
			log.Warn().Err(err).Str("position_id", position.ID.String()).Msg("failed to publish position closed event")
		}
	}

	respondJSON(w, http.StatusOK, position)
}

// RollPosition handles POST /positions/{id}/roll
func (h *Handler) RollPosition(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req models.PositionRoll
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, models.Invalid("", "invalid request body"))
		return
	}

	result, err := h.db.RollPosition(uid, id, &req)
	if err != nil {
		respondError(w, err)
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishPositionRolled(r.Context(), result.Closed, result.Opened); err != nil {
			log.Warn().Err(err).Str("roll_group_id", result.Opened.RollGroupID.String()).Msg("failed to publish position rolled event")
		}
	}

	respondJSON(w, http.StatusOK, result)
}

// DashboardSummary handles GET /dashboard/summary
func (h *Handler) DashboardSummary(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	window, err := parseWindow(r)
	if err != nil {
		respondError(w, err)
		return
	}

	positions, err := h.db.ListPositions(uid, &models.PositionFilter{})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dashboard.Summarize(positions, window, time.Now()))
}

// DashboardByTicker handles GET /dashboard/by-ticker
func (h *Handler) DashboardByTicker(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	window, err := parseWindow(r)
	if err != nil {
		respondError(w, err)
		return
	}

	positions, err := h.db.ListPositions(uid, &models.PositionFilter{})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dashboard.ByTicker(positions, window))
}

// GetPrices handles GET /prices?tickers=AAPL,MSFT
func (h *Handler) GetPrices(w http.ResponseWriter, r *http.Request) {
	if _, err := userID(r); err != nil {
		respondError(w, err)
		return
	}

	raw := r.URL.Query().Get("tickers")
	var tickers []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tickers = append(tickers, strings.ToUpper(t))
		}
	}
	if len(tickers) == 0 {
		respondJSON(w, http.StatusOK, models.PriceResponse{Prices: []models.TickerQuote{}})
		return
	}

	snapshot, err := h.prices.Snapshot(r.Context(), tickers)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := models.PriceResponse{Prices: make([]models.TickerQuote, 0, len(tickers))}
	for _, t := range tickers {
		resp.Prices = append(resp.Prices, snapshot[t])
	}
	respondJSON(w, http.StatusOK, resp)
}

// alertsResponse pairs the evaluated alerts with the snapshot fingerprint the
// client needs to key its dismissal state.
type alertsResponse struct {
	Alerts      []alerts.Alert `json:"alerts"`
	Fingerprint string         `json:"fingerprint"`
}

// GetAlerts handles GET /alerts: evaluates the caller's open positions
// against the current price snapshot.
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	open := models.StatusOpen
	positions, err := h.db.ListPositions(uid, &models.PositionFilter{Status: &open})
	if err != nil {
		respondError(w, err)
		return
	}

	tickerSet := make(map[string]bool)
	var tickers []string
	for _, p := range positions {
		if !tickerSet[p.Ticker] {
			tickerSet[p.Ticker] = true
			tickers = append(tickers, p.Ticker)
		}
	}

	snapshot, err := h.prices.Snapshot(r.Context(), tickers)
	if err != nil {
		respondError(w, err)
		return
	}

	evaluated := alerts.Evaluate(positions, snapshot, h.thresholds, time.Now())
	if evaluated == nil {
		evaluated = []alerts.Alert{}
	}
	respondJSON(w, http.StatusOK, alertsResponse{
		Alerts:      evaluated,
		Fingerprint: alerts.Fingerprint(snapshot),
	})
}

// ExportPositionsCSV handles GET /export/positions.csv
func (h *Handler) ExportPositionsCSV(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		respondError(w, err)
		return
	}

	positions, err := h.db.ListPositions(uid, filter)
	if err != nil {
		respondError(w, err)
		return
	}

	filename := fmt.Sprintf("positions_%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := export.WritePositions(w, positions); err != nil {
		log.Error().Err(err).Msg("csv export failed")
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, models.Invalid("id", "must be a valid uuid")
	}
	return id, nil
}

func parseFilter(r *http.Request) (*models.PositionFilter, error) {
	q := r.URL.Query()
	filter := &models.PositionFilter{
		Ticker: q.Get("ticker"),
		Sort:   q.Get("sort"),
		Order:  q.Get("order"),
	}

	if v := q.Get("status"); v != "" {
		status := models.PositionStatus(strings.ToUpper(v))
		if !status.Valid() {
			return nil, models.Invalid("status", fmt.Sprintf("unknown status %q", v))
		}
		filter.Status = &status
	}
	if v := q.Get("type"); v != "" {
		typ := models.PositionType(strings.ToUpper(v))
		if !typ.Valid() {
			return nil, models.Invalid("type", fmt.Sprintf("unknown position type %q", v))
		}
		filter.Type = &typ
	}
	if v := q.Get("account_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, models.Invalid("account_id", "must be a valid uuid")
		}
		filter.AccountID = &id
	}

	var err error
	if filter.ExpirationStart, err = parseDateParam(q.Get("expiration_start"), "expiration_start"); err != nil {
		return nil, err
	}
	if filter.ExpirationEnd, err = parseDateParam(q.Get("expiration_end"), "expiration_end"); err != nil {
		return nil, err
	}

	return filter, nil
}

func parseWindow(r *http.Request) (dashboard.Window, error) {
	q := r.URL.Query()
	var window dashboard.Window
	var err error

	if window.Start, err = parseDateParam(q.Get("start"), "start"); err != nil {
		return window, err
	}
	if window.End, err = parseDateParam(q.Get("end"), "end"); err != nil {
		return window, err
	}
	return window, nil
}

func parseDateParam(value, field string) (*models.Date, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return nil, models.Invalid(field, "must be a date in YYYY-MM-DD format")
	}
	d := models.DateOf(t)
	return &d, nil
}
