package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes. Everything under /api/v1 requires a
// valid bearer token; /health is public.
func SetupRoutes(handler *Handler, auth *AuthMiddleware) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Handler)

	// Account routes
	api.HandleFunc("/accounts", handler.ListAccounts).Methods("GET")
	api.HandleFunc("/accounts", handler.CreateAccount).Methods("POST")
	api.HandleFunc("/accounts/{id}", handler.UpdateAccount).Methods("PATCH")

	// Position routes
	api.HandleFunc("/positions", handler.ListPositions).Methods("GET")
	api.HandleFunc("/positions", handler.CreatePosition).Methods("POST")
	api.HandleFunc("/positions/{id}", handler.UpdatePosition).Methods("PATCH")
	api.HandleFunc("/positions/{id}/close", handler.ClosePosition).Methods("POST")
	api.HandleFunc("/positions/{id}/roll", handler.RollPosition).Methods("POST")

	// Dashboard routes
	api.HandleFunc("/dashboard/summary", handler.DashboardSummary).Methods("GET")
	api.HandleFunc("/dashboard/by-ticker", handler.DashboardByTicker).Methods("GET")

	// Prices and alerts
	api.HandleFunc("/prices", handler.GetPrices).Methods("GET")
	api.HandleFunc("/alerts", handler.GetAlerts).Methods("GET")

	// CSV export
	api.HandleFunc("/export/positions.csv", handler.ExportPositionsCSV).Methods("GET")

	return r
}
