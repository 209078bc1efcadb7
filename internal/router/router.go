package router

import (
	"net/http"

	"github.com/cx-tal-miterani/flight-surety/internal/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures the HTTP router. gatherer backs /metrics;
// pass nil to leave metrics unserved.
func NewRouter(h *handlers.Handler, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()

	// CORS middleware
	r.Use(corsMiddleware)

	// API routes
	api := r.PathPrefix("/api").Subrouter()

	// Administration
	api.HandleFunc("/operational", h.GetOperational).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/operational", h.SetOperational).Methods(http.MethodPut, http.MethodOptions)
	api.HandleFunc("/authorized-callers", h.AuthorizeCaller).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/authorized-callers/{address}", h.DeauthorizeCaller).Methods(http.MethodDelete, http.MethodOptions)
	api.HandleFunc("/balance", h.GetBalance).Methods(http.MethodGet, http.MethodOptions)

	// Airlines
	api.HandleFunc("/airlines", h.RegisterAirline).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/airlines/fund", h.FundAirline).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/airlines/{address}", h.GetAirline).Methods(http.MethodGet, http.MethodOptions)

	// Flights
	api.HandleFunc("/flights", h.RegisterFlight).Methods(http.MethodPost, http.MethodOptions)
	flight := api.PathPrefix("/flights/{airline}/{code}/{timestamp:[0-9]+}").Subrouter()
	flight.HandleFunc("", h.GetFlight).Methods(http.MethodGet, http.MethodOptions)
	flight.HandleFunc("/insurance", h.BuyInsurance).Methods(http.MethodPost, http.MethodOptions)
	flight.HandleFunc("/insurance/{passenger}", h.GetPolicy).Methods(http.MethodGet, http.MethodOptions)
	flight.HandleFunc("/status-requests", h.FetchFlightStatus).Methods(http.MethodPost, http.MethodOptions)
	flight.HandleFunc("/status-requests", h.GetStatusRequest).Methods(http.MethodGet, http.MethodOptions)
	flight.HandleFunc("/status", h.ProcessFlightStatus).Methods(http.MethodPost, http.MethodOptions)

	// Oracles
	api.HandleFunc("/oracles", h.RegisterOracle).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/oracles/{address}/indexes", h.GetOracleIndexes).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/oracle-responses", h.SubmitOracleResponse).Methods(http.MethodPost, http.MethodOptions)

	// Credits and payouts
	api.HandleFunc("/credits", h.CheckCredit).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/credits/{passenger}", h.PayoutPassenger).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/credits/{passenger}/withdrawals", h.Withdraw).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/transfers/pending", h.PendingTransfers).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/transfers/{id}/settled", h.MarkTransferSettled).Methods(http.MethodPost, http.MethodOptions)

	// WebSocket for real-time updates
	flight.HandleFunc("/ws", h.FlightEvents)
	api.HandleFunc("/ws", h.AllEvents)

	// Health check
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Caller-Address")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
