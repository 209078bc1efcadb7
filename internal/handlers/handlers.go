package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/cx-tal-miterani/flight-surety/internal/service"
	"github.com/cx-tal-miterani/flight-surety/internal/websocket"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
)

// CallerHeader carries the address a request acts for.
const CallerHeader = "X-Caller-Address"

// Handler contains HTTP handlers for the API
type Handler struct {
	suretyService service.SuretyService
	hub           *websocket.Hub
}

// NewHandler creates a new Handler instance. hub may be nil when event
// streaming is not served.
func NewHandler(suretyService service.SuretyService, hub *websocket.Hub) *Handler {
	return &Handler{
		suretyService: suretyService,
		hub:           hub,
	}
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

// respondLedgerError maps ledger and service errors onto HTTP statuses.
func respondLedgerError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrTransferFailed):
		return http.StatusBadGateway
	case errors.Is(err, ledger.ErrUnauthorized), errors.Is(err, ledger.ErrNotFunded):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrPremiumCapExceeded),
		errors.Is(err, ledger.ErrInvalidAddress),
		errors.Is(err, ledger.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrDuplicateVote),
		errors.Is(err, ledger.ErrDuplicateResponse),
		errors.Is(err, ledger.ErrAlreadyRegistered),
		errors.Is(err, ledger.ErrFlightFinalized):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrFlightNotRegistered),
		errors.Is(err, ledger.ErrUnknownRequest),
		errors.Is(err, ledger.ErrNoCredit),
		errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrNotOperational):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrNoOutbox):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Request helpers

func callerFrom(r *http.Request) (ledger.Address, error) {
	raw := r.Header.Get(CallerHeader)
	if raw == "" {
		return "", fmt.Errorf("%s header is required", CallerHeader)
	}
	return ledger.ParseAddress(raw)
}

func addressVar(r *http.Request, name string) (ledger.Address, error) {
	return ledger.ParseAddress(mux.Vars(r)[name])
}

func flightKeyFrom(r *http.Request) (ledger.FlightKey, error) {
	vars := mux.Vars(r)
	ts, err := strconv.ParseInt(vars["timestamp"], 10, 64)
	if err != nil {
		return ledger.FlightKey{}, fmt.Errorf("invalid flight timestamp %q", vars["timestamp"])
	}
	return service.ParseFlightKey(models.FlightKey{
		Airline:   vars["airline"],
		Code:      vars["code"],
		Timestamp: ts,
	})
}

func decodeValue(r *http.Request) (*uint256.Int, error) {
	var req models.ValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid request body")
	}
	return ledger.ParseAmount(req.Value)
}

// GetOperational handles GET /api/operational
func (h *Handler) GetOperational(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.OperationalResponse{Operational: h.suretyService.IsOperational(r.Context())})
}

// SetOperational handles PUT /api/operational
func (h *Handler) SetOperational(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.OperationalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.suretyService.SetOperatingStatus(r.Context(), req.Operational, caller); err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, models.OperationalResponse{Operational: req.Operational})
}

// AuthorizeCaller handles POST /api/authorized-callers
func (h *Handler) AuthorizeCaller(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.AuthorizeCallerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	addr, err := ledger.ParseAddress(req.Address)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.suretyService.AuthorizeCaller(r.Context(), addr, caller); err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"address": addr.String(), "authorized": true})
}

// DeauthorizeCaller handles DELETE /api/authorized-callers/{address}
func (h *Handler) DeauthorizeCaller(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	addr, err := addressVar(r, "address")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.suretyService.DeauthorizeCaller(r.Context(), addr, caller); err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"address": addr.String(), "authorized": false})
}

// RegisterAirline handles POST /api/airlines
func (h *Handler) RegisterAirline(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.RegisterAirlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	candidate, err := ledger.ParseAddress(req.Airline)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	admission, err := h.suretyService.RegisterAirline(r.Context(), candidate, caller)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	status := http.StatusAccepted
	if admission.Registered {
		status = http.StatusCreated
	}
	respondJSON(w, status, admission)
}

// GetAirline handles GET /api/airlines/{address}
func (h *Handler) GetAirline(w http.ResponseWriter, r *http.Request) {
	addr, err := addressVar(r, "address")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	airline, err := h.suretyService.GetAirline(r.Context(), addr)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, airline)
}

// FundAirline handles POST /api/airlines/fund
func (h *Handler) FundAirline(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	value, err := decodeValue(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	airline, err := h.suretyService.Fund(r.Context(), caller, value)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, airline)
}

// RegisterFlight handles POST /api/flights
func (h *Handler) RegisterFlight(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.RegisterFlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "Flight code is required")
		return
	}
	if req.Timestamp <= 0 {
		respondError(w, http.StatusBadRequest, "Flight timestamp is required")
		return
	}

	key := ledger.FlightKey{Airline: caller, Code: req.Code, Timestamp: req.Timestamp}
	flight, err := h.suretyService.RegisterFlight(r.Context(), key, caller)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, flight)
}

// GetFlight handles GET /api/flights/{airline}/{code}/{timestamp}
func (h *Handler) GetFlight(w http.ResponseWriter, r *http.Request) {
	key, err := flightKeyFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	flight, err := h.suretyService.GetFlight(r.Context(), key)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, flight)
}

// BuyInsurance handles POST /api/flights/{airline}/{code}/{timestamp}/insurance
func (h *Handler) BuyInsurance(w http.ResponseWriter, r *http.Request) {
	passenger, err := callerFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	key, err := flightKeyFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	value, err := decodeValue(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	receipt, err := h.suretyService.Buy(r.Context(), key, passenger, value)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, receipt)
}

// GetPolicy handles GET /api/flights/{airline}/{code}/{timestamp}/insurance/{passenger}
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	key, err := flightKeyFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	passenger, err := addressVar(r, "passenger")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	policy, err := h.suretyService.BoughtPassenger(r.Context(), passenger, key)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, policy)
}

// FetchFlightStatus handles POST /api/flights/{airline}/{code}/{timestamp}/status-requests
func (h *Handler) FetchFlightStatus(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	key, err := flightKeyFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := h.suretyService.FetchFlightStatus(r.Context(), key, caller)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, req)
}

// GetStatusRequest handles GET /api/flights/{airline}/{code}/{timestamp}/status-requests
func (h *Handler) GetStatusRequest(w http.ResponseWriter, r *http.Request) {
	key, err := flightKeyFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := h.suretyService.GetStatusRequest(r.Context(), key)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// ProcessFlightStatus handles POST /api/flights/{airline}/{code}/{timestamp}/status
func (h *Handler) ProcessFlightStatus(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	key, err := flightKeyFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.ProcessStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	flight, err := h.suretyService.ProcessFlightStatus(r.Context(), key, ledger.StatusCode(req.Status), caller)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, flight)
}

// FlightEvents handles GET /api/flights/{airline}/{code}/{timestamp}/ws
func (h *Handler) FlightEvents(w http.ResponseWriter, r *http.Request) {
	key, err := flightKeyFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.hub == nil {
		respondError(w, http.StatusNotImplemented, "event streaming is disabled")
		return
	}
	h.hub.ServeFlight(w, r, key)
}

// AllEvents handles GET /api/ws
func (h *Handler) AllEvents(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusNotImplemented, "event streaming is disabled")
		return
	}
	h.hub.ServeAll(w, r)
}

// RegisterOracle handles POST /api/oracles
func (h *Handler) RegisterOracle(w http.ResponseWriter, r *http.Request) {
	oracle, err := callerFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	value, err := decodeValue(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	indexes, err := h.suretyService.RegisterOracle(r.Context(), oracle, value)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, indexes)
}

// GetOracleIndexes handles GET /api/oracles/{address}/indexes
func (h *Handler) GetOracleIndexes(w http.ResponseWriter, r *http.Request) {
	oracle, err := addressVar(r, "address")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	indexes, err := h.suretyService.GetOracleIndexes(r.Context(), oracle)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, indexes)
}

// SubmitOracleResponse handles POST /api/oracle-responses
func (h *Handler) SubmitOracleResponse(w http.ResponseWriter, r *http.Request) {
	oracle, err := callerFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.OracleResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	res, err := h.suretyService.SubmitOracleResponse(r.Context(), &req, oracle)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// CheckCredit handles GET /api/credits
func (h *Handler) CheckCredit(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, h.suretyService.CheckCredit(r.Context(), caller))
}

// PayoutPassenger handles GET /api/credits/{passenger}
func (h *Handler) PayoutPassenger(w http.ResponseWriter, r *http.Request) {
	passenger, err := addressVar(r, "passenger")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, h.suretyService.CheckCredit(r.Context(), passenger))
}

// Withdraw handles POST /api/credits/{passenger}/withdrawals
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	passenger, err := addressVar(r, "passenger")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.WithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	key, err := service.ParseFlightKey(req.Flight)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.suretyService.Pay(r.Context(), passenger, key, caller)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GetBalance handles GET /api/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.suretyService.Balance(r.Context()))
}

// PendingTransfers handles GET /api/transfers/pending
func (h *Handler) PendingTransfers(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	transfers, err := h.suretyService.PendingTransfers(r.Context(), caller)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transfers)
}

// MarkTransferSettled handles POST /api/transfers/{id}/settled
func (h *Handler) MarkTransferSettled(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.suretyService.MarkSettled(r.Context(), id, caller); err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "settled"})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"operational": h.suretyService.IsOperational(r.Context()),
		"time":        time.Now().Format(time.RFC3339),
	})
}
