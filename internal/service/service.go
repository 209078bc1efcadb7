package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/cx-tal-miterani/flight-surety/internal/database"
	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"github.com/holiman/uint256"
)

// ErrNoOutbox is returned by the transfer calls when the ledger runs on the
// in-memory journal, which keeps no settlement outbox.
var ErrNoOutbox = errors.New("payout outbox not configured")

// Outbox is the settlement side of a persistent store.
type Outbox interface {
	PendingTransfers(ctx context.Context) ([]database.PayoutTransfer, error)
	MarkSettled(ctx context.Context, id string) error
}

// SuretyService defines the flight surety service interface
type SuretyService interface {
	IsOperational(ctx context.Context) bool
	SetOperatingStatus(ctx context.Context, operational bool, caller ledger.Address) error
	AuthorizeCaller(ctx context.Context, addr, caller ledger.Address) error
	DeauthorizeCaller(ctx context.Context, addr, caller ledger.Address) error

	RegisterAirline(ctx context.Context, candidate, caller ledger.Address) (*models.AdmissionResponse, error)
	GetAirline(ctx context.Context, addr ledger.Address) (*models.Airline, error)
	Fund(ctx context.Context, airline ledger.Address, value *uint256.Int) (*models.Airline, error)

	RegisterFlight(ctx context.Context, key ledger.FlightKey, caller ledger.Address) (*models.Flight, error)
	GetFlight(ctx context.Context, key ledger.FlightKey) (*models.Flight, error)

	Buy(ctx context.Context, key ledger.FlightKey, passenger ledger.Address, value *uint256.Int) (*models.PurchaseResponse, error)
	BoughtPassenger(ctx context.Context, passenger ledger.Address, key ledger.FlightKey) (*models.PolicyResponse, error)

	FetchFlightStatus(ctx context.Context, key ledger.FlightKey, caller ledger.Address) (*models.StatusRequest, error)
	GetStatusRequest(ctx context.Context, key ledger.FlightKey) (*models.StatusRequest, error)
	SubmitOracleResponse(ctx context.Context, req *models.OracleResponseRequest, oracle ledger.Address) (*models.OracleResponseResult, error)
	RegisterOracle(ctx context.Context, oracle ledger.Address, value *uint256.Int) (*models.OracleIndexesResponse, error)
	GetOracleIndexes(ctx context.Context, oracle ledger.Address) (*models.OracleIndexesResponse, error)

	ProcessFlightStatus(ctx context.Context, key ledger.FlightKey, status ledger.StatusCode, caller ledger.Address) (*models.Flight, error)
	CheckCredit(ctx context.Context, passenger ledger.Address) *models.CreditResponse
	Pay(ctx context.Context, passenger ledger.Address, key ledger.FlightKey, caller ledger.Address) (*models.WithdrawalResponse, error)
	Balance(ctx context.Context) *models.BalanceResponse

	PendingTransfers(ctx context.Context, caller ledger.Address) ([]models.Transfer, error)
	MarkSettled(ctx context.Context, id string, caller ledger.Address) error
}

// suretyServiceImpl implements SuretyService on top of the ledger
type suretyServiceImpl struct {
	ledger *ledger.Ledger
	outbox Outbox
}

// NewSuretyService creates a new SuretyService. outbox may be nil.
func NewSuretyService(l *ledger.Ledger, outbox Outbox) SuretyService {
	return &suretyServiceImpl{ledger: l, outbox: outbox}
}

func (s *suretyServiceImpl) IsOperational(ctx context.Context) bool {
	return s.ledger.IsOperational()
}

func (s *suretyServiceImpl) SetOperatingStatus(ctx context.Context, operational bool, caller ledger.Address) error {
	return s.ledger.SetOperatingStatus(ctx, operational, caller)
}

func (s *suretyServiceImpl) AuthorizeCaller(ctx context.Context, addr, caller ledger.Address) error {
	return s.ledger.AuthorizeCaller(ctx, addr, caller)
}

func (s *suretyServiceImpl) DeauthorizeCaller(ctx context.Context, addr, caller ledger.Address) error {
	return s.ledger.DeauthorizeCaller(ctx, addr, caller)
}

func (s *suretyServiceImpl) RegisterAirline(ctx context.Context, candidate, caller ledger.Address) (*models.AdmissionResponse, error) {
	admission, err := s.ledger.RegisterAirline(ctx, candidate, caller)
	if err != nil {
		return nil, err
	}
	resp := &models.AdmissionResponse{
		Airline:    candidate.String(),
		Registered: admission.Registered,
		Votes:      admission.Votes,
	}
	if !admission.Registered {
		resp.VotesNeeded = admission.VotesNeeded
	}
	return resp, nil
}

func (s *suretyServiceImpl) GetAirline(ctx context.Context, addr ledger.Address) (*models.Airline, error) {
	a, err := s.ledger.GetAirline(addr)
	if err != nil {
		return nil, err
	}
	return airlineDTO(a), nil
}

func (s *suretyServiceImpl) Fund(ctx context.Context, airline ledger.Address, value *uint256.Int) (*models.Airline, error) {
	if err := s.ledger.Fund(ctx, airline, value); err != nil {
		return nil, err
	}
	return s.GetAirline(ctx, airline)
}

func (s *suretyServiceImpl) RegisterFlight(ctx context.Context, key ledger.FlightKey, caller ledger.Address) (*models.Flight, error) {
	if err := s.ledger.RegisterFlight(ctx, key, caller); err != nil {
		return nil, err
	}
	return s.GetFlight(ctx, key)
}

func (s *suretyServiceImpl) GetFlight(ctx context.Context, key ledger.FlightKey) (*models.Flight, error) {
	f, err := s.ledger.GetFlight(key)
	if err != nil {
		return nil, err
	}
	return flightDTO(f), nil
}

func (s *suretyServiceImpl) Buy(ctx context.Context, key ledger.FlightKey, passenger ledger.Address, value *uint256.Int) (*models.PurchaseResponse, error) {
	purchase, err := s.ledger.Buy(ctx, key, passenger, value)
	if err != nil {
		return nil, err
	}
	return &models.PurchaseResponse{
		Premium:  purchase.Premium.Dec(),
		Accepted: purchase.Accepted.Dec(),
		Refunded: purchase.Refunded.Dec(),
	}, nil
}

// BoughtPassenger reports a zero premium for passengers without a policy.
func (s *suretyServiceImpl) BoughtPassenger(ctx context.Context, passenger ledger.Address, key ledger.FlightKey) (*models.PolicyResponse, error) {
	policy, err := s.ledger.GetPolicy(passenger, key)
	if errors.Is(err, ledger.ErrNotFound) {
		return &models.PolicyResponse{
			Passenger: passenger.String(),
			Flight:    flightKeyDTO(key),
			Premium:   s.ledger.BoughtPassenger(passenger, key).Dec(),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.PolicyResponse{
		Passenger: policy.Passenger.String(),
		Flight:    flightKeyDTO(policy.Flight),
		Premium:   policy.Premium.Dec(),
		Paid:      policy.Paid,
	}, nil
}

func (s *suretyServiceImpl) FetchFlightStatus(ctx context.Context, key ledger.FlightKey, caller ledger.Address) (*models.StatusRequest, error) {
	req, err := s.ledger.FetchFlightStatus(ctx, key, caller)
	if err != nil {
		return nil, err
	}
	return statusRequestDTO(req), nil
}

func (s *suretyServiceImpl) GetStatusRequest(ctx context.Context, key ledger.FlightKey) (*models.StatusRequest, error) {
	req, err := s.ledger.GetStatusRequest(key)
	if err != nil {
		return nil, err
	}
	return statusRequestDTO(req), nil
}

func (s *suretyServiceImpl) SubmitOracleResponse(ctx context.Context, req *models.OracleResponseRequest, oracle ledger.Address) (*models.OracleResponseResult, error) {
	key, err := ParseFlightKey(req.Flight)
	if err != nil {
		return nil, err
	}
	report, err := s.ledger.SubmitOracleResponse(ctx, req.Index, key, ledger.StatusCode(req.Status), oracle)
	if err != nil {
		return nil, err
	}
	return &models.OracleResponseResult{
		Counted:  report.Counted,
		Closed:   report.Closed,
		Agreeing: report.Agreeing,
		Final:    uint8(report.Final),
	}, nil
}

func (s *suretyServiceImpl) RegisterOracle(ctx context.Context, oracle ledger.Address, value *uint256.Int) (*models.OracleIndexesResponse, error) {
	indexes, err := s.ledger.RegisterOracle(ctx, oracle, value)
	if err != nil {
		return nil, err
	}
	return oracleIndexesDTO(oracle, indexes), nil
}

func (s *suretyServiceImpl) GetOracleIndexes(ctx context.Context, oracle ledger.Address) (*models.OracleIndexesResponse, error) {
	indexes, err := s.ledger.GetMyIndexes(oracle)
	if err != nil {
		return nil, err
	}
	return oracleIndexesDTO(oracle, indexes), nil
}

func (s *suretyServiceImpl) ProcessFlightStatus(ctx context.Context, key ledger.FlightKey, status ledger.StatusCode, caller ledger.Address) (*models.Flight, error) {
	if err := s.ledger.ProcessFlightStatus(ctx, key, status, caller); err != nil {
		return nil, err
	}
	return s.GetFlight(ctx, key)
}

func (s *suretyServiceImpl) CheckCredit(ctx context.Context, passenger ledger.Address) *models.CreditResponse {
	return &models.CreditResponse{
		Passenger: passenger.String(),
		Credit:    s.ledger.CheckCredit(passenger).Dec(),
	}
}

func (s *suretyServiceImpl) Pay(ctx context.Context, passenger ledger.Address, key ledger.FlightKey, caller ledger.Address) (*models.WithdrawalResponse, error) {
	amount, err := s.ledger.Pay(ctx, passenger, key, caller)
	if err != nil {
		return nil, err
	}
	return &models.WithdrawalResponse{Passenger: passenger.String(), Amount: amount.Dec()}, nil
}

func (s *suretyServiceImpl) Balance(ctx context.Context) *models.BalanceResponse {
	return &models.BalanceResponse{Balance: s.ledger.Balance().Dec()}
}

func (s *suretyServiceImpl) PendingTransfers(ctx context.Context, caller ledger.Address) ([]models.Transfer, error) {
	if caller != s.ledger.Owner() {
		return nil, ledger.ErrUnauthorized
	}
	if s.outbox == nil {
		return nil, ErrNoOutbox
	}
	rows, err := s.outbox.PendingTransfers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transfers: %w", err)
	}
	transfers := make([]models.Transfer, 0, len(rows))
	for _, row := range rows {
		transfers = append(transfers, transferDTO(row))
	}
	return transfers, nil
}

func (s *suretyServiceImpl) MarkSettled(ctx context.Context, id string, caller ledger.Address) error {
	if caller != s.ledger.Owner() {
		return ledger.ErrUnauthorized
	}
	if s.outbox == nil {
		return ErrNoOutbox
	}
	err := s.outbox.MarkSettled(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return ledger.ErrNotFound
	}
	return err
}
