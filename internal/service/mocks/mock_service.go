package mocks

import (
	"context"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/mock"
)

// MockSuretyService is a mock implementation of SuretyService
type MockSuretyService struct {
	mock.Mock
}

func (m *MockSuretyService) IsOperational(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockSuretyService) SetOperatingStatus(ctx context.Context, operational bool, caller ledger.Address) error {
	args := m.Called(ctx, operational, caller)
	return args.Error(0)
}

func (m *MockSuretyService) AuthorizeCaller(ctx context.Context, addr, caller ledger.Address) error {
	args := m.Called(ctx, addr, caller)
	return args.Error(0)
}

func (m *MockSuretyService) DeauthorizeCaller(ctx context.Context, addr, caller ledger.Address) error {
	args := m.Called(ctx, addr, caller)
	return args.Error(0)
}

func (m *MockSuretyService) RegisterAirline(ctx context.Context, candidate, caller ledger.Address) (*models.AdmissionResponse, error) {
	args := m.Called(ctx, candidate, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdmissionResponse), args.Error(1)
}

func (m *MockSuretyService) GetAirline(ctx context.Context, addr ledger.Address) (*models.Airline, error) {
	args := m.Called(ctx, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Airline), args.Error(1)
}

func (m *MockSuretyService) Fund(ctx context.Context, airline ledger.Address, value *uint256.Int) (*models.Airline, error) {
	args := m.Called(ctx, airline, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Airline), args.Error(1)
}

func (m *MockSuretyService) RegisterFlight(ctx context.Context, key ledger.FlightKey, caller ledger.Address) (*models.Flight, error) {
	args := m.Called(ctx, key, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Flight), args.Error(1)
}

func (m *MockSuretyService) GetFlight(ctx context.Context, key ledger.FlightKey) (*models.Flight, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Flight), args.Error(1)
}

func (m *MockSuretyService) Buy(ctx context.Context, key ledger.FlightKey, passenger ledger.Address, value *uint256.Int) (*models.PurchaseResponse, error) {
	args := m.Called(ctx, key, passenger, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PurchaseResponse), args.Error(1)
}

func (m *MockSuretyService) BoughtPassenger(ctx context.Context, passenger ledger.Address, key ledger.FlightKey) (*models.PolicyResponse, error) {
	args := m.Called(ctx, passenger, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PolicyResponse), args.Error(1)
}

func (m *MockSuretyService) FetchFlightStatus(ctx context.Context, key ledger.FlightKey, caller ledger.Address) (*models.StatusRequest, error) {
	args := m.Called(ctx, key, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StatusRequest), args.Error(1)
}

func (m *MockSuretyService) GetStatusRequest(ctx context.Context, key ledger.FlightKey) (*models.StatusRequest, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StatusRequest), args.Error(1)
}

func (m *MockSuretyService) SubmitOracleResponse(ctx context.Context, req *models.OracleResponseRequest, oracle ledger.Address) (*models.OracleResponseResult, error) {
	args := m.Called(ctx, req, oracle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OracleResponseResult), args.Error(1)
}

func (m *MockSuretyService) RegisterOracle(ctx context.Context, oracle ledger.Address, value *uint256.Int) (*models.OracleIndexesResponse, error) {
	args := m.Called(ctx, oracle, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OracleIndexesResponse), args.Error(1)
}

func (m *MockSuretyService) GetOracleIndexes(ctx context.Context, oracle ledger.Address) (*models.OracleIndexesResponse, error) {
	args := m.Called(ctx, oracle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OracleIndexesResponse), args.Error(1)
}

func (m *MockSuretyService) ProcessFlightStatus(ctx context.Context, key ledger.FlightKey, status ledger.StatusCode, caller ledger.Address) (*models.Flight, error) {
	args := m.Called(ctx, key, status, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Flight), args.Error(1)
}

func (m *MockSuretyService) CheckCredit(ctx context.Context, passenger ledger.Address) *models.CreditResponse {
	args := m.Called(ctx, passenger)
	return args.Get(0).(*models.CreditResponse)
}

func (m *MockSuretyService) Pay(ctx context.Context, passenger ledger.Address, key ledger.FlightKey, caller ledger.Address) (*models.WithdrawalResponse, error) {
	args := m.Called(ctx, passenger, key, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WithdrawalResponse), args.Error(1)
}

func (m *MockSuretyService) Balance(ctx context.Context) *models.BalanceResponse {
	args := m.Called(ctx)
	return args.Get(0).(*models.BalanceResponse)
}

func (m *MockSuretyService) PendingTransfers(ctx context.Context, caller ledger.Address) ([]models.Transfer, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transfer), args.Error(1)
}

func (m *MockSuretyService) MarkSettled(ctx context.Context, id string, caller ledger.Address) error {
	args := m.Called(ctx, id, caller)
	return args.Error(0)
}
