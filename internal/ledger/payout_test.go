package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLateAirlineCreditsInsurees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.fundedFlight(t)
	full, half := addr(100), addr(101)

	_, err := f.l.Buy(ctx, key, full, Units(1))
	require.NoError(t, err)
	_, err = f.l.Buy(ctx, key, half, milli(500))
	require.NoError(t, err)

	f.closeWith(t, key, StatusLateAirline)

	assert.Equal(t, milli(1500), f.l.CheckCredit(full))
	assert.Equal(t, milli(750), f.l.PayoutPassenger(half))

	policy, err := f.l.GetPolicy(full, key)
	require.NoError(t, err)
	assert.True(t, policy.Paid)

	credited := f.events.ofType(EventPassengerCredited)
	require.Len(t, credited, 2)
	assert.Equal(t, full, credited[0].Address)
	assert.Equal(t, half, credited[1].Address)
}

func TestOtherStatusesCreditNothing(t *testing.T) {
	for _, status := range []StatusCode{StatusOnTime, StatusLateWeather, StatusLateTechnical, StatusLateOther} {
		t.Run(status.String(), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			key := f.fundedFlight(t)
			_, err := f.l.Buy(ctx, key, addr(100), Units(1))
			require.NoError(t, err)

			f.closeWith(t, key, status)

			assert.True(t, f.l.CheckCredit(addr(100)).IsZero())
			flight, err := f.l.GetFlight(key)
			require.NoError(t, err)
			assert.Equal(t, status, flight.Status)
		})
	}
}

func TestCreditsAccumulateAcrossFlights(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.fundedFlight(t)
	second := FlightKey{Airline: airline1, Code: "ND1310", Timestamp: first.Timestamp + 3_600_000}
	require.NoError(t, f.l.RegisterFlight(ctx, second, airline1))
	passenger := addr(100)

	for _, key := range []FlightKey{first, second} {
		_, err := f.l.Buy(ctx, key, passenger, milli(200))
		require.NoError(t, err)
		require.NoError(t, f.l.ProcessFlightStatus(ctx, key, StatusLateAirline, owner))
	}
	assert.Equal(t, milli(600), f.l.CheckCredit(passenger))
}

func TestProcessFlightStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.fundedFlight(t)
	passenger := addr(100)
	_, err := f.l.Buy(ctx, key, passenger, Units(1))
	require.NoError(t, err)

	err = f.l.ProcessFlightStatus(ctx, key, StatusLateAirline, addr(42))
	assert.ErrorIs(t, err, ErrUnauthorized)
	// the flight's own airline needs AirlineSettlement
	err = f.l.ProcessFlightStatus(ctx, key, StatusOnTime, airline1)
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = f.l.ProcessFlightStatus(ctx, key, StatusUnknown, owner)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	req, err := f.l.FetchFlightStatus(ctx, key, passenger)
	require.NoError(t, err)

	require.NoError(t, f.l.AuthorizeCaller(ctx, addr(42), owner))
	require.NoError(t, f.l.ProcessFlightStatus(ctx, key, StatusLateAirline, addr(42)))
	assert.Equal(t, milli(1500), f.l.CheckCredit(passenger))

	closed, err := f.l.GetStatusRequest(key)
	require.NoError(t, err)
	assert.False(t, closed.Open)

	err = f.l.ProcessFlightStatus(ctx, key, StatusLateAirline, owner)
	assert.ErrorIs(t, err, ErrFlightFinalized)
	assert.Equal(t, milli(1500), f.l.CheckCredit(passenger))

	// responses after a direct settlement are no-ops
	rep, err := f.l.SubmitOracleResponse(ctx, req.Index, key, StatusLateAirline, addr(500))
	require.NoError(t, err)
	assert.False(t, rep.Counted)
	assert.Equal(t, milli(1500), f.l.CheckCredit(passenger))
}

func TestProcessFlightStatus_AirlineSettlement(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.AirlineSettlement = true })
	ctx := context.Background()
	key := f.fundedFlight(t)
	other := FlightKey{Airline: addr(11), Code: "ND1309", Timestamp: key.Timestamp}

	assert.ErrorIs(t, f.l.ProcessFlightStatus(ctx, other, StatusOnTime, airline1), ErrFlightNotRegistered)
	require.NoError(t, f.l.ProcessFlightStatus(ctx, key, StatusOnTime, airline1))

	// a journal written with the flag on replays without it
	restored, err := New(Config{Owner: owner, Journal: f.journal})
	require.NoError(t, err)
	require.NoError(t, restored.Restore(ctx))
	flight, err := restored.GetFlight(key)
	require.NoError(t, err)
	assert.Equal(t, StatusOnTime, flight.Status)
}

func TestAuthorizeCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.l.AuthorizeCaller(ctx, addr(42), addr(43))
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, f.l.AuthorizeCaller(ctx, addr(42), owner))
	assert.True(t, f.l.IsAuthorizedCaller(addr(42)))
	require.NoError(t, f.l.DeauthorizeCaller(ctx, addr(42), owner))
	assert.False(t, f.l.IsAuthorizedCaller(addr(42)))
}

func TestPay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.fundedFlight(t)
	passenger := addr(100)
	_, err := f.l.Buy(ctx, key, passenger, Units(1))
	require.NoError(t, err)

	_, err = f.l.Pay(ctx, passenger, key, passenger)
	assert.ErrorIs(t, err, ErrNoCredit)

	f.closeWith(t, key, StatusLateAirline)

	_, err = f.l.Pay(ctx, passenger, key, addr(101))
	assert.ErrorIs(t, err, ErrUnauthorized)

	amount, err := f.l.Pay(ctx, passenger, key, passenger)
	require.NoError(t, err)
	assert.Equal(t, milli(1500), amount)
	assert.True(t, f.l.CheckCredit(passenger).IsZero())

	// 10 stake + 1 premium - 1.5 paid out
	assert.Equal(t, milli(9500), f.l.Balance())

	transfers := f.transfers.Transfers()
	require.Len(t, transfers, 1)
	assert.Equal(t, TransferWithdrawal, transfers[0].Reason)
	assert.Equal(t, milli(1500), transfers[0].Amount)
	assert.Equal(t, key, transfers[0].Flight)

	_, err = f.l.Pay(ctx, passenger, key, passenger)
	assert.ErrorIs(t, err, ErrNoCredit)
	assert.Len(t, f.events.ofType(EventPassengerPaid), 1)
}

func TestPay_FailedTransferRestoresCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.fundedFlight(t)
	passenger := addr(100)
	_, err := f.l.Buy(ctx, key, passenger, Units(1))
	require.NoError(t, err)
	f.closeWith(t, key, StatusLateAirline)
	before := f.l.Balance()

	f.transfers.SetFail(errors.New("bank unavailable"))
	_, err = f.l.Pay(ctx, passenger, key, passenger)
	require.ErrorIs(t, err, ErrTransferFailed)

	assert.Equal(t, milli(1500), f.l.CheckCredit(passenger))
	assert.Equal(t, before, f.l.Balance())
	assert.Empty(t, f.events.ofType(EventPassengerPaid))

	f.transfers.SetFail(nil)
	amount, err := f.l.Pay(ctx, passenger, key, passenger)
	require.NoError(t, err)
	assert.Equal(t, milli(1500), amount)
	assert.Len(t, f.transfers.Transfers(), 1)
}

func TestPay_ConcurrentWithdrawalsPayOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.fundedFlight(t)
	passenger := addr(100)
	_, err := f.l.Buy(ctx, key, passenger, Units(1))
	require.NoError(t, err)
	f.closeWith(t, key, StatusLateAirline)

	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			_, err := f.l.Pay(ctx, passenger, key, passenger)
			results <- err
		}()
	}
	paid := 0
	for i := 0; i < 10; i++ {
		if err := <-results; err == nil {
			paid++
		} else {
			assert.ErrorIs(t, err, ErrNoCredit)
		}
	}
	assert.Equal(t, 1, paid)

	total := new(uint256.Int)
	for _, tr := range f.transfers.Transfers() {
		total.Add(total, tr.Amount)
	}
	assert.Equal(t, milli(1500), total)
}
