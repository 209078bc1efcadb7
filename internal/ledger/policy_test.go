package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuy_CapsPremiumAndRefundsExcess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.fundedFlight(t)
	passenger := addr(100)

	p, err := f.l.Buy(ctx, key, passenger, milli(600))
	require.NoError(t, err)
	assert.Equal(t, milli(600), p.Accepted)
	assert.True(t, p.Refunded.IsZero())

	p, err = f.l.Buy(ctx, key, passenger, milli(600))
	require.NoError(t, err)
	assert.Equal(t, milli(400), p.Accepted)
	assert.Equal(t, milli(200), p.Refunded)
	assert.Equal(t, Units(1), p.Premium)
	assert.Equal(t, Units(1), f.l.BoughtPassenger(passenger, key))

	_, err = f.l.Buy(ctx, key, passenger, milli(1))
	assert.ErrorIs(t, err, ErrPremiumCapExceeded)

	transfers := f.transfers.Transfers()
	require.Len(t, transfers, 1)
	assert.Equal(t, TransferPremiumRefund, transfers[0].Reason)
	assert.Equal(t, passenger, transfers[0].To)
	assert.Equal(t, milli(200), transfers[0].Amount)

	assert.Equal(t, new(uint256.Int).Add(Units(10), Units(1)), f.l.Balance())

	flight, err := f.l.GetFlight(key)
	require.NoError(t, err)
	assert.Equal(t, []Address{passenger}, flight.Insurees)
}

func TestBuy_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.fundedFlight(t)

	_, err := f.l.Buy(ctx, FlightKey{Airline: airline1, Code: "XX1", Timestamp: 1}, addr(100), milli(100))
	assert.ErrorIs(t, err, ErrFlightNotRegistered)

	_, err = f.l.Buy(ctx, key, addr(100), new(uint256.Int))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	f.closeWith(t, key, StatusOnTime)
	_, err = f.l.Buy(ctx, key, addr(100), milli(100))
	assert.ErrorIs(t, err, ErrFlightFinalized)
}

func TestBuy_FailedRefundRevertsPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.fundedFlight(t)
	passenger := addr(100)
	before := f.l.Balance()

	f.transfers.SetFail(errors.New("settlement offline"))
	_, err := f.l.Buy(ctx, key, passenger, milli(1500))
	require.ErrorIs(t, err, ErrTransferFailed)

	assert.True(t, f.l.BoughtPassenger(passenger, key).IsZero())
	assert.Equal(t, before, f.l.Balance())
	_, err = f.l.GetPolicy(passenger, key)
	assert.ErrorIs(t, err, ErrNotFound)
	flight, err := f.l.GetFlight(key)
	require.NoError(t, err)
	assert.Empty(t, flight.Insurees)
	assert.Empty(t, f.events.ofType(EventInsurancePurchased))

	entries, err := f.journal.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, OpRevertBuy, entries[len(entries)-1].Kind)
	assert.Equal(t, OpBuy, entries[len(entries)-2].Kind)
}

func TestBuy_FailedRefundKeepsEarlierPremium(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.fundedFlight(t)
	passenger := addr(100)

	_, err := f.l.Buy(ctx, key, passenger, milli(300))
	require.NoError(t, err)

	f.transfers.SetFail(errors.New("settlement offline"))
	_, err = f.l.Buy(ctx, key, passenger, Units(1))
	require.ErrorIs(t, err, ErrTransferFailed)

	assert.Equal(t, milli(300), f.l.BoughtPassenger(passenger, key))
	flight, err := f.l.GetFlight(key)
	require.NoError(t, err)
	assert.Equal(t, []Address{passenger}, flight.Insurees)
}

func TestBuy_ConcurrentPurchasesNeverExceedCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.fundedFlight(t)
	passenger := addr(100)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.l.Buy(ctx, key, passenger, milli(150))
		}()
	}
	wg.Wait()

	assert.Equal(t, Units(1), f.l.BoughtPassenger(passenger, key))
	assert.Equal(t, new(uint256.Int).Add(Units(10), Units(1)), f.l.Balance())
}
