package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAirline_BootstrapThenVotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adm, err := f.l.RegisterAirline(ctx, airline1, owner)
	require.NoError(t, err)
	assert.True(t, adm.Registered)

	for i := 2; i <= AdmissionThreshold; i++ {
		adm, err := f.l.RegisterAirline(ctx, addr(10+i-1), airline1)
		require.NoError(t, err)
		assert.True(t, adm.Registered, "airline %d should be admitted directly", i)
	}
	require.Equal(t, 4, f.l.RegisteredAirlines())

	candidate := addr(20)
	adm, err = f.l.RegisterAirline(ctx, candidate, airline1)
	require.NoError(t, err)
	assert.False(t, adm.Registered)
	assert.Equal(t, 1, adm.Votes)
	assert.Equal(t, 2, adm.VotesNeeded)
	assert.False(t, f.l.IsAirline(candidate))

	_, err = f.l.RegisterAirline(ctx, candidate, airline1)
	assert.ErrorIs(t, err, ErrDuplicateVote)

	adm, err = f.l.RegisterAirline(ctx, candidate, addr(11))
	require.NoError(t, err)
	assert.True(t, adm.Registered)
	assert.True(t, f.l.IsAirline(candidate))
	assert.Equal(t, 5, f.l.RegisteredAirlines())

	a, err := f.l.GetAirline(candidate)
	require.NoError(t, err)
	assert.Empty(t, a.Votes)
	assert.Len(t, f.events.ofType(EventAirlineVoted), 2)
}

func TestRegisterAirline_VotesNeededIsHalfTheFederation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	members := []Address{airline1, addr(11), addr(12), addr(13)}

	_, err := f.l.RegisterAirline(ctx, airline1, owner)
	require.NoError(t, err)
	for _, a := range members[1:] {
		_, err := f.l.RegisterAirline(ctx, a, airline1)
		require.NoError(t, err)
	}

	tests := []struct {
		candidate  Address
		registered int
		needed     int
	}{
		{candidate: addr(20), registered: 4, needed: 2},
		{candidate: addr(21), registered: 5, needed: 2},
		{candidate: addr(22), registered: 6, needed: 3},
		{candidate: addr(23), registered: 7, needed: 3},
	}
	for _, tt := range tests {
		require.Equal(t, tt.registered, f.l.RegisteredAirlines())
		for i := 0; i < tt.needed-1; i++ {
			adm, err := f.l.RegisterAirline(ctx, tt.candidate, members[i])
			require.NoError(t, err)
			assert.False(t, adm.Registered, "%d votes must not admit at %d registered", i+1, tt.registered)
			assert.Equal(t, tt.needed, adm.VotesNeeded)
		}
		adm, err := f.l.RegisterAirline(ctx, tt.candidate, members[tt.needed-1])
		require.NoError(t, err)
		assert.True(t, adm.Registered)
		assert.Equal(t, tt.needed, adm.Votes)
		members = append(members, tt.candidate)
	}
	assert.Equal(t, 8, f.l.RegisteredAirlines())
}

func TestRegisterAirline_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.l.RegisterAirline(ctx, airline1, addr(42))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.l.RegisterAirline(ctx, airline1, owner)
	require.NoError(t, err)

	_, err = f.l.RegisterAirline(ctx, airline1, owner)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	_, err = f.l.RegisterAirline(ctx, "", airline1)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	for i := 11; i <= 13; i++ {
		_, err := f.l.RegisterAirline(ctx, addr(i), airline1)
		require.NoError(t, err)
	}
	// the owner only bootstraps the federation
	_, err = f.l.RegisterAirline(ctx, addr(30), owner)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegisterAirline_UnfundedAirlineCanVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.l.RegisterAirline(ctx, airline1, owner)
	require.NoError(t, err)
	adm, err := f.l.RegisterAirline(ctx, addr(11), airline1)
	require.NoError(t, err)
	assert.True(t, adm.Registered)
	assert.False(t, f.l.IsAirlineFunded(airline1))
}

func TestFund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.l.Fund(ctx, airline1, Units(10))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.l.RegisterAirline(ctx, airline1, owner)
	require.NoError(t, err)

	err = f.l.Fund(ctx, airline1, Units(9))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.False(t, f.l.IsAirlineFunded(airline1))

	require.NoError(t, f.l.Fund(ctx, airline1, Units(10)))
	require.NoError(t, f.l.Fund(ctx, airline1, Units(12)))
	assert.True(t, f.l.IsAirlineFunded(airline1))

	a, err := f.l.GetAirline(airline1)
	require.NoError(t, err)
	assert.Equal(t, Units(22), a.Stake)
	assert.Equal(t, Units(22), f.l.Balance())
}

func TestGetAirline_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.l.GetAirline(addr(77))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := FlightKey{Airline: airline1, Code: "ND1309", Timestamp: 1_700_000_000_000}

	_, err := f.l.RegisterAirline(ctx, airline1, owner)
	require.NoError(t, err)

	err = f.l.RegisterFlight(ctx, key, airline1)
	assert.ErrorIs(t, err, ErrNotFunded)

	require.NoError(t, f.l.Fund(ctx, airline1, Units(10)))

	err = f.l.RegisterFlight(ctx, key, addr(11))
	assert.ErrorIs(t, err, ErrNotFunded)

	require.NoError(t, f.l.RegisterFlight(ctx, key, airline1))
	err = f.l.RegisterFlight(ctx, key, airline1)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	flight, err := f.l.GetFlight(key)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, flight.Status)

	// keys are exact: a different timestamp is a different flight
	_, err = f.l.GetFlight(FlightKey{Airline: airline1, Code: "ND1309", Timestamp: 1})
	assert.ErrorIs(t, err, ErrFlightNotRegistered)
}
