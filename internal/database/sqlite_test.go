package database

import (
	"context"
	"testing"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_AppendAndEntries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	for seq := uint64(1); seq <= 3; seq++ {
		err := store.Append(ctx, ledger.Entry{
			ID:        uuid.New(),
			Seq:       seq,
			Kind:      ledger.OpFund,
			Payload:   []byte(`{"airline":"0x01"}`),
			CreatedAt: now,
		})
		require.NoError(t, err)
	}

	err := store.Append(ctx, ledger.Entry{ID: uuid.New(), Seq: 3, Kind: ledger.OpFund, Payload: []byte(`{}`), CreatedAt: now})
	assert.ErrorIs(t, err, ErrSequenceConflict)
	err = store.Append(ctx, ledger.Entry{ID: uuid.New(), Seq: 5, Kind: ledger.OpFund, Payload: []byte(`{}`), CreatedAt: now})
	assert.ErrorIs(t, err, ErrSequenceConflict)

	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, uint64(i+1), e.Seq)
		assert.Equal(t, ledger.OpFund, e.Kind)
		assert.JSONEq(t, `{"airline":"0x01"}`, string(e.Payload))
	}
}

func TestSQLiteStore_TransferOutbox(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := ledger.FlightKey{Airline: "0x00000000000000000000000000000000000000aa", Code: "ND1309", Timestamp: 1}

	transfer := ledger.Transfer{
		ID:        uuid.New(),
		To:        "0x00000000000000000000000000000000000000bb",
		Amount:    ledger.Units(2),
		Reason:    ledger.TransferWithdrawal,
		Flight:    key,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Append(ctx, ledger.Entry{
		ID:        uuid.New(),
		Seq:       1,
		Kind:      ledger.OpPay,
		Payload:   []byte(`{}`),
		CreatedAt: time.Now(),
		Transfers: []ledger.Transfer{transfer},
	}))

	pending, err := store.PendingTransfers(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, transfer.ID.String(), pending[0].ID)
	assert.Equal(t, "2000000000000000000", pending[0].Amount)
	assert.Equal(t, "ND1309", pending[0].FlightCode)

	require.NoError(t, store.MarkSettled(ctx, transfer.ID.String()))
	assert.ErrorIs(t, store.MarkSettled(ctx, transfer.ID.String()), ErrNotFound)

	pending, err = store.PendingTransfers(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLiteStore_AppendIsAtomic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	transfer := ledger.Transfer{
		ID:        uuid.New(),
		To:        "0x00000000000000000000000000000000000000bb",
		Amount:    ledger.Units(1),
		Reason:    ledger.TransferWithdrawal,
		CreatedAt: time.Now(),
	}
	entry := func(seq uint64) ledger.Entry {
		return ledger.Entry{
			ID:        uuid.New(),
			Seq:       seq,
			Kind:      ledger.OpPay,
			Payload:   []byte(`{}`),
			CreatedAt: time.Now(),
			Transfers: []ledger.Transfer{transfer},
		}
	}
	require.NoError(t, store.Append(ctx, entry(1)))

	// the transfer row collides, so the entry must not land either
	require.Error(t, store.Append(ctx, entry(2)))
	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	transfer.ID = uuid.New()
	require.NoError(t, store.Append(ctx, entry(2)))
	pending, err := store.PendingTransfers(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestSQLiteStore_LedgerRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := ledger.Address("0x0000000000000000000000000000000000000001")
	airline := ledger.Address("0x000000000000000000000000000000000000000a")
	passenger := ledger.Address("0x0000000000000000000000000000000000000064")

	l, err := ledger.New(ledger.Config{Owner: owner, Journal: store})
	require.NoError(t, err)

	_, err = l.RegisterAirline(ctx, airline, owner)
	require.NoError(t, err)
	require.NoError(t, l.Fund(ctx, airline, ledger.Units(10)))
	key := ledger.FlightKey{Airline: airline, Code: "ND1309", Timestamp: 1_700_000_000_000}
	require.NoError(t, l.RegisterFlight(ctx, key, airline))
	_, err = l.Buy(ctx, key, passenger, ledger.Units(2))
	require.NoError(t, err)
	require.NoError(t, l.ProcessFlightStatus(ctx, key, ledger.StatusLateAirline, owner))
	require.Equal(t, "1500000000000000000", l.CheckCredit(passenger).Dec())
	paid, err := l.Pay(ctx, passenger, key, passenger)
	require.NoError(t, err)

	pending, err := store.PendingTransfers(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, string(ledger.TransferPremiumRefund), pending[0].Reason)
	assert.Equal(t, string(ledger.TransferWithdrawal), pending[1].Reason)

	// a process that stops right after Pay restarts with the credit gone
	// and the payout instruction waiting in the outbox
	restored, err := ledger.New(ledger.Config{Owner: owner, Journal: store})
	require.NoError(t, err)
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, l.Seq(), restored.Seq())
	assert.Equal(t, l.Balance(), restored.Balance())
	assert.Equal(t, ledger.Units(1), restored.BoughtPassenger(passenger, key))
	assert.True(t, restored.CheckCredit(passenger).IsZero())

	pending, err = store.PendingTransfers(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, string(passenger), pending[1].Recipient)
	assert.Equal(t, paid.Dec(), pending[1].Amount)
}
