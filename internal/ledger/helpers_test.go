package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	owner    = addr(1)
	airline1 = addr(10)
)

func addr(n int) Address {
	return Address(fmt.Sprintf("0x%040x", n))
}

// milli returns n thousandths of a unit.
func milli(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000))
}

// cycleAssigner hands out values in order, wrapping around.
type cycleAssigner struct {
	mu     sync.Mutex
	values []uint8
	next   int
}

func (a *cycleAssigner) NextIndex() uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	v := a.values[a.next%len(a.values)]
	a.next++
	return v
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (e *eventLog) Publish(_ context.Context, events []Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, events...)
}

func (e *eventLog) ofType(t EventType) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Event
	for _, evt := range e.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

type fixture struct {
	l         *Ledger
	journal   *MemoryJournal
	transfers *MemoryTransferer
	events    *eventLog
}

func newFixture(t *testing.T, opts ...func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		journal:   NewMemoryJournal(),
		transfers: NewMemoryTransferer(),
		events:    &eventLog{},
	}
	cfg := Config{
		Owner:         owner,
		Journal:       f.journal,
		Transferer:    f.transfers,
		Events:        f.events,
		IndexAssigner: &cycleAssigner{values: []uint8{7}},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	l, err := New(cfg)
	require.NoError(t, err)
	f.l = l
	return f
}

// fundedFlight registers and funds airline1 and registers one of its flights.
func (f *fixture) fundedFlight(t *testing.T) FlightKey {
	t.Helper()
	ctx := context.Background()
	_, err := f.l.RegisterAirline(ctx, airline1, owner)
	require.NoError(t, err)
	require.NoError(t, f.l.Fund(ctx, airline1, Units(10)))
	key := FlightKey{Airline: airline1, Code: "ND1309", Timestamp: 1_700_000_000_000}
	require.NoError(t, f.l.RegisterFlight(ctx, key, airline1))
	return key
}

// closeWith opens a status request and has OracleQuorum oracles agree on status.
func (f *fixture) closeWith(t *testing.T, key FlightKey, status StatusCode) {
	t.Helper()
	ctx := context.Background()
	req, err := f.l.FetchFlightStatus(ctx, key, addr(99))
	require.NoError(t, err)
	for i := 0; i < OracleQuorum; i++ {
		_, err := f.l.SubmitOracleResponse(ctx, req.Index, key, status, addr(500+i))
		require.NoError(t, err)
	}
}
