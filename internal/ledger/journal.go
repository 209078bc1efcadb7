package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// OpKind names a journaled operation.
type OpKind string

const (
	OpSetOperatingStatus OpKind = "set_operating_status"
	OpAuthorizeCaller    OpKind = "authorize_caller"
	OpRegisterAirline    OpKind = "register_airline"
	OpFund               OpKind = "fund"
	OpRegisterFlight     OpKind = "register_flight"
	OpBuy                OpKind = "buy"
	OpRevertBuy          OpKind = "revert_buy"
	OpRegisterOracle     OpKind = "register_oracle"
	OpFetchFlightStatus  OpKind = "fetch_flight_status"
	OpSubmitResponse     OpKind = "submit_oracle_response"
	OpProcessStatus      OpKind = "process_flight_status"
	OpPay                OpKind = "pay"
	OpRestoreCredit      OpKind = "restore_credit"
)

// Entry is one committed operation in the ledger's totally ordered log.
// Transfers are the funds instructions the operation issued. Replay never
// reads them, so Entries may leave them empty.
type Entry struct {
	ID        uuid.UUID
	Seq       uint64
	Kind      OpKind
	Payload   []byte
	CreatedAt time.Time
	Transfers []Transfer
}

// Journal is the append-only log the ledger commits to. Append must be
// durable before it returns nil. A journal used without a Transferer must
// persist the entry's Transfers in the same write as the entry.
type Journal interface {
	Append(ctx context.Context, entry Entry) error
	Entries(ctx context.Context) ([]Entry, error)
}

// operation is a state transition that can be journaled and replayed.
// apply must be deterministic given the state and the operation's fields.
type operation interface {
	kind() OpKind
	apply(tx *txn) error
}

func newOperation(kind OpKind) (operation, error) {
	switch kind {
	case OpSetOperatingStatus:
		return &setOperatingStatusOp{}, nil
	case OpAuthorizeCaller:
		return &authorizeCallerOp{}, nil
	case OpRegisterAirline:
		return &registerAirlineOp{}, nil
	case OpFund:
		return &fundOp{}, nil
	case OpRegisterFlight:
		return &registerFlightOp{}, nil
	case OpBuy:
		return &buyOp{}, nil
	case OpRevertBuy:
		return &revertBuyOp{}, nil
	case OpRegisterOracle:
		return &registerOracleOp{}, nil
	case OpFetchFlightStatus:
		return &fetchFlightStatusOp{}, nil
	case OpSubmitResponse:
		return &submitResponseOp{}, nil
	case OpProcessStatus:
		return &processStatusOp{}, nil
	case OpPay:
		return &payOp{}, nil
	case OpRestoreCredit:
		return &restoreCreditOp{}, nil
	default:
		return nil, fmt.Errorf("unknown journal operation %q", kind)
	}
}

func decodeEntry(e Entry) (operation, error) {
	op, err := newOperation(e.Kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(e.Payload, op); err != nil {
		return nil, fmt.Errorf("failed to decode journal entry %d: %w", e.Seq, err)
	}
	return op, nil
}

// MemoryJournal keeps entries, transfers included, in process memory.
type MemoryJournal struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Append(_ context.Context, entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return nil
}

func (j *MemoryJournal) Entries(_ context.Context) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Entry(nil), j.entries...), nil
}

// Transfers returns every transfer journaled so far, in commit order.
func (j *MemoryJournal) Transfers() []Transfer {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []Transfer
	for _, e := range j.entries {
		out = append(out, e.Transfers...)
	}
	return out
}

// TransferReason says why funds leave the ledger.
type TransferReason string

const (
	TransferWithdrawal    TransferReason = "withdrawal"
	TransferPremiumRefund TransferReason = "premium_refund"
)

// Transfer is an instruction to move funds out of the ledger's escrow.
type Transfer struct {
	ID        uuid.UUID
	To        Address
	Amount    *uint256.Int
	Reason    TransferReason
	Flight    FlightKey
	CreatedAt time.Time
}

// Transferer moves funds to an external account. It is the only side effect
// the ledger cannot roll back by itself.
type Transferer interface {
	Transfer(ctx context.Context, t Transfer) error
}

// MemoryTransferer records transfers in memory. Setting Fail makes every
// transfer fail with that error.
type MemoryTransferer struct {
	mu        sync.Mutex
	transfers []Transfer
	Fail      error
}

func NewMemoryTransferer() *MemoryTransferer {
	return &MemoryTransferer{}
}

func (m *MemoryTransferer) Transfer(_ context.Context, t Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.transfers = append(m.transfers, t)
	return nil
}

// Transfers returns the recorded transfers in issue order.
func (m *MemoryTransferer) Transfers() []Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transfer(nil), m.transfers...)
}

// SetFail changes the failure injected into subsequent transfers.
func (m *MemoryTransferer) SetFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fail = err
}
