package ledger

import (
	"context"
	"math/rand"
	"sync"

	"github.com/holiman/uint256"
)

// RandomAssigner draws indexes uniformly from [0, OracleIndexRange).
type RandomAssigner struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomAssigner(seed int64) *RandomAssigner {
	return &RandomAssigner{rnd: rand.New(rand.NewSource(seed))}
}

func (a *RandomAssigner) NextIndex() uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return uint8(a.rnd.Intn(OracleIndexRange))
}

// distinctIndexes draws OracleIndexCount distinct indexes from a.
func distinctIndexes(a IndexAssigner) [OracleIndexCount]uint8 {
	var out [OracleIndexCount]uint8
	seen := make(map[uint8]bool, OracleIndexCount)
	for i := 0; i < OracleIndexCount; {
		idx := a.NextIndex() % OracleIndexRange
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out[i] = idx
		i++
	}
	return out
}

// RegisterOracle registers oracle for the fee and assigns it three distinct
// request indexes.
func (l *Ledger) RegisterOracle(ctx context.Context, oracle Address, value *uint256.Int) ([OracleIndexCount]uint8, error) {
	op := &registerOracleOp{Oracle: oracle, Value: cloneAmount(value), Indexes: distinctIndexes(l.assigner)}
	if err := l.execute(ctx, op); err != nil {
		return [OracleIndexCount]uint8{}, err
	}
	return op.Indexes, nil
}

// GetMyIndexes returns the indexes held by a registered oracle.
func (l *Ledger) GetMyIndexes(oracle Address) ([OracleIndexCount]uint8, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.s.oracles[oracle]
	if !ok {
		return [OracleIndexCount]uint8{}, ErrUnauthorized
	}
	return o.Indexes, nil
}

// IsOracleRegistered reports whether oracle has paid its registration fee.
func (l *Ledger) IsOracleRegistered(oracle Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.s.oracles[oracle]
	return ok
}

type registerOracleOp struct {
	Oracle  Address                 `json:"oracle"`
	Value   *uint256.Int            `json:"value"`
	Indexes [OracleIndexCount]uint8 `json:"indexes"`
}

func (op *registerOracleOp) kind() OpKind { return OpRegisterOracle }

func (op *registerOracleOp) apply(tx *txn) error {
	if err := tx.requireOperational(); err != nil {
		return err
	}
	if op.Oracle.IsZero() {
		return ErrInvalidAddress
	}
	if op.Value.Lt(OracleRegistrationFee()) {
		return ErrInsufficientFunds
	}
	if _, ok := tx.s.oracles[op.Oracle]; ok {
		return ErrAlreadyRegistered
	}
	for i, idx := range op.Indexes {
		if idx >= OracleIndexRange {
			return ErrUnknownRequest
		}
		for _, prev := range op.Indexes[:i] {
			if prev == idx {
				return ErrUnknownRequest
			}
		}
	}
	tx.putOracle(&Oracle{Address: op.Oracle, Indexes: op.Indexes})
	tx.addBalance(op.Value)
	tx.emit(Event{Type: EventOracleRegistered, Address: op.Oracle, Amount: op.Value.Clone()})
	return nil
}
