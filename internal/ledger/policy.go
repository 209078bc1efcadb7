package ledger

import (
	"context"

	"github.com/holiman/uint256"
)

// Purchase is the outcome of a Buy call.
type Purchase struct {
	// Premium is the passenger's total premium on the flight after the call.
	Premium  *uint256.Int
	Accepted *uint256.Int
	Refunded *uint256.Int
}

// Buy insures passenger on flight for value. The premium per (passenger,
// flight) is capped at PremiumCap: the part of value that would exceed the
// cap is refunded in the same transaction. The call only fails with
// ErrPremiumCapExceeded when the premium is already at the cap.
func (l *Ledger) Buy(ctx context.Context, key FlightKey, passenger Address, value *uint256.Int) (Purchase, error) {
	op := &buyOp{Flight: key, Passenger: passenger, Value: cloneAmount(value)}
	if err := l.execute(ctx, op); err != nil {
		return Purchase{}, err
	}
	return op.result, nil
}

// BoughtPassenger returns the passenger's premium on the flight, zero if none.
func (l *Ledger) BoughtPassenger(passenger Address, key FlightKey) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.s.policies[policyKey{passenger: passenger, flight: key}]
	if !ok {
		return new(uint256.Int)
	}
	return p.Premium.Clone()
}

// GetPolicy returns a copy of the passenger's policy on the flight.
func (l *Ledger) GetPolicy(passenger Address, key FlightKey) (*Policy, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.s.policies[policyKey{passenger: passenger, flight: key}]
	if !ok {
		return nil, ErrNotFound
	}
	return p.clone(), nil
}

type buyOp struct {
	Flight    FlightKey    `json:"flight"`
	Passenger Address      `json:"passenger"`
	Value     *uint256.Int `json:"value"`

	result Purchase
}

func (op *buyOp) kind() OpKind { return OpBuy }

func (op *buyOp) apply(tx *txn) error {
	if err := tx.requireOperational(); err != nil {
		return err
	}
	if op.Passenger.IsZero() {
		return ErrInvalidAddress
	}
	existingFlight, ok := tx.s.flights[op.Flight]
	if !ok || !existingFlight.Registered {
		return ErrFlightNotRegistered
	}
	if existingFlight.Status != StatusUnknown {
		return ErrFlightFinalized
	}
	if op.Value.IsZero() {
		return ErrInsufficientFunds
	}

	pk := policyKey{passenger: op.Passenger, flight: op.Flight}
	prev, existed := tx.s.policies[pk]
	prevPremium := new(uint256.Int)
	if existed {
		prevPremium = prev.Premium.Clone()
	}
	limit := PremiumCap()
	if !prevPremium.Lt(limit) {
		return ErrPremiumCapExceeded
	}
	room := new(uint256.Int).Sub(limit, prevPremium)
	accepted := op.Value.Clone()
	if accepted.Gt(room) {
		accepted = room
	}
	refund := new(uint256.Int).Sub(op.Value, accepted)

	policy := tx.policy(op.Passenger, op.Flight)
	policy.Premium = new(uint256.Int).Add(policy.Premium, accepted)
	if !existed {
		flight := tx.flight(op.Flight)
		flight.Insurees = append(flight.Insurees, op.Passenger)
	}
	tx.addBalance(accepted)
	tx.emit(Event{
		Type:    EventInsurancePurchased,
		Flight:  op.Flight,
		Address: op.Passenger,
		Amount:  accepted.Clone(),
	})

	if !refund.IsZero() {
		tx.after(
			Transfer{
				To:     op.Passenger,
				Amount: refund.Clone(),
				Reason: TransferPremiumRefund,
				Flight: op.Flight,
			},
			&revertBuyOp{
				Flight:      op.Flight,
				Passenger:   op.Passenger,
				Accepted:    accepted.Clone(),
				PrevPremium: prevPremium,
				Existed:     existed,
			},
		)
	}
	op.result = Purchase{
		Premium:  policy.Premium.Clone(),
		Accepted: accepted,
		Refunded: refund,
	}
	return nil
}

// revertBuyOp undoes a purchase whose refund could not be delivered.
type revertBuyOp struct {
	Flight      FlightKey    `json:"flight"`
	Passenger   Address      `json:"passenger"`
	Accepted    *uint256.Int `json:"accepted"`
	PrevPremium *uint256.Int `json:"prevPremium"`
	Existed     bool         `json:"existed"`
}

func (op *revertBuyOp) kind() OpKind { return OpRevertBuy }

func (op *revertBuyOp) apply(tx *txn) error {
	if op.Existed {
		policy := tx.policy(op.Passenger, op.Flight)
		policy.Premium = op.PrevPremium.Clone()
	} else {
		tx.dropPolicy(op.Passenger, op.Flight)
		flight := tx.flight(op.Flight)
		insurees := flight.Insurees[:0]
		for _, p := range flight.Insurees {
			if p != op.Passenger {
				insurees = append(insurees, p)
			}
		}
		flight.Insurees = insurees
	}
	tx.subBalance(op.Accepted)
	return nil
}
