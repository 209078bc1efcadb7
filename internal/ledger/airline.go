package ledger

import (
	"context"

	"github.com/holiman/uint256"
)

// Admission is the outcome of a RegisterAirline call.
type Admission struct {
	Registered  bool
	Votes       int
	VotesNeeded int
}

// RegisterAirline admits candidate on behalf of caller. While fewer than
// AdmissionThreshold airlines are registered, a single call from any
// registered airline admits the candidate. Beyond that the call records
// caller's vote, and the candidate is admitted once half of the registered
// airlines (rounded down) have voted.
func (l *Ledger) RegisterAirline(ctx context.Context, candidate, caller Address) (Admission, error) {
	op := &registerAirlineOp{Candidate: candidate, Caller: caller}
	if err := l.execute(ctx, op); err != nil {
		return Admission{}, err
	}
	return op.result, nil
}

// Fund records the airline's stake. The stake must be at least
// FundingMinimum; any excess is kept.
func (l *Ledger) Fund(ctx context.Context, airline Address, value *uint256.Int) error {
	return l.execute(ctx, &fundOp{Airline: airline, Value: cloneAmount(value)})
}

func (l *Ledger) IsAirline(addr Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.s.airlines[addr]
	return ok && a.Registered
}

func (l *Ledger) IsAirlineFunded(addr Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.s.airlines[addr]
	return ok && a.Funded
}

// GetAirline returns a copy of the airline record, including pending votes.
func (l *Ledger) GetAirline(addr Address) (*Airline, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.s.airlines[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return a.clone(), nil
}

// RegisteredAirlines returns the number of registered airlines.
func (l *Ledger) RegisteredAirlines() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.s.registeredCount
}

func votesNeeded(registered int) int {
	return registered / 2
}

type registerAirlineOp struct {
	Candidate Address `json:"candidate"`
	Caller    Address `json:"caller"`

	result Admission
}

func (op *registerAirlineOp) kind() OpKind { return OpRegisterAirline }

func (op *registerAirlineOp) apply(tx *txn) error {
	if err := tx.requireOperational(); err != nil {
		return err
	}
	if op.Candidate.IsZero() {
		return ErrInvalidAddress
	}
	s := tx.s
	caller, callerKnown := s.airlines[op.Caller]
	callerRegistered := callerKnown && caller.Registered
	bootstrap := s.registeredCount < AdmissionThreshold
	if !callerRegistered && !(bootstrap && op.Caller == s.owner) {
		return ErrUnauthorized
	}
	if existing, ok := s.airlines[op.Candidate]; ok && existing.Registered {
		return ErrAlreadyRegistered
	}

	if bootstrap {
		op.admit(tx)
		return nil
	}

	if existing, ok := s.airlines[op.Candidate]; ok {
		if _, voted := existing.Votes[op.Caller]; voted {
			return ErrDuplicateVote
		}
	}
	candidate := tx.airline(op.Candidate)
	candidate.Votes[op.Caller] = struct{}{}
	needed := votesNeeded(s.registeredCount)
	tx.emit(Event{Type: EventAirlineVoted, Address: op.Candidate})
	if len(candidate.Votes) >= needed {
		op.admit(tx)
		return nil
	}
	op.result = Admission{Votes: len(candidate.Votes), VotesNeeded: needed}
	return nil
}

func (op *registerAirlineOp) admit(tx *txn) {
	candidate := tx.airline(op.Candidate)
	votes := len(candidate.Votes)
	candidate.Registered = true
	candidate.Votes = make(map[Address]struct{})
	tx.s.registeredCount++
	tx.emit(Event{Type: EventAirlineRegistered, Address: op.Candidate})
	op.result = Admission{Registered: true, Votes: votes}
}

type fundOp struct {
	Airline Address      `json:"airline"`
	Value   *uint256.Int `json:"value"`
}

func (op *fundOp) kind() OpKind { return OpFund }

func (op *fundOp) apply(tx *txn) error {
	if err := tx.requireOperational(); err != nil {
		return err
	}
	existing, ok := tx.s.airlines[op.Airline]
	if !ok || !existing.Registered {
		return ErrUnauthorized
	}
	if op.Value.Lt(FundingMinimum()) {
		return ErrInsufficientFunds
	}
	airline := tx.airline(op.Airline)
	airline.Stake = new(uint256.Int).Add(airline.Stake, op.Value)
	tx.addBalance(op.Value)
	if !airline.Funded {
		airline.Funded = true
		tx.s.fundedCount++
	}
	tx.emit(Event{Type: EventAirlineFunded, Address: op.Airline, Amount: op.Value.Clone()})
	return nil
}
