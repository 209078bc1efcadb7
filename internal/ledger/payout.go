package ledger

import (
	"context"

	"github.com/holiman/uint256"
)

// ProcessFlightStatus finalizes a flight without oracle consensus. It is
// open to the owner and authorized callers, and to the flight's airline when
// Config.AirlineSettlement is set.
func (l *Ledger) ProcessFlightStatus(ctx context.Context, key FlightKey, status StatusCode, caller Address) error {
	return l.execute(ctx, &processStatusOp{Flight: key, Status: status, Caller: caller})
}

// CheckCredit returns the passenger's withdrawable credit.
func (l *Ledger) CheckCredit(passenger Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneAmount(l.s.credits[passenger])
}

// PayoutPassenger is CheckCredit under the name oracle clients poll.
func (l *Ledger) PayoutPassenger(passenger Address) *uint256.Int {
	return l.CheckCredit(passenger)
}

// Pay withdraws the caller's whole credit. The credit is zeroed and
// journaled before the transfer is issued; if the transfer fails the credit
// is restored and ErrTransferFailed is returned. key only labels the
// withdrawal.
func (l *Ledger) Pay(ctx context.Context, passenger Address, key FlightKey, caller Address) (*uint256.Int, error) {
	op := &payOp{Passenger: passenger, Flight: key, Caller: caller}
	if err := l.execute(ctx, op); err != nil {
		return nil, err
	}
	return op.Amount, nil
}

// settleFlight records the final status and, for StatusLateAirline, credits
// every unpaid insuree with 1.5x their premium.
func settleFlight(tx *txn, key FlightKey, status StatusCode) {
	flight := tx.flight(key)
	flight.Status = status
	tx.emit(Event{Type: EventFlightStatusInfo, Flight: key, Status: status})
	if status != StatusLateAirline {
		return
	}
	for _, passenger := range flight.Insurees {
		existing, ok := tx.s.policies[policyKey{passenger: passenger, flight: key}]
		if !ok || existing.Paid || existing.Premium.IsZero() {
			continue
		}
		policy := tx.policy(passenger, key)
		policy.Paid = true
		amount := payoutFor(policy.Premium)
		tx.setCredit(passenger, new(uint256.Int).Add(tx.credit(passenger), amount))
		tx.emit(Event{
			Type:    EventPassengerCredited,
			Flight:  key,
			Address: passenger,
			Amount:  amount,
		})
	}
}

type processStatusOp struct {
	Flight FlightKey  `json:"flight"`
	Status StatusCode `json:"status"`
	Caller Address    `json:"caller"`
}

func (op *processStatusOp) kind() OpKind { return OpProcessStatus }

func (op *processStatusOp) apply(tx *txn) error {
	if err := tx.requireOperational(); err != nil {
		return err
	}
	if !op.Status.IsFinal() {
		return ErrInvalidStatus
	}
	flight, ok := tx.s.flights[op.Flight]
	if !ok || !flight.Registered {
		return ErrFlightNotRegistered
	}
	if !tx.maySettle(op.Caller, op.Flight) {
		return ErrUnauthorized
	}
	if flight.Status != StatusUnknown {
		return ErrFlightFinalized
	}
	if existing, ok := tx.s.requests[op.Flight]; ok && existing.Open {
		req := tx.request(op.Flight)
		req.Open = false
		req.Final = op.Status
	}
	settleFlight(tx, op.Flight, op.Status)
	return nil
}

// maySettle reports whether caller may finalize flight directly. Replayed
// entries were already checked when they were first committed.
func (tx *txn) maySettle(caller Address, flight FlightKey) bool {
	if tx.gate == nil || caller == tx.s.owner || tx.s.authorized[caller] {
		return true
	}
	return tx.gate.airlineSettlement && caller == flight.Airline
}

type payOp struct {
	Passenger Address   `json:"passenger"`
	Flight    FlightKey `json:"flight"`
	Caller    Address   `json:"caller"`
	// Amount is filled in by apply and journaled with the entry.
	Amount *uint256.Int `json:"amount"`
}

func (op *payOp) kind() OpKind { return OpPay }

func (op *payOp) apply(tx *txn) error {
	if err := tx.requireOperational(); err != nil {
		return err
	}
	if op.Caller != op.Passenger {
		return ErrUnauthorized
	}
	amount := tx.credit(op.Passenger)
	if amount.IsZero() {
		return ErrNoCredit
	}
	if tx.s.balance.Lt(amount) {
		return ErrInsufficientFunds
	}
	tx.setCredit(op.Passenger, new(uint256.Int))
	tx.subBalance(amount)
	op.Amount = amount
	tx.emit(Event{
		Type:    EventPassengerPaid,
		Flight:  op.Flight,
		Address: op.Passenger,
		Amount:  amount.Clone(),
	})
	tx.after(
		Transfer{
			To:     op.Passenger,
			Amount: amount.Clone(),
			Reason: TransferWithdrawal,
			Flight: op.Flight,
		},
		&restoreCreditOp{Passenger: op.Passenger, Amount: amount.Clone()},
	)
	return nil
}

// restoreCreditOp gives back a withdrawal whose transfer failed.
type restoreCreditOp struct {
	Passenger Address      `json:"passenger"`
	Amount    *uint256.Int `json:"amount"`
}

func (op *restoreCreditOp) kind() OpKind { return OpRestoreCredit }

func (op *restoreCreditOp) apply(tx *txn) error {
	tx.setCredit(op.Passenger, new(uint256.Int).Add(tx.credit(op.Passenger), op.Amount))
	tx.addBalance(op.Amount)
	return nil
}
