package ledger

import "context"

// RegisterFlight records a flight for a funded airline. Only the airline
// itself may register its flights.
func (l *Ledger) RegisterFlight(ctx context.Context, key FlightKey, caller Address) error {
	return l.execute(ctx, &registerFlightOp{Flight: key, Caller: caller})
}

// GetFlight returns a copy of the flight record.
func (l *Ledger) GetFlight(key FlightKey) (*Flight, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.s.flights[key]
	if !ok || !f.Registered {
		return nil, ErrFlightNotRegistered
	}
	return f.clone(), nil
}

type registerFlightOp struct {
	Flight FlightKey `json:"flight"`
	Caller Address   `json:"caller"`
}

func (op *registerFlightOp) kind() OpKind { return OpRegisterFlight }

func (op *registerFlightOp) apply(tx *txn) error {
	if err := tx.requireOperational(); err != nil {
		return err
	}
	if op.Caller != op.Flight.Airline {
		return ErrNotFunded
	}
	airline, ok := tx.s.airlines[op.Flight.Airline]
	if !ok || !airline.Funded {
		return ErrNotFunded
	}
	if existing, ok := tx.s.flights[op.Flight]; ok && existing.Registered {
		return ErrAlreadyRegistered
	}
	flight := tx.flight(op.Flight)
	flight.Registered = true
	flight.Status = StatusUnknown
	tx.emit(Event{Type: EventFlightRegistered, Flight: op.Flight, Address: op.Caller})
	return nil
}
