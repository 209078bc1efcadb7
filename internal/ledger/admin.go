package ledger

import "context"

// IsOperational reports the kill-switch state. Reads keep working while the
// ledger is paused; mutations fail with ErrNotOperational.
func (l *Ledger) IsOperational() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.s.operational
}

// SetOperatingStatus pauses or resumes the ledger. Owner only.
func (l *Ledger) SetOperatingStatus(ctx context.Context, operational bool, caller Address) error {
	return l.execute(ctx, &setOperatingStatusOp{Operational: operational, Caller: caller})
}

// AuthorizeCaller allows addr to trigger flight status processing directly.
func (l *Ledger) AuthorizeCaller(ctx context.Context, addr, caller Address) error {
	return l.execute(ctx, &authorizeCallerOp{Target: addr, Allowed: true, Caller: caller})
}

// DeauthorizeCaller revokes a previous AuthorizeCaller.
func (l *Ledger) DeauthorizeCaller(ctx context.Context, addr, caller Address) error {
	return l.execute(ctx, &authorizeCallerOp{Target: addr, Allowed: false, Caller: caller})
}

// IsAuthorizedCaller reports whether addr may process flight statuses.
func (l *Ledger) IsAuthorizedCaller(addr Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.s.authorized[addr]
}

type setOperatingStatusOp struct {
	Operational bool    `json:"operational"`
	Caller      Address `json:"caller"`
}

func (op *setOperatingStatusOp) kind() OpKind { return OpSetOperatingStatus }

func (op *setOperatingStatusOp) apply(tx *txn) error {
	if op.Caller != tx.s.owner {
		return ErrUnauthorized
	}
	tx.s.operational = op.Operational
	tx.emit(Event{Type: EventOperatingStatus, Address: op.Caller})
	return nil
}

type authorizeCallerOp struct {
	Target  Address `json:"target"`
	Allowed bool    `json:"allowed"`
	Caller  Address `json:"caller"`
}

func (op *authorizeCallerOp) kind() OpKind { return OpAuthorizeCaller }

func (op *authorizeCallerOp) apply(tx *txn) error {
	if err := tx.requireOperational(); err != nil {
		return err
	}
	if op.Caller != tx.s.owner {
		return ErrUnauthorized
	}
	tx.setAuthorized(op.Target, op.Allowed)
	return nil
}
