package ledger

import (
	"context"
)

// ResponseFilter decides whether oracle may answer requests carrying index.
// It is supplied by whoever assigns indexes to oracles; the ledger only
// enforces the (index, flight) match.
type ResponseFilter func(oracle Address, index uint8) bool

// Report is the outcome of an accepted oracle response.
type Report struct {
	// Counted is false for responses that arrived after the request closed.
	Counted bool
	// Closed is true when this response completed the quorum.
	Closed bool
	Agreeing int
	Final    StatusCode
}

// FetchFlightStatus opens a status request for the flight. A request that is
// still open is reissued under a freshly assigned index and its responses are
// discarded. The request index tells oracle clients which of them may answer.
func (l *Ledger) FetchFlightStatus(ctx context.Context, key FlightKey, caller Address) (*StatusRequest, error) {
	op := &fetchFlightStatusOp{Flight: key, Caller: caller, Index: l.assigner.NextIndex()}
	if err := l.execute(ctx, op); err != nil {
		return nil, err
	}
	return op.result, nil
}

// SubmitOracleResponse records an oracle's observed status for the request
// matching (index, flight). Once OracleQuorum oracles agree on a code the
// request closes and the flight is settled within the same transaction.
// Responses to a closed request are recorded but change nothing else.
func (l *Ledger) SubmitOracleResponse(ctx context.Context, index uint8, key FlightKey, status StatusCode, oracle Address) (Report, error) {
	op := &submitResponseOp{Index: index, Flight: key, Status: status, Oracle: oracle}
	if err := l.execute(ctx, op); err != nil {
		return Report{}, err
	}
	switch {
	case !op.result.Counted:
		l.metrics.oracleResponses.WithLabelValues("late").Inc()
	case op.result.Closed:
		l.metrics.oracleResponses.WithLabelValues("quorum").Inc()
		l.metrics.requestsClosed.Inc()
	default:
		l.metrics.oracleResponses.WithLabelValues("counted").Inc()
	}
	return op.result, nil
}

// GetStatusRequest returns a copy of the flight's status request.
func (l *Ledger) GetStatusRequest(key FlightKey) (*StatusRequest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.s.requests[key]
	if !ok {
		return nil, ErrUnknownRequest
	}
	return r.clone(), nil
}

// ResponseCount returns how many oracles have answered the request so far.
func (r *StatusRequest) ResponseCount() int {
	return len(r.responded)
}

type fetchFlightStatusOp struct {
	Flight FlightKey `json:"flight"`
	Caller Address   `json:"caller"`
	Index  uint8     `json:"index"`

	result *StatusRequest
}

func (op *fetchFlightStatusOp) kind() OpKind { return OpFetchFlightStatus }

func (op *fetchFlightStatusOp) apply(tx *txn) error {
	if err := tx.requireOperational(); err != nil {
		return err
	}
	flight, ok := tx.s.flights[op.Flight]
	if !ok || !flight.Registered {
		return ErrFlightNotRegistered
	}
	if flight.Status != StatusUnknown {
		return ErrFlightFinalized
	}
	if op.Index >= OracleIndexRange {
		return ErrUnknownRequest
	}
	requester := op.Caller
	if existing, ok := tx.s.requests[op.Flight]; ok && existing.Open {
		requester = existing.Requester
	}
	// An open request is re-keyed to the new index and its responses dropped,
	// so a fresh set of oracles can reach quorum.
	req := tx.request(op.Flight)
	*req = StatusRequest{
		Flight:    op.Flight,
		Index:     op.Index,
		Requester: requester,
		Open:      true,
		Responses: make(map[StatusCode][]Address),
		responded: make(map[Address]StatusCode),
	}
	tx.emit(Event{
		Type:    EventOracleRequest,
		Flight:  op.Flight,
		Address: op.Caller,
		Index:   op.Index,
	})
	op.result = tx.s.requests[op.Flight].clone()
	return nil
}

type submitResponseOp struct {
	Index  uint8      `json:"index"`
	Flight FlightKey  `json:"flight"`
	Status StatusCode `json:"status"`
	Oracle Address    `json:"oracle"`

	result Report
}

func (op *submitResponseOp) kind() OpKind { return OpSubmitResponse }

func (op *submitResponseOp) apply(tx *txn) error {
	if err := tx.requireOperational(); err != nil {
		return err
	}
	if !op.Status.IsFinal() {
		return ErrInvalidStatus
	}
	existing, ok := tx.s.requests[op.Flight]
	if !ok || existing.Index != op.Index {
		return ErrUnknownRequest
	}
	if err := tx.checkOracle(op.Oracle, op.Index); err != nil {
		return err
	}
	if _, dup := existing.responded[op.Oracle]; dup {
		return ErrDuplicateResponse
	}

	req := tx.request(op.Flight)
	req.Responses[op.Status] = append(req.Responses[op.Status], op.Oracle)
	req.responded[op.Oracle] = op.Status
	agreeing := len(req.Responses[op.Status])
	if !req.Open {
		op.result = Report{Agreeing: agreeing, Final: req.Final}
		return nil
	}

	tx.emit(Event{
		Type:    EventOracleReport,
		Flight:  op.Flight,
		Address: op.Oracle,
		Index:   op.Index,
		Status:  op.Status,
	})
	op.result = Report{Counted: true, Agreeing: agreeing}
	if agreeing >= OracleQuorum {
		req.Open = false
		req.Final = op.Status
		settleFlight(tx, op.Flight, op.Status)
		op.result.Closed = true
		op.result.Final = op.Status
	}
	return nil
}

// checkOracle applies the oracle gate. Replayed entries were already checked
// when they were first committed.
func (tx *txn) checkOracle(oracle Address, index uint8) error {
	if oracle.IsZero() {
		return ErrInvalidAddress
	}
	if tx.gate == nil {
		return nil
	}
	if tx.gate.requireRegistered {
		o, ok := tx.s.oracles[oracle]
		if !ok || !o.HasIndex(index) {
			return ErrUnauthorized
		}
	}
	if tx.gate.filter != nil && !tx.gate.filter(oracle, index) {
		return ErrUnauthorized
	}
	return nil
}

// callerGate holds the access rules that only apply to live calls.
type callerGate struct {
	requireRegistered bool
	filter            ResponseFilter
	airlineSettlement bool
}
