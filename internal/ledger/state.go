package ledger

import (
	"github.com/holiman/uint256"
)

// Airline is a federation member record. Records are never removed.
type Airline struct {
	Address    Address
	Registered bool
	Funded     bool
	Stake      *uint256.Int
	// Votes holds the registered airlines that voted to admit this one.
	// It is cleared once registration succeeds.
	Votes map[Address]struct{}
}

func (a *Airline) clone() *Airline {
	c := *a
	c.Stake = cloneAmount(a.Stake)
	c.Votes = make(map[Address]struct{}, len(a.Votes))
	for v := range a.Votes {
		c.Votes[v] = struct{}{}
	}
	return &c
}

// VoteList returns the voters in address order.
func (a *Airline) VoteList() []Address {
	out := make([]Address, 0, len(a.Votes))
	for v := range a.Votes {
		out = append(out, v)
	}
	return sortAddresses(out)
}

// Flight is a registered flight and its settlement state.
type Flight struct {
	Key        FlightKey
	Status     StatusCode
	Registered bool
	// Insurees lists policy holders in purchase order.
	Insurees []Address
}

func (f *Flight) clone() *Flight {
	c := *f
	c.Insurees = append([]Address(nil), f.Insurees...)
	return &c
}

type policyKey struct {
	passenger Address
	flight    FlightKey
}

// Policy is a passenger's insurance on one flight.
type Policy struct {
	Passenger Address
	Flight    FlightKey
	Premium   *uint256.Int
	Paid      bool
}

func (p *Policy) clone() *Policy {
	c := *p
	c.Premium = cloneAmount(p.Premium)
	return &c
}

// StatusRequest tracks oracle responses for one flight.
type StatusRequest struct {
	Flight    FlightKey
	Index     uint8
	Requester Address
	Open      bool
	// Final is the agreed status once the request has closed.
	Final     StatusCode
	Responses map[StatusCode][]Address
	responded map[Address]StatusCode
}

func (r *StatusRequest) clone() *StatusRequest {
	c := *r
	c.Responses = make(map[StatusCode][]Address, len(r.Responses))
	for code, addrs := range r.Responses {
		c.Responses[code] = append([]Address(nil), addrs...)
	}
	c.responded = make(map[Address]StatusCode, len(r.responded))
	for a, code := range r.responded {
		c.responded[a] = code
	}
	return &c
}

// Oracle is a registered oracle and the request indexes it may answer.
type Oracle struct {
	Address Address
	Indexes [OracleIndexCount]uint8
}

// HasIndex reports whether the oracle holds idx.
func (o *Oracle) HasIndex(idx uint8) bool {
	for _, i := range o.Indexes {
		if i == idx {
			return true
		}
	}
	return false
}

// state is the single authoritative store. It is only touched under the
// ledger lock and only mutated through a txn.
type state struct {
	owner           Address
	operational     bool
	authorized      map[Address]bool
	airlines        map[Address]*Airline
	registeredCount int
	fundedCount     int
	flights         map[FlightKey]*Flight
	policies        map[policyKey]*Policy
	requests        map[FlightKey]*StatusRequest
	credits         map[Address]*uint256.Int
	oracles         map[Address]*Oracle
	balance         *uint256.Int
}

func newState(owner Address) *state {
	return &state{
		owner:       owner,
		operational: true,
		authorized:  make(map[Address]bool),
		airlines:    make(map[Address]*Airline),
		flights:     make(map[FlightKey]*Flight),
		policies:    make(map[policyKey]*Policy),
		requests:    make(map[FlightKey]*StatusRequest),
		credits:     make(map[Address]*uint256.Int),
		oracles:     make(map[Address]*Oracle),
		balance:     new(uint256.Int),
	}
}

type touchKey struct {
	table string
	key   any
}

// effect is a funds transfer that runs after the transaction is journaled.
// If it fails, compensate is committed to undo the transaction's writes.
type effect struct {
	transfer   Transfer
	compensate operation
}

// txn collects undo steps for every record it touches so that a failed
// operation leaves no partial writes behind.
type txn struct {
	s       *state
	undo    []func()
	touched map[touchKey]struct{}
	events  []Event
	effects []effect
	// gate is nil while replaying the journal.
	gate *callerGate
}

func newTxn(s *state) *txn {
	tx := &txn{
		s:       s,
		touched: make(map[touchKey]struct{}),
	}
	operational := s.operational
	registered, funded := s.registeredCount, s.fundedCount
	balance := s.balance.Clone()
	tx.undo = append(tx.undo, func() {
		s.operational = operational
		s.registeredCount, s.fundedCount = registered, funded
		s.balance = balance
	})
	return tx
}

func (tx *txn) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.events = nil
	tx.effects = nil
}

func (tx *txn) emit(evt Event) {
	tx.events = append(tx.events, evt)
}

func (tx *txn) after(t Transfer, compensate operation) {
	tx.effects = append(tx.effects, effect{transfer: t, compensate: compensate})
}

// touch snapshots m[k] the first time it is seen in this transaction.
func touch[K comparable, V any](tx *txn, table string, m map[K]V, k K, clone func(V) V) {
	tk := touchKey{table: table, key: k}
	if _, ok := tx.touched[tk]; ok {
		return
	}
	tx.touched[tk] = struct{}{}
	prev, existed := m[k]
	if existed {
		prev = clone(prev)
	}
	tx.undo = append(tx.undo, func() {
		if existed {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
}

func (tx *txn) airline(addr Address) *Airline {
	touch(tx, "airline", tx.s.airlines, addr, (*Airline).clone)
	a, ok := tx.s.airlines[addr]
	if !ok {
		a = &Airline{
			Address: addr,
			Stake:   new(uint256.Int),
			Votes:   make(map[Address]struct{}),
		}
		tx.s.airlines[addr] = a
	}
	return a
}

func (tx *txn) flight(key FlightKey) *Flight {
	touch(tx, "flight", tx.s.flights, key, (*Flight).clone)
	f, ok := tx.s.flights[key]
	if !ok {
		f = &Flight{Key: key}
		tx.s.flights[key] = f
	}
	return f
}

func (tx *txn) policy(passenger Address, key FlightKey) *Policy {
	pk := policyKey{passenger: passenger, flight: key}
	touch(tx, "policy", tx.s.policies, pk, (*Policy).clone)
	p, ok := tx.s.policies[pk]
	if !ok {
		p = &Policy{Passenger: passenger, Flight: key, Premium: new(uint256.Int)}
		tx.s.policies[pk] = p
	}
	return p
}

func (tx *txn) dropPolicy(passenger Address, key FlightKey) {
	pk := policyKey{passenger: passenger, flight: key}
	touch(tx, "policy", tx.s.policies, pk, (*Policy).clone)
	delete(tx.s.policies, pk)
}

func (tx *txn) request(key FlightKey) *StatusRequest {
	touch(tx, "request", tx.s.requests, key, (*StatusRequest).clone)
	r, ok := tx.s.requests[key]
	if !ok {
		r = &StatusRequest{
			Flight:    key,
			Responses: make(map[StatusCode][]Address),
			responded: make(map[Address]StatusCode),
		}
		tx.s.requests[key] = r
	}
	return r
}

func (tx *txn) setCredit(passenger Address, amount *uint256.Int) {
	touch(tx, "credit", tx.s.credits, passenger, (*uint256.Int).Clone)
	if amount.IsZero() {
		delete(tx.s.credits, passenger)
		return
	}
	tx.s.credits[passenger] = amount
}

func (tx *txn) credit(passenger Address) *uint256.Int {
	return cloneAmount(tx.s.credits[passenger])
}

func (tx *txn) putOracle(o *Oracle) {
	touch(tx, "oracle", tx.s.oracles, o.Address, func(o *Oracle) *Oracle { c := *o; return &c })
	tx.s.oracles[o.Address] = o
}

func (tx *txn) setAuthorized(addr Address, allowed bool) {
	touch(tx, "authorized", tx.s.authorized, addr, func(b bool) bool { return b })
	if allowed {
		tx.s.authorized[addr] = true
		return
	}
	delete(tx.s.authorized, addr)
}

func (tx *txn) addBalance(v *uint256.Int) {
	tx.s.balance = new(uint256.Int).Add(tx.s.balance, v)
}

func (tx *txn) subBalance(v *uint256.Int) {
	tx.s.balance = new(uint256.Int).Sub(tx.s.balance, v)
}

func (tx *txn) requireOperational() error {
	if !tx.s.operational {
		return ErrNotOperational
	}
	return nil
}
