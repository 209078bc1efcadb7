package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// IndexAssigner picks request indexes for status requests and oracle
// registrations. Implementations must return values in [0, OracleIndexRange).
type IndexAssigner interface {
	NextIndex() uint8
}

// Config holds the ledger's collaborators. Only Owner is required.
type Config struct {
	Owner        Address
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Journal      Journal
	// Transferer issues funds transfers after their entry is journaled. Leave
	// it nil when the Journal stores Entry.Transfers with the entry; the
	// transfers then commit or fail together with the operation.
	Transferer Transferer
	// Events receives committed events in Seq order. Sinks must not call
	// back into the ledger.
	Events        EventSink
	IndexAssigner IndexAssigner
	// RequireRegisteredOracles rejects responses from oracles that are not
	// registered with the ledger or do not hold the request index.
	RequireRegisteredOracles bool
	// ResponseFilter, when set, decides whether an oracle may answer a
	// request index. Leave nil to accept any oracle.
	ResponseFilter ResponseFilter
	// AirlineSettlement lets a flight's own airline finalize it through
	// ProcessFlightStatus. Owner and authorized callers always can.
	AirlineSettlement bool
	Now               func() time.Time
}

// Ledger is the authoritative, serialized state machine. Every mutation runs
// as one transaction under a single lock: it is applied, journaled and only
// then made visible. Reads take the read lock and see committed state only.
type Ledger struct {
	mu sync.RWMutex
	// publishMu is taken before mu is released so events leave in Seq order.
	publishMu  sync.Mutex
	s          *state
	seq        uint64
	logger     *slog.Logger
	journal    Journal
	transferer Transferer
	events     EventSink
	assigner   IndexAssigner
	gate       *callerGate
	now        func() time.Time
	metrics    *ledgerMetrics
}

// New creates an empty ledger owned by cfg.Owner.
func New(cfg Config) (*Ledger, error) {
	if cfg.Owner.IsZero() {
		return nil, errors.New("ledger owner is required")
	}
	l := &Ledger{
		s:          newState(cfg.Owner),
		logger:     cfg.Logger,
		journal:    cfg.Journal,
		transferer: cfg.Transferer,
		events:     cfg.Events,
		assigner:   cfg.IndexAssigner,
		now:        cfg.Now,
	}
	l.gate = &callerGate{
		requireRegistered: cfg.RequireRegisteredOracles,
		filter:            cfg.ResponseFilter,
		airlineSettlement: cfg.AirlineSettlement,
	}
	if l.logger == nil {
		l.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if l.journal == nil {
		l.journal = NewMemoryJournal()
	}
	if l.events == nil {
		l.events = nopSink{}
	}
	if l.assigner == nil {
		l.assigner = NewRandomAssigner(time.Now().UnixNano())
	}
	if l.now == nil {
		l.now = time.Now
	}
	promRegistry := cfg.PromRegistry
	if promRegistry == nil {
		promRegistry = prometheus.NewRegistry()
	}
	l.metrics = &ledgerMetrics{}
	l.metrics.init(promRegistry)
	l.metrics.operational.Set(1)
	return l, nil
}

// Restore replays the journal into the ledger. It must be called on a fresh
// ledger before any other operation. Transfers are not re-issued.
func (l *Ledger) Restore(ctx context.Context) error {
	entries, err := l.journal.Entries(ctx)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seq != 0 {
		return errors.New("restore requires an empty ledger")
	}
	for _, entry := range entries {
		op, err := decodeEntry(entry)
		if err != nil {
			return err
		}
		tx := newTxn(l.s)
		if err := op.apply(tx); err != nil {
			tx.rollback()
			return fmt.Errorf("journal replay diverged at entry %d (%s): %w", entry.Seq, entry.Kind, err)
		}
		l.seq = entry.Seq
	}
	l.refreshGauges()
	l.logger.Info(
		"restored ledger from journal",
		"component", "ledger",
		"entries", len(entries),
		"seq", l.seq,
	)
	return nil
}

// Seq returns the sequence number of the last committed operation.
func (l *Ledger) Seq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.seq
}

// Owner returns the ledger owner.
func (l *Ledger) Owner() Address {
	return l.s.owner
}

func (l *Ledger) execute(ctx context.Context, op operation) error {
	events, err := l.commit(ctx, op)
	if err != nil {
		l.logger.Debug(
			"operation rejected",
			"component", "ledger",
			"op", op.kind(),
			"error", err,
		)
		return err
	}
	defer l.publishMu.Unlock()
	for _, evt := range events {
		if evt.Type == EventPassengerCredited {
			l.metrics.creditsIssued.Inc()
		}
	}
	if len(events) > 0 {
		l.events.Publish(ctx, events)
	}
	return nil
}

// commit runs op under the write lock. On success it returns with publishMu
// held; the caller publishes the events and releases it.
func (l *Ledger) commit(ctx context.Context, op operation) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.refreshGauges()
	events, err := l.commitLocked(ctx, op)
	if err != nil {
		return nil, err
	}
	l.publishMu.Lock()
	return events, nil
}

// commitLocked applies op and journals it together with its transfers. With
// a Transferer the transfers are issued after the append, and a failed one
// commits the operation's compensation and reports ErrTransferFailed.
func (l *Ledger) commitLocked(ctx context.Context, op operation) ([]Event, error) {
	tx := newTxn(l.s)
	tx.gate = l.gate
	if err := op.apply(tx); err != nil {
		tx.rollback()
		return nil, err
	}
	transfers := make([]Transfer, 0, len(tx.effects))
	for i := range tx.effects {
		t := &tx.effects[i].transfer
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		t.CreatedAt = l.now()
		transfers = append(transfers, *t)
	}
	if err := l.appendLocked(ctx, op, transfers); err != nil {
		tx.rollback()
		if len(transfers) > 0 {
			return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
		return nil, err
	}
	if l.transferer == nil {
		for _, t := range transfers {
			l.metrics.transfers.WithLabelValues(string(t.Reason)).Inc()
		}
		return l.stamp(tx.events), nil
	}
	for _, fx := range tx.effects {
		err := l.transferer.Transfer(ctx, fx.transfer)
		if err == nil {
			l.metrics.transfers.WithLabelValues(string(fx.transfer.Reason)).Inc()
			continue
		}
		l.metrics.transferFailures.Inc()
		l.logger.Error(
			"funds transfer failed, compensating",
			"component", "ledger",
			"op", op.kind(),
			"to", fx.transfer.To,
			"amount", fx.transfer.Amount.Dec(),
			"error", err,
		)
		if _, cerr := l.commitLocked(ctx, fx.compensate); cerr != nil {
			// The journal now holds the operation without its compensation.
			// Memory is still restored; a replay settles on the journaled side.
			tx.rollback()
			l.logger.Error(
				"failed to journal compensation",
				"component", "ledger",
				"op", fx.compensate.kind(),
				"error", cerr,
			)
			return nil, errors.Join(fmt.Errorf("%w: %w", ErrTransferFailed, err), cerr)
		}
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return l.stamp(tx.events), nil
}

func (l *Ledger) stamp(events []Event) []Event {
	now := l.now()
	for i := range events {
		events[i].Seq = l.seq
		events[i].Timestamp = now
	}
	return events
}

func (l *Ledger) appendLocked(ctx context.Context, op operation, transfers []Transfer) error {
	payload, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", op.kind(), err)
	}
	entry := Entry{
		ID:        uuid.New(),
		Seq:       l.seq + 1,
		Kind:      op.kind(),
		Payload:   payload,
		CreatedAt: l.now(),
		Transfers: transfers,
	}
	if err := l.journal.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	l.seq = entry.Seq
	l.metrics.operations.WithLabelValues(string(op.kind())).Inc()
	return nil
}

func (l *Ledger) refreshGauges() {
	l.metrics.airlinesRegistered.Set(float64(l.s.registeredCount))
	l.metrics.airlinesFunded.Set(float64(l.s.fundedCount))
	l.metrics.flights.Set(float64(len(l.s.flights)))
	l.metrics.policies.Set(float64(len(l.s.policies)))
	l.metrics.oracles.Set(float64(len(l.s.oracles)))
	l.metrics.balance.Set(UnitsFloat(l.s.balance))
	if l.s.operational {
		l.metrics.operational.Set(1)
	} else {
		l.metrics.operational.Set(0)
	}
}

// Balance returns the funds currently escrowed by the ledger.
func (l *Ledger) Balance() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.s.balance.Clone()
}
