package database

import (
	"fmt"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/google/uuid"
)

// JournalEntry is one committed ledger operation.
type JournalEntry struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement:false"`
	ID        string    `gorm:"size:36;uniqueIndex;not null"`
	Kind      string    `gorm:"size:64;not null"`
	Payload   []byte    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (JournalEntry) TableName() string { return "ledger_journal" }

// PayoutTransfer is a settlement instruction waiting for an external
// settlement system. Amount is a decimal string of base units.
type PayoutTransfer struct {
	ID              string     `gorm:"primaryKey;size:36"`
	Recipient       string     `gorm:"size:42;index;not null"`
	Amount          string     `gorm:"size:80;not null"`
	Reason          string     `gorm:"size:32;not null"`
	FlightAirline   string     `gorm:"size:42"`
	FlightCode      string     `gorm:"size:32"`
	FlightTimestamp int64      `gorm:"not null;default:0"`
	CreatedAt       time.Time  `gorm:"not null"`
	SettledAt       *time.Time `gorm:"index"`
}

func (PayoutTransfer) TableName() string { return "payout_transfers" }

// MigrateModels lists every model the SQLite store creates.
var MigrateModels = []any{
	&JournalEntry{},
	&PayoutTransfer{},
}

func journalEntryFrom(e ledger.Entry) JournalEntry {
	return JournalEntry{
		Seq:       e.Seq,
		ID:        e.ID.String(),
		Kind:      string(e.Kind),
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt.UTC(),
	}
}

func (j JournalEntry) toLedger() (ledger.Entry, error) {
	id, err := uuid.Parse(j.ID)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("failed to parse journal entry id %q: %w", j.ID, err)
	}
	return ledger.Entry{
		ID:        id,
		Seq:       j.Seq,
		Kind:      ledger.OpKind(j.Kind),
		Payload:   j.Payload,
		CreatedAt: j.CreatedAt,
	}, nil
}

func payoutTransferFrom(t ledger.Transfer) PayoutTransfer {
	return PayoutTransfer{
		ID:              t.ID.String(),
		Recipient:       string(t.To),
		Amount:          t.Amount.Dec(),
		Reason:          string(t.Reason),
		FlightAirline:   string(t.Flight.Airline),
		FlightCode:      t.Flight.Code,
		FlightTimestamp: t.Flight.Timestamp,
		CreatedAt:       t.CreatedAt.UTC(),
	}
}
