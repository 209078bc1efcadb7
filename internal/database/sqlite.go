package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SQLiteStore keeps the ledger journal and the payout outbox in a SQLite
// file. It is meant for single-node deployments and tests.
type SQLiteStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (and migrates) the store in dataDir. An empty dataDir
// gives a private in-memory database.
func NewSQLiteStore(dataDir string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var dsn string
	if dataDir == "" {
		// each store gets its own named in-memory database
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	} else {
		if _, err := os.Stat(dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(dataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		dsn = fmt.Sprintf(
			"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
			filepath.Join(dataDir, "ledger.sqlite"),
		)
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	for _, model := range MigrateModels {
		logger.Debug(fmt.Sprintf("creating table: %T", model), "component", "database")
		if err := db.AutoMigrate(model); err != nil {
			return nil, fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Append writes one journal entry and its outbox rows in one transaction.
// The entry must follow the last one.
func (s *SQLiteStore) Append(ctx context.Context, entry ledger.Entry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last uint64
		if err := tx.Model(&JournalEntry{}).Select("COALESCE(MAX(seq), 0)").Scan(&last).Error; err != nil {
			return fmt.Errorf("failed to read journal head: %w", err)
		}
		if entry.Seq != last+1 {
			return fmt.Errorf("%w: have %d, appending %d", ErrSequenceConflict, last, entry.Seq)
		}
		row := journalEntryFrom(entry)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert journal entry: %w", err)
		}
		for _, t := range entry.Transfers {
			transfer := payoutTransferFrom(t)
			if err := tx.Create(&transfer).Error; err != nil {
				return fmt.Errorf("failed to record transfer: %w", err)
			}
		}
		return nil
	})
}

// Entries returns the whole journal in sequence order.
func (s *SQLiteStore) Entries(ctx context.Context) ([]ledger.Entry, error) {
	var rows []JournalEntry
	if err := s.db.WithContext(ctx).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	entries := make([]ledger.Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toLedger()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// PendingTransfers returns outbox rows not yet marked settled, oldest first.
func (s *SQLiteStore) PendingTransfers(ctx context.Context) ([]PayoutTransfer, error) {
	var out []PayoutTransfer
	err := s.db.WithContext(ctx).
		Where("settled_at IS NULL").
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	return out, nil
}

// MarkSettled records that the settlement system executed transfer id.
func (s *SQLiteStore) MarkSettled(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).
		Model(&PayoutTransfer{}).
		Where("id = ? AND settled_at IS NULL", id).
		Update("settled_at", time.Now().UTC())
	if result.Error != nil {
		return fmt.Errorf("failed to mark transfer settled: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
