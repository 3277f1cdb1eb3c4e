// Package accountdb is an optional durable snapshot store for a simulator
// session's Account Store, persisted via GORM/SQLite. It exists purely as
// a replay/inspection convenience layered over the in-memory simulator
// (§5: the live session itself never touches disk) — grounded in the
// teacher's context/db package, which persists blockchain state the same
// way.
package accountdb

import (
	"fmt"
	"time"

	"github.com/govm-net/sim/account"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBAccount is the on-disk row for a single persisted account snapshot.
type DBAccount struct {
	gorm.Model
	SessionID     string `gorm:"column:session_id;not null;index"`
	AccountID     string `gorm:"column:account_id;not null;index"`
	ContractImage string `gorm:"column:contract_image"`
	SignerKey     string `gorm:"column:signer_key"`
	Balance       uint64 `gorm:"column:balance;not null"`
	LockedBalance uint64 `gorm:"column:locked_balance;not null"`
	StorageUsage  uint64 `gorm:"column:storage_usage;not null"`
	EncodedState  []byte `gorm:"column:encoded_state;type:blob"`
	SavedAt       int64  `gorm:"column:saved_at;not null"`
}

// TableName pins the table name independent of Go naming conventions,
// matching the teacher's DBBlock/DBTransaction tables.
func (DBAccount) TableName() string {
	return "account_snapshots"
}

// Store is a GORM/SQLite-backed snapshot store for one or more simulator
// sessions, distinguished by SessionID.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) a SQLite database at path and
// migrates its schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("accountdb: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&DBAccount{}); err != nil {
		return nil, fmt.Errorf("accountdb: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("accountdb: underlying db: %w", err)
	}
	return sqlDB.Close()
}

// SaveSnapshot persists every account in accounts under sessionID,
// superseding any snapshot previously saved for that session.
func (s *Store) SaveSnapshot(sessionID string, accounts map[string]account.Account) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&DBAccount{}).Error; err != nil {
			return fmt.Errorf("accountdb: clear prior snapshot: %w", err)
		}
		now := time.Now().Unix()
		for _, acc := range accounts {
			row := DBAccount{
				SessionID:     sessionID,
				AccountID:     acc.AccountID,
				ContractImage: acc.ContractImage,
				SignerKey:     acc.SignerKey,
				Balance:       acc.Balance,
				LockedBalance: acc.LockedBalance,
				StorageUsage:  acc.StorageUsage,
				EncodedState:  acc.EncodedState,
				SavedAt:       now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("accountdb: save account %s: %w", acc.AccountID, err)
			}
		}
		return nil
	})
}

// LoadSnapshot returns every account previously saved under sessionID,
// keyed by account id.
func (s *Store) LoadSnapshot(sessionID string) (map[string]account.Account, error) {
	var rows []DBAccount
	if err := s.db.Where("session_id = ?", sessionID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("accountdb: load snapshot %s: %w", sessionID, err)
	}

	out := make(map[string]account.Account, len(rows))
	for _, row := range rows {
		out[row.AccountID] = account.Account{
			AccountID:     row.AccountID,
			ContractImage: row.ContractImage,
			SignerKey:     row.SignerKey,
			Balance:       row.Balance,
			LockedBalance: row.LockedBalance,
			StorageUsage:  row.StorageUsage,
			EncodedState:  row.EncodedState,
		}
	}
	return out, nil
}
