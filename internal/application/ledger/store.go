package ledger

import (
	"context"
	"errors"
	"time"

	"paper-ledger/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is durable per-user storage of the transaction log and its cached
// balance. Every user owns exactly one logical log.
type Store interface {
	EnsureUser(ctx context.Context, username string) error
	AppendTransaction(ctx context.Context, username string, tx *domain.Transaction) error
	GetLog(ctx context.Context, username string) ([]domain.Transaction, error)
	GetBalance(ctx context.Context, username string) (decimal.Decimal, error)
	GetHoldingQuantity(ctx context.Context, username, instrument string) (decimal.Decimal, error)
	Holdings(ctx context.Context, username string) ([]domain.Holding, error)
	Reconcile(ctx context.Context, username string) (*Reconciliation, error)

	// Locked runs fn against a view of the store that holds the user's
	// account lock for the length of one database transaction. Reads done
	// through that view see exactly the state the appends in fn build on.
	Locked(ctx context.Context, username string, fn func(Store) error) error
}

// Reconciliation compares the cached balance with a full recomputation.
type Reconciliation struct {
	Username   string          `json:"username"`
	Cached     decimal.Decimal `json:"cached"`
	Derived    decimal.Decimal `json:"derived"`
	Entries    int             `json:"entries"`
	Consistent bool            `json:"consistent"`
}

// GormStore implements Store on any GORM dialect. All users share one
// ledger table; rows are partitioned by the username column.
type GormStore struct {
	DB *gorm.DB

	// bound is set on the view handed to Locked callbacks; DB is then the
	// open transaction.
	bound bool
}

// NewGormStore returns a store over db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	if s.bound {
		return s.DB
	}
	return s.DB.WithContext(ctx)
}

// atomic runs fn in a transaction, reusing the enclosing one when bound.
func (s *GormStore) atomic(ctx context.Context, fn func(db *gorm.DB) error) error {
	if s.bound {
		return fn(s.DB)
	}
	return s.DB.WithContext(ctx).Transaction(fn)
}

// EnsureUser provisions the account row. Calling it again is a no-op.
func (s *GormStore) EnsureUser(ctx context.Context, username string) error {
	err := s.conn(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.Account{Username: username, Balance: domain.NewMoney(decimal.Zero)}).Error
	return storageErr("ensure user", err)
}

// lockAccount loads the user's account row with a write lock, provisioning it
// first when missing. Dialects without row locks (SQLite) drop the clause.
func lockAccount(db *gorm.DB, username string) (*domain.Account, error) {
	var acct domain.Account
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("username = ?", username).
		First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&domain.Account{Username: username, Balance: domain.NewMoney(decimal.Zero)}).Error; err != nil {
			return nil, err
		}
		err = db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("username = ?", username).
			First(&acct).Error
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// AppendTransaction inserts tx as the user's next entry and recomputes the
// cached balance from the whole log in the same database transaction.
func (s *GormStore) AppendTransaction(ctx context.Context, username string, tx *domain.Transaction) error {
	err := s.atomic(ctx, func(db *gorm.DB) error {
		acct, err := lockAccount(db, username)
		if err != nil {
			return err
		}

		tx.Username = username
		tx.Seq = acct.Version + 1
		if err := db.Create(tx).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrConcurrentUpdate
			}
			return err
		}

		var log []domain.Transaction
		if err := db.Select("action", "amount").
			Where("username = ?", username).
			Find(&log).Error; err != nil {
			return err
		}

		res := db.Model(&domain.Account{}).
			Where("username = ? AND version = ?", username, acct.Version).
			Updates(map[string]interface{}{
				"balance":    domain.Fold(log),
				"version":    tx.Seq,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}
		return nil
	})
	return storageErr("append transaction", err)
}

// GetLog returns the user's ledger, most recent first.
func (s *GormStore) GetLog(ctx context.Context, username string) ([]domain.Transaction, error) {
	log := []domain.Transaction{}
	if err := s.conn(ctx).
		Where("username = ?", username).
		Order("date DESC, created_at DESC, seq DESC").
		Find(&log).Error; err != nil {
		return nil, storageErr("get log", err)
	}
	// Text-encoded timestamps (SQLite) may not collate chronologically.
	domain.SortLog(log)
	return log, nil
}

// GetBalance returns the cached balance, zero when the user has no account row.
func (s *GormStore) GetBalance(ctx context.Context, username string) (decimal.Decimal, error) {
	var acct domain.Account
	err := s.conn(ctx).Where("username = ?", username).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, storageErr("get balance", err)
	}
	return acct.Balance.Decimal, nil
}

// GetHoldingQuantity returns bought minus sold for one instrument.
func (s *GormStore) GetHoldingQuantity(ctx context.Context, username, instrument string) (decimal.Decimal, error) {
	// Case folding happens in Go; SQL LOWER() only folds ASCII on some dialects.
	var rows []domain.Transaction
	if err := s.conn(ctx).
		Select("stock", "action", "amount").
		Where("username = ? AND action IN ?",
			username, []domain.Action{domain.ActionBuy, domain.ActionSell}).
		Find(&rows).Error; err != nil {
		return decimal.Zero, storageErr("get holding", err)
	}
	return domain.HoldingQuantity(rows, instrument), nil
}

// Holdings returns every non-zero position of the user.
func (s *GormStore) Holdings(ctx context.Context, username string) ([]domain.Holding, error) {
	log, err := s.GetLog(ctx, username)
	if err != nil {
		return nil, err
	}
	return domain.Holdings(log), nil
}

// Reconcile recomputes the balance from the log and compares it with the
// cached value, reading both in one transaction.
func (s *GormStore) Reconcile(ctx context.Context, username string) (*Reconciliation, error) {
	var out *Reconciliation
	err := s.atomic(ctx, func(db *gorm.DB) error {
		st := &GormStore{DB: db, bound: true}
		cached, err := st.GetBalance(ctx, username)
		if err != nil {
			return err
		}
		log, err := st.GetLog(ctx, username)
		if err != nil {
			return err
		}
		derived := domain.Fold(log)
		out = &Reconciliation{
			Username:   username,
			Cached:     cached,
			Derived:    derived,
			Entries:    len(log),
			Consistent: cached.Equal(derived),
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("reconcile", err)
	}
	return out, nil
}

// Locked implements Store.
func (s *GormStore) Locked(ctx context.Context, username string, fn func(Store) error) error {
	if s.bound {
		if _, err := lockAccount(s.DB, username); err != nil {
			return storageErr("lock account", err)
		}
		return fn(s)
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockAccount(tx, username); err != nil {
			return storageErr("lock account", err)
		}
		return fn(&GormStore{DB: tx, bound: true})
	})
	return storageErr("commit", err)
}
