package ledger

import (
	"context"
	"errors"

	"paper-ledger/internal/domain"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const defaultMaxRetries = 3

// Snapshot is a user's full ledger plus the balance it folds to.
type Snapshot struct {
	Log     []domain.Transaction `json:"portfolio"`
	Balance decimal.Decimal      `json:"totalBalance"`
}

// Service validates proposed transactions against the current derived state
// and applies the ones that pass.
type Service struct {
	Store Store

	// MaxRetries bounds how often a submission that lost a race with another
	// submission for the same user is replayed. Zero means the default.
	MaxRetries int
}

func (s *Service) attempts() int {
	if s.MaxRetries > 0 {
		return s.MaxRetries
	}
	return defaultMaxRetries
}

// Submit validates req and, when it passes, appends it to the user's ledger.
// The solvency checks and the append share one locked store transaction, so
// concurrent submissions for the same user serialize. A rejected request
// leaves the store untouched.
func (s *Service) Submit(ctx context.Context, username string, req TxRequest) (*Snapshot, error) {
	proposed, err := req.Transaction()
	if err != nil {
		log.Debug().Str("username", username).Err(err).Msg("ledger: trade rejected by validation")
		return nil, err
	}

	var snap *Snapshot
	for attempt := 1; ; attempt++ {
		err = s.Store.Locked(ctx, username, func(st Store) error {
			entry := *proposed
			if err := checkSolvency(ctx, st, username, &entry); err != nil {
				return err
			}
			if err := st.AppendTransaction(ctx, username, &entry); err != nil {
				return err
			}
			var err error
			snap, err = snapshot(ctx, st, username)
			return err
		})
		if errors.Is(err, ErrConcurrentUpdate) && attempt < s.attempts() {
			log.Debug().Str("username", username).Int("attempt", attempt).Msg("ledger: concurrent update, retrying")
			continue
		}
		break
	}
	if err != nil {
		logRejection(username, proposed, err)
		return nil, err
	}

	log.Info().
		Str("username", username).
		Str("action", string(proposed.Action)).
		Str("amount", proposed.Amount.String()).
		Str("balance", snap.Balance.String()).
		Msg("ledger: trade applied")
	return snap, nil
}

// checkSolvency enforces the per-action preconditions against the state
// visible through st.
func checkSolvency(ctx context.Context, st Store, username string, tx *domain.Transaction) error {
	switch tx.Action {
	case domain.ActionSell:
		have, err := st.GetHoldingQuantity(ctx, username, tx.Instrument())
		if err != nil {
			return err
		}
		if !have.IsPositive() || tx.Amount.GreaterThan(have) {
			return &InsufficientHoldingsError{Instrument: tx.Instrument(), Have: have, Want: tx.Amount.Decimal}
		}
	case domain.ActionBuy, domain.ActionWithdraw:
		have, err := st.GetBalance(ctx, username)
		if err != nil {
			return err
		}
		if tx.Amount.GreaterThan(have) {
			return &InsufficientFundsError{Have: have, Want: tx.Amount.Decimal}
		}
	}
	return nil
}

// Snapshot returns the user's ledger and balance for the dashboard.
func (s *Service) Snapshot(ctx context.Context, username string) (*Snapshot, error) {
	return snapshot(ctx, s.Store, username)
}

func snapshot(ctx context.Context, st Store, username string) (*Snapshot, error) {
	entries, err := st.GetLog(ctx, username)
	if err != nil {
		return nil, err
	}
	balance, err := st.GetBalance(ctx, username)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Log: entries, Balance: balance}, nil
}

// BalanceHistory returns the running balance after every entry, oldest first.
func (s *Service) BalanceHistory(ctx context.Context, username string) ([]domain.BalancePoint, error) {
	entries, err := s.Store.GetLog(ctx, username)
	if err != nil {
		return nil, err
	}
	return domain.BalanceHistory(entries), nil
}

func logRejection(username string, tx *domain.Transaction, err error) {
	var se *StorageError
	if errors.As(err, &se) {
		log.Error().Err(se.Err).Str("username", username).Str("op", se.Op).Msg("ledger: storage failure")
		return
	}
	log.Info().
		Str("username", username).
		Str("action", string(tx.Action)).
		Str("amount", tx.Amount.String()).
		Err(err).
		Msg("ledger: trade rejected")
}
