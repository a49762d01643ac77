package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrConcurrentUpdate means another submission for the same user committed
// between this one's read and its write. The whole unit may be retried.
var ErrConcurrentUpdate = errors.New("Ledger was updated concurrently, please retry")

// ValidationError is a malformed or incomplete transaction request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// InsufficientFundsError rejects a buy or withdraw larger than the balance.
type InsufficientFundsError struct {
	Have decimal.Decimal
	Want decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("Insufficient balance! You only have %s", e.Have.StringFixed(2))
}

// InsufficientHoldingsError rejects a sell larger than the position held.
type InsufficientHoldingsError struct {
	Instrument string
	Have       decimal.Decimal
	Want       decimal.Decimal
}

func (e *InsufficientHoldingsError) Error() string {
	if !e.Have.IsPositive() {
		return fmt.Sprintf("You don't own any %s stock!", strings.ToUpper(e.Instrument))
	}
	return fmt.Sprintf("Insufficient stock! You only have %s", e.Have.String())
}

// StorageError wraps an I/O or connection failure of the ledger store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "ledger storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// storageErr wraps err unless it already belongs to the ledger taxonomy.
func storageErr(op string, err error) error {
	if err == nil || isLedgerError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func isLedgerError(err error) bool {
	var (
		ve *ValidationError
		fe *InsufficientFundsError
		he *InsufficientHoldingsError
		se *StorageError
	)
	return errors.Is(err, ErrConcurrentUpdate) ||
		errors.As(err, &ve) || errors.As(err, &fe) || errors.As(err, &he) || errors.As(err, &se)
}
