package ledger

import (
	"strings"

	"paper-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	maxInstrumentLen = 100
	// amountScale is the number of decimal places an amount may carry.
	amountScale = 8
)

// maxAmount is the exclusive upper bound of a single transaction amount.
var maxAmount = decimal.New(1, 12)

// TxRequest is a proposed transaction as received from the HTTP layer.
type TxRequest struct {
	Date   string          `json:"date"`
	Stock  *string         `json:"stock"`
	Amount decimal.Decimal `json:"amount"`
	Action string          `json:"action"`
}

// Transaction validates r and builds the ledger entry it describes. The
// stock label is kept only for buy and sell.
func (r TxRequest) Transaction() (*domain.Transaction, error) {
	if strings.TrimSpace(r.Date) == "" || strings.TrimSpace(r.Action) == "" {
		return nil, &ValidationError{Field: "request", Reason: "Missing required fields"}
	}
	if !r.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "Invalid amount"}
	}
	if !r.Amount.Equal(r.Amount.Truncate(amountScale)) {
		return nil, &ValidationError{Field: "amount", Reason: "Amount has more than 8 decimal places"}
	}
	if r.Amount.GreaterThanOrEqual(maxAmount) {
		return nil, &ValidationError{Field: "amount", Reason: "Amount is too large"}
	}
	action, ok := domain.ParseAction(r.Action)
	if !ok {
		return nil, &ValidationError{Field: "action", Reason: "Invalid action"}
	}
	date, err := domain.ParseDate(r.Date)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: "Invalid date"}
	}

	tx := &domain.Transaction{
		Date:   date,
		Action: action,
		Amount: domain.NewMoney(r.Amount),
	}
	if action.NeedsInstrument() {
		stock := ""
		if r.Stock != nil {
			stock = strings.TrimSpace(*r.Stock)
		}
		if stock == "" {
			return nil, &ValidationError{Field: "stock", Reason: "Stock is required for buy and sell"}
		}
		if len(stock) > maxInstrumentLen {
			return nil, &ValidationError{Field: "stock", Reason: "Stock label is too long"}
		}
		tx.Stock = &stock
	}
	return tx, nil
}
