package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DateLayout is the wire format of a transaction's effective date.
const DateLayout = "2006-01-02"

func init() {
	// Balances and amounts go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Action is the kind of a ledger entry; it decides the sign of the amount and
// which precondition applies before the entry is accepted.
type Action string

const (
	ActionBuy      Action = "buy"
	ActionSell     Action = "sell"
	ActionInvest   Action = "invest"
	ActionWithdraw Action = "withdraw"
)

// ParseAction normalizes s and reports whether it names a known action.
func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	return a, a.Valid()
}

func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionInvest, ActionWithdraw:
		return true
	}
	return false
}

// Credits reports whether the action adds cash (sell, invest).
func (a Action) Credits() bool {
	return a == ActionSell || a == ActionInvest
}

// Sign is +1 for sell/invest and -1 for buy/withdraw.
func (a Action) Sign() int {
	if a.Credits() {
		return 1
	}
	return -1
}

// Signed applies the action's sign to a magnitude.
func (a Action) Signed(amount decimal.Decimal) decimal.Decimal {
	if a.Credits() {
		return amount
	}
	return amount.Neg()
}

// NeedsInstrument reports whether the action must carry a stock label.
func (a Action) NeedsInstrument() bool {
	return a == ActionBuy || a == ActionSell
}

// Transaction is one immutable entry of a user's ledger.
type Transaction struct {
	ID        uuid.UUID      `gorm:"column:id;type:varchar(36);primaryKey"`
	Username  string         `gorm:"column:username;type:varchar(100);not null;uniqueIndex:idx_ledger_user_seq,priority:1"`
	Seq       int64          `gorm:"column:seq;not null;uniqueIndex:idx_ledger_user_seq,priority:2"`
	Date      datatypes.Date `gorm:"column:date;not null"`
	Stock     *string        `gorm:"column:stock;type:varchar(100)"`
	Action    Action         `gorm:"column:action;type:varchar(20);not null"`
	Amount    Money          `gorm:"column:amount;not null"`
	CreatedAt time.Time      `gorm:"column:created_at"`
}

func (Transaction) TableName() string {
	return "ledger_transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Day returns the effective date as a UTC midnight time.
func (t Transaction) Day() time.Time {
	y, m, d := time.Time(t.Date).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Instrument returns the stock label or "" for cash-only entries.
func (t Transaction) Instrument() string {
	if t.Stock == nil {
		return ""
	}
	return *t.Stock
}

type transactionJSON struct {
	ID        uuid.UUID       `json:"id"`
	Seq       int64           `json:"seq"`
	Date      string          `json:"date"`
	Stock     *string         `json:"stock"`
	Action    Action          `json:"action"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// MarshalJSON renders the date as YYYY-MM-DD, the shape the dashboard reads.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		ID:        t.ID,
		Seq:       t.Seq,
		Date:      t.Day().Format(DateLayout),
		Stock:     t.Stock,
		Action:    t.Action,
		Amount:    t.Amount.Decimal,
		CreatedAt: t.CreatedAt,
	})
}

// NewDate truncates t to its calendar day.
func NewDate(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// ParseDate accepts YYYY-MM-DD or a full RFC 3339 timestamp.
func ParseDate(s string) (datatypes.Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return NewDate(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return datatypes.Date{}, err
	}
	return NewDate(t), nil
}
