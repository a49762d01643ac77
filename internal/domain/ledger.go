package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Fold derives a cash balance from a ledger: the sum of sign(action)*amount.
func Fold(log []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range log {
		total = total.Add(t.Action.Signed(t.Amount.Decimal))
	}
	return total
}

// InstrumentKey is the case-folded form stock labels are grouped and matched by.
func InstrumentKey(label string) string {
	return strings.ToLower(strings.ToUpper(strings.TrimSpace(label)))
}

// SameInstrument compares stock labels case-insensitively.
func SameInstrument(a, b string) bool {
	return InstrumentKey(a) == InstrumentKey(b)
}

// HoldingQuantity is bought minus sold for one instrument.
func HoldingQuantity(log []Transaction, instrument string) decimal.Decimal {
	qty := decimal.Zero
	for _, t := range log {
		if t.Stock == nil || !SameInstrument(*t.Stock, instrument) {
			continue
		}
		switch t.Action {
		case ActionBuy:
			qty = qty.Add(t.Amount.Decimal)
		case ActionSell:
			qty = qty.Sub(t.Amount.Decimal)
		}
	}
	return qty
}

// Holding is the net quantity of one instrument.
type Holding struct {
	Stock    string          `json:"stock"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Holdings groups the log by instrument and returns every non-zero position,
// sorted by label. The first label seen for an instrument is the one shown.
func Holdings(log []Transaction) []Holding {
	type position struct {
		label string
		qty   decimal.Decimal
	}
	chrono := chronological(log)
	byKey := map[string]*position{}
	for _, t := range chrono {
		if !t.Action.NeedsInstrument() || t.Stock == nil {
			continue
		}
		key := InstrumentKey(*t.Stock)
		p, ok := byKey[key]
		if !ok {
			p = &position{label: strings.TrimSpace(*t.Stock)}
			byKey[key] = p
		}
		if t.Action == ActionBuy {
			p.qty = p.qty.Add(t.Amount.Decimal)
		} else {
			p.qty = p.qty.Sub(t.Amount.Decimal)
		}
	}
	out := make([]Holding, 0, len(byKey))
	for _, p := range byKey {
		if p.qty.IsZero() {
			continue
		}
		out = append(out, Holding{Stock: p.label, Quantity: p.qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToUpper(out[i].Stock) < strings.ToUpper(out[j].Stock)
	})
	return out
}

// newerFirst orders by (date, created_at, seq), all descending.
func newerFirst(a, b Transaction) bool {
	da, db := a.Day(), b.Day()
	if !da.Equal(db) {
		return da.After(db)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.Seq > b.Seq
}

// SortLog orders a ledger most recent first, in place.
func SortLog(log []Transaction) {
	sort.SliceStable(log, func(i, j int) bool { return newerFirst(log[i], log[j]) })
}

// IsOrdered reports whether log is non-increasing in (date, created_at, seq).
func IsOrdered(log []Transaction) bool {
	for i := 1; i < len(log); i++ {
		if newerFirst(log[i], log[i-1]) {
			return false
		}
	}
	return true
}

func chronological(log []Transaction) []Transaction {
	out := make([]Transaction, len(log))
	copy(out, log)
	sort.SliceStable(out, func(i, j int) bool { return newerFirst(out[j], out[i]) })
	return out
}

// BalancePoint is the running balance right after one entry.
type BalancePoint struct {
	Date    string          `json:"date"`
	Action  Action          `json:"action"`
	Change  decimal.Decimal `json:"change"`
	Balance decimal.Decimal `json:"balance"`
}

// BalanceHistory replays the ledger oldest first and records the balance
// after every entry. The last point always equals Fold(log).
func BalanceHistory(log []Transaction) []BalancePoint {
	chrono := chronological(log)
	points := make([]BalancePoint, 0, len(chrono))
	running := decimal.Zero
	for _, t := range chrono {
		change := t.Action.Signed(t.Amount.Decimal)
		running = running.Add(change)
		points = append(points, BalancePoint{
			Date:    t.Day().Format(DateLayout),
			Action:  t.Action,
			Change:  change,
			Balance: running,
		})
	}
	return points
}
