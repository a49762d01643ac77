package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"paper-ledger/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func setupService(t *testing.T) (*Service, *GormStore) {
	st := NewGormStore(setupLedgerDB(t))
	return &Service{Store: st}, st
}

func submit(t *testing.T, svc *Service, user, action, stock, amount string) (*Snapshot, error) {
	req := TxRequest{Date: "2024-06-01", Action: action, Amount: dec(amount)}
	if stock != "" {
		req.Stock = strPtr(stock)
	}
	return svc.Submit(context.Background(), user, req)
}

func TestSubmit_InvestOnFreshUser(t *testing.T) {
	svc, _ := setupService(t)

	snap, err := submit(t, svc, "alice", "invest", "", "100")
	require.NoError(t, err)
	assert.Equal(t, "100", snap.Balance.String())
	assert.Len(t, snap.Log, 1)
}

func TestSubmit_WithdrawMoreThanBalance(t *testing.T) {
	svc, st := setupService(t)
	_, err := submit(t, svc, "bob", "invest", "", "100")
	require.NoError(t, err)

	_, err = submit(t, svc, "bob", "withdraw", "", "150")
	var fe *InsufficientFundsError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "100", fe.Have.String())
	assert.Equal(t, "150", fe.Want.String())

	bal, err := st.GetBalance(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "100", bal.String())
	log, err := st.GetLog(context.Background(), "bob")
	require.NoError(t, err)
	assert.Len(t, log, 1, "rejected withdraw must not be appended")
}

func TestSubmit_BuyThenSell(t *testing.T) {
	svc, st := setupService(t)
	_, err := submit(t, svc, "carol", "invest", "", "100")
	require.NoError(t, err)

	snap, err := submit(t, svc, "carol", "buy", "AAPL", "50")
	require.NoError(t, err)
	assert.Equal(t, "50", snap.Balance.String())

	snap, err = submit(t, svc, "carol", "sell", "AAPL", "30")
	require.NoError(t, err)
	assert.Equal(t, "80", snap.Balance.String())
	assert.Len(t, snap.Log, 3)

	qty, err := st.GetHoldingQuantity(context.Background(), "carol", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "20", qty.String())
}

func TestSubmit_SellWithoutHoldings(t *testing.T) {
	svc, _ := setupService(t)

	_, err := submit(t, svc, "dan", "sell", "TSLA", "10")
	var he *InsufficientHoldingsError
	require.ErrorAs(t, err, &he)
	assert.True(t, he.Have.IsZero())
	assert.Equal(t, "10", he.Want.String())
	assert.Equal(t, "You don't own any TSLA stock!", he.Error())
}

func TestSubmit_SellMatchesCaseInsensitively(t *testing.T) {
	svc, st := setupService(t)
	_, err := submit(t, svc, "erin", "invest", "", "100")
	require.NoError(t, err)
	_, err = submit(t, svc, "erin", "buy", "AAPL", "20")
	require.NoError(t, err)

	_, err = submit(t, svc, "erin", "sell", "aapl", "5")
	require.NoError(t, err)

	qty, err := st.GetHoldingQuantity(context.Background(), "erin", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "15", qty.String())

	_, err = submit(t, svc, "erin", "sell", "Aapl", "16")
	var he *InsufficientHoldingsError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "15", he.Have.String())
	assert.Equal(t, "Insufficient stock! You only have 15", he.Error())
}

func TestSubmit_BuyNeedsFunds(t *testing.T) {
	svc, _ := setupService(t)

	_, err := submit(t, svc, "frank", "buy", "AAPL", "1")
	var fe *InsufficientFundsError
	require.ErrorAs(t, err, &fe)
	assert.True(t, fe.Have.IsZero())
}

func TestSubmit_ValidationErrors(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		req   TxRequest
		field string
	}{
		{"zero amount", TxRequest{Date: "2024-01-01", Action: "invest", Amount: dec("0")}, "amount"},
		{"negative amount", TxRequest{Date: "2024-01-01", Action: "invest", Amount: dec("-5")}, "amount"},
		{"unknown action", TxRequest{Date: "2024-01-01", Action: "dividend", Amount: dec("5")}, "action"},
		{"missing date", TxRequest{Action: "invest", Amount: dec("5")}, "request"},
		{"bad date", TxRequest{Date: "01/02/2024", Action: "invest", Amount: dec("5")}, "date"},
		{"buy without stock", TxRequest{Date: "2024-01-01", Action: "buy", Amount: dec("5")}, "stock"},
		{"sell with blank stock", TxRequest{Date: "2024-01-01", Action: "sell", Stock: strPtr("  "), Amount: dec("5")}, "stock"},
		{"amount too large", TxRequest{Date: "2024-01-01", Action: "invest", Amount: dec("10000000000000000.01")}, "amount"},
		{"amount at column limit", TxRequest{Date: "2024-01-01", Action: "invest", Amount: dec("1000000000000")}, "amount"},
		{"too many decimals", TxRequest{Date: "2024-01-01", Action: "invest", Amount: dec("0.000000000001")}, "amount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, "grace", tc.req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}

	log, err := st.GetLog(ctx, "grace")
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestSubmit_AcceptsAmountsAtColumnPrecision(t *testing.T) {
	svc, _ := setupService(t)

	snap, err := submit(t, svc, "ivy", "invest", "", "999999999999.5")
	require.NoError(t, err)
	assert.Equal(t, "999999999999.5", snap.Balance.String())

	snap, err = submit(t, svc, "ivy", "withdraw", "", "0.00000001")
	require.NoError(t, err)
	assert.Equal(t, "999999999999.49999999", snap.Balance.String())
}

func TestSubmit_SellMatchesNonASCIILabel(t *testing.T) {
	svc, _ := setupService(t)
	_, err := submit(t, svc, "jude", "invest", "", "100")
	require.NoError(t, err)
	_, err = submit(t, svc, "jude", "buy", "äpfel", "10")
	require.NoError(t, err)

	snap, err := submit(t, svc, "jude", "sell", "ÄPFEL", "5")
	require.NoError(t, err)
	assert.Equal(t, "95", snap.Balance.String())
}

func TestSubmit_DropsStockForCashActions(t *testing.T) {
	svc, _ := setupService(t)
	snap, err := submit(t, svc, "heidi", "invest", "AAPL", "10")
	require.NoError(t, err)
	require.Len(t, snap.Log, 1)
	assert.Nil(t, snap.Log[0].Stock)
}

func TestSubmit_BalanceReconcilesAfterEverySubmission(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	steps := []struct{ action, stock, amount string }{
		{"invest", "", "250.25"},
		{"buy", "AAPL", "100.10"},
		{"buy", "msft", "50"},
		{"sell", "MSFT", "20"},
		{"withdraw", "", "0.15"},
		{"sell", "aapl", "100.10"},
		{"withdraw", "", "1000"},
		{"sell", "MSFT", "31"},
	}
	for _, s := range steps {
		_, _ = submit(t, svc, "ivan", s.action, s.stock, s.amount)

		rec, err := st.Reconcile(ctx, "ivan")
		require.NoError(t, err)
		assert.True(t, rec.Consistent, "after %s %s: cached %s derived %s", s.action, s.amount, rec.Cached, rec.Derived)
		assert.False(t, rec.Cached.IsNegative())
	}
}

func TestSubmit_ConcurrentWithdrawalsSerialize(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()
	_, err := submit(t, svc, "judy", "invest", "", "100")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := submit(t, svc, "judy", "withdraw", "", "20")
			if err == nil {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, applied)
	bal, err := st.GetBalance(ctx, "judy")
	require.NoError(t, err)
	assert.True(t, bal.IsZero(), "balance %s", bal)
}

// flakyStore makes the first appends lose a race.
type flakyStore struct {
	Store
	fails *int
}

func (f *flakyStore) AppendTransaction(ctx context.Context, username string, tx *domain.Transaction) error {
	if *f.fails > 0 {
		*f.fails--
		return ErrConcurrentUpdate
	}
	return f.Store.AppendTransaction(ctx, username, tx)
}

func (f *flakyStore) Locked(ctx context.Context, username string, fn func(Store) error) error {
	return f.Store.Locked(ctx, username, func(st Store) error {
		return fn(&flakyStore{Store: st, fails: f.fails})
	})
}

func TestSubmit_RetriesConcurrentUpdate(t *testing.T) {
	_, st := setupService(t)
	fails := 2
	svc := &Service{Store: &flakyStore{Store: st, fails: &fails}, MaxRetries: 3}

	snap, err := submit(t, svc, "ken", "invest", "", "5")
	require.NoError(t, err)
	assert.Equal(t, "5", snap.Balance.String())
	assert.Len(t, snap.Log, 1)
}

func TestSubmit_GivesUpAfterMaxRetries(t *testing.T) {
	_, st := setupService(t)
	fails := 5
	svc := &Service{Store: &flakyStore{Store: st, fails: &fails}, MaxRetries: 2}

	_, err := submit(t, svc, "leo", "invest", "", "5")
	assert.True(t, errors.Is(err, ErrConcurrentUpdate))

	log, err := st.GetLog(context.Background(), "leo")
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestSnapshotAndBalanceHistory(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	_, err := svc.Submit(ctx, "mia", TxRequest{Date: "2024-01-01", Action: "invest", Amount: dec("100")})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "mia", TxRequest{Date: "2024-01-05", Action: "buy", Stock: strPtr("AAPL"), Amount: dec("40")})
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx, "mia")
	require.NoError(t, err)
	assert.Equal(t, "60", snap.Balance.String())
	require.Len(t, snap.Log, 2)
	assert.Equal(t, domain.ActionBuy, snap.Log[0].Action)

	points, err := svc.BalanceHistory(ctx, "mia")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "100", points[0].Balance.String())
	assert.Equal(t, "60", points[1].Balance.String())
}
