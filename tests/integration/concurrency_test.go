package integration

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"ticket-wallet-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hammer the version-checked balance write from many
// goroutines at once. The in-memory wallet repo enforces the same
// compare-and-swap the SQL adapter does, so a lost race shows up as a
// retried apply, never as a lost or doubled balance change.

func TestConcurrentTopupWebhooks_ExactTotal(t *testing.T) {
	app := newTestApp(t)
	_, token, _ := app.createWallet(t)

	const n = 20
	const amount = 10000

	// Create n pending top-up requests sequentially.
	orderCodes := make([]string, n)
	for i := 0; i < n; i++ {
		resp, raw := app.doJSON(t, http.MethodPost, "/api/v1/wallet/topup", token, map[string]int64{"amount": amount}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode, "topup %d: %s", i, raw)

		var topup struct {
			OrderCode string `json:"order_code"`
		}
		decodeData(t, raw, &topup)
		orderCodes[i] = topup.OrderCode
	}

	// Deliver all n confirmations at once.
	var applied atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(orderCode string, txn int) {
			defer wg.Done()
			resp, _ := app.deliverWebhook(t, domain.GatewayEvent{
				OrderCode:    orderCode,
				Success:      true,
				Amount:       amount,
				GatewayTxnID: fmt.Sprintf("txn-%d", txn),
			})
			if resp.StatusCode == http.StatusOK {
				applied.Add(1)
			}
		}(orderCodes[i], i)
	}
	wg.Wait()

	assert.Equal(t, int64(n), applied.Load(), "every confirmation should apply")

	resp, raw := app.doJSON(t, http.MethodGet, "/api/v1/wallet/balance", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var balance struct {
		Balance int64 `json:"balance"`
	}
	decodeData(t, raw, &balance)
	assert.Equal(t, int64(n*amount), balance.Balance, "no credit may be lost or doubled")
}

func TestConcurrentCharges_NoOverspend(t *testing.T) {
	app := newTestApp(t)
	_, token, _ := app.createWallet(t)
	app.topUp(t, token, 500000)

	const n = 10
	const amount = 100000 // only 5 of the 10 can fit

	var succeeded, insufficient atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, raw := app.doJSON(t, http.MethodPost, "/api/v1/payments", token, map[string]any{
				"booking_ref": fmt.Sprintf("BK-CONC-%03d", i),
				"amount":      amount,
			}, nil)
			switch resp.StatusCode {
			case http.StatusCreated:
				succeeded.Add(1)
			case http.StatusPaymentRequired:
				insufficient.Add(1)
			default:
				t.Errorf("unexpected status %d: %s", resp.StatusCode, raw)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(5), succeeded.Load(), "exactly the affordable charges succeed")
	assert.Equal(t, int64(5), insufficient.Load())

	resp, raw := app.doJSON(t, http.MethodGet, "/api/v1/wallet/balance", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var balance struct {
		Balance int64 `json:"balance"`
	}
	decodeData(t, raw, &balance)
	assert.Equal(t, int64(0), balance.Balance)
	assert.GreaterOrEqual(t, balance.Balance, int64(0), "balance must never go negative")
}

func TestConcurrentCharges_SameBookingRef(t *testing.T) {
	app := newTestApp(t)
	_, token, _ := app.createWallet(t)
	app.topUp(t, token, 200000)

	const n = 15
	body := map[string]any{
		"booking_ref": "BK-RACE-001",
		"amount":      50000,
	}

	var mu sync.Mutex
	entryIDs := make(map[string]struct{})
	var duplicates atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, raw := app.doJSON(t, http.MethodPost, "/api/v1/payments", token, body, nil)
			switch resp.StatusCode {
			case http.StatusCreated:
				var data struct {
					ID string `json:"id"`
				}
				decodeData(t, raw, &data)
				mu.Lock()
				entryIDs[data.ID] = struct{}{}
				mu.Unlock()
			case http.StatusConflict:
				assert.Equal(t, "WAL_005", decodeError(t, raw).ErrorCode)
				duplicates.Add(1)
			default:
				t.Errorf("unexpected status %d: %s", resp.StatusCode, raw)
			}
		}()
	}
	wg.Wait()

	// However the race interleaves, only one ledger entry may exist and
	// the wallet is debited exactly once.
	assert.Len(t, entryIDs, 1, "all successful responses must return the same entry")

	resp, raw := app.doJSON(t, http.MethodGet, "/api/v1/wallet/balance", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var balance struct {
		Balance int64 `json:"balance"`
	}
	decodeData(t, raw, &balance)
	assert.Equal(t, int64(150000), balance.Balance, "the booking may only be charged once")
}

func TestConcurrentWalletCreation_SingleWallet(t *testing.T) {
	app := newTestApp(t)

	token := app.authToken(t, uuid.New())

	const n = 10
	var mu sync.Mutex
	walletIDs := make(map[string]struct{})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, raw := app.doJSON(t, http.MethodPost, "/api/v1/wallet", token, nil, nil)
			if !assert.Equal(t, http.StatusCreated, resp.StatusCode, "create: %s", raw) {
				return
			}
			var data struct {
				WalletID string `json:"wallet_id"`
			}
			decodeData(t, raw, &data)
			mu.Lock()
			walletIDs[data.WalletID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, walletIDs, 1, "concurrent provisioning must converge on one wallet")
}

func TestConcurrentMixedTraffic_BalanceConsistent(t *testing.T) {
	app := newTestApp(t)
	_, token, _ := app.createWallet(t)
	app.topUp(t, token, 100000)

	const credits = 5
	const creditAmount = 20000
	const debits = 5
	const debitAmount = 30000

	orderCodes := make([]string, credits)
	for i := 0; i < credits; i++ {
		resp, raw := app.doJSON(t, http.MethodPost, "/api/v1/wallet/topup", token, map[string]int64{"amount": creditAmount}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var topup struct {
			OrderCode string `json:"order_code"`
		}
		decodeData(t, raw, &topup)
		orderCodes[i] = topup.OrderCode
	}

	var chargeOK atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < credits; i++ {
		wg.Add(1)
		go func(orderCode string) {
			defer wg.Done()
			resp, _ := app.deliverWebhook(t, domain.GatewayEvent{
				OrderCode: orderCode,
				Success:   true,
				Amount:    creditAmount,
			})
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		}(orderCodes[i])
	}
	for i := 0; i < debits; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, _ := app.doJSON(t, http.MethodPost, "/api/v1/payments", token, map[string]any{
				"booking_ref": fmt.Sprintf("BK-MIX-%03d", i),
				"amount":      debitAmount,
			}, nil)
			if resp.StatusCode == http.StatusCreated {
				chargeOK.Add(1)
			}
		}(i)
	}
	wg.Wait()

	// All credits land; charges may fail with insufficient balance
	// depending on the interleaving, but the books must balance exactly.
	resp, raw := app.doJSON(t, http.MethodGet, "/api/v1/wallet/balance", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var balance struct {
		Balance int64 `json:"balance"`
	}
	decodeData(t, raw, &balance)

	want := int64(100000) + int64(credits*creditAmount) - chargeOK.Load()*debitAmount
	assert.Equal(t, want, balance.Balance)
	assert.GreaterOrEqual(t, balance.Balance, int64(0), "balance must never go negative")

	// The ledger agrees with the wallet.
	resp, raw = app.doJSON(t, http.MethodGet, "/api/v1/wallet/summary", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary struct {
		TotalIn  int64 `json:"total_in"`
		TotalOut int64 `json:"total_out"`
	}
	decodeData(t, raw, &summary)
	assert.Equal(t, balance.Balance, summary.TotalIn-summary.TotalOut)
}
