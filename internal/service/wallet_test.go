package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usexrp/agentwallet/internal/config"
	"github.com/usexrp/agentwallet/internal/ledger"
	"github.com/usexrp/agentwallet/internal/ledger/ledgertest"
	"github.com/usexrp/agentwallet/internal/model"
	"github.com/usexrp/agentwallet/internal/pkg/apperrors"
	"github.com/usexrp/agentwallet/internal/secrets"
)

const (
	testSeed        = "snoPBrXtMeMyMHUVTgbuqAfg1SUTb"
	testAddress     = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	testDestination = "rrrrrrrrrrrrrrrrrrrrBZbvji"
)

func newTestStore(t *testing.T, seed string) secrets.Store {
	t.Helper()
	store := secrets.NewFileStore(filepath.Join(t.TempDir(), "secrets.json"), secrets.NoProtector{})
	if seed != "" {
		require.NoError(t, store.Set(context.Background(), secrets.KeySeed, seed))
	}
	return store
}

func newTestWallet(t *testing.T, seed string, dialer *ledgertest.Dialer, limits config.RiskConfig) (*WalletService, *RiskUsageStore) {
	t.Helper()
	usage := NewRiskUsageStore()
	svc := NewWalletService(
		NewStoreKeySource(newTestStore(t, seed)),
		dialer,
		NewStaticPrice(1.40),
		NewRiskEngine(usage, limits),
	)
	return svc, usage
}

func requireAppError(t *testing.T, err error, want apperrors.ErrorType) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, want, appErr.Type)
	return appErr
}

func assertClosedOnce(t *testing.T, dialer *ledgertest.Dialer) {
	t.Helper()
	conns := dialer.Conns()
	require.Len(t, conns, dialer.Dials())
	for _, c := range conns {
		assert.Equal(t, 1, c.Closes())
	}
}

func TestWalletAddress(t *testing.T) {
	dialer := &ledgertest.Dialer{}
	svc, _ := newTestWallet(t, testSeed, dialer, config.RiskConfig{})

	addr, err := svc.Address(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testAddress, addr)
	assert.Zero(t, dialer.Dials())
}

func TestWalletNotConfigured(t *testing.T) {
	dialer := &ledgertest.Dialer{}
	svc, _ := newTestWallet(t, "", dialer, config.RiskConfig{})
	ctx := context.Background()

	_, err := svc.Address(ctx)
	appErr := requireAppError(t, err, apperrors.ErrWalletNotConfigured)
	assert.Equal(t, 500, appErr.HTTPStatus)
	assert.Equal(t, "Agent wallet not configured", appErr.Message)

	_, err = svc.Balance(ctx)
	requireAppError(t, err, apperrors.ErrWalletNotConfigured)

	_, err = svc.Pay(ctx, model.Payment{Destination: testDestination, Drops: 1})
	requireAppError(t, err, apperrors.ErrWalletNotConfigured)

	assert.Zero(t, dialer.Dials())
}

func TestWalletInvalidStoredSeed(t *testing.T) {
	svc, _ := newTestWallet(t, "not-a-seed", &ledgertest.Dialer{}, config.RiskConfig{})
	_, err := svc.Address(context.Background())
	requireAppError(t, err, apperrors.ErrWalletNotConfigured)
}

func TestWalletBalanceFunded(t *testing.T) {
	dialer := &ledgertest.Dialer{Account: &ledger.AccountState{Balance: 25_000_000, Activated: true, Sequence: 3}}
	svc, _ := newTestWallet(t, testSeed, dialer, config.RiskConfig{})

	bal, err := svc.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &model.Balance{
		Address:   testAddress,
		Drops:     25_000_000,
		XRP:       25,
		USD:       35,
		Activated: true,
	}, bal)

	assert.Equal(t, []string{testAddress}, dialer.Conns()[0].Reads())
	assertClosedOnce(t, dialer)
}

func TestWalletBalanceFractional(t *testing.T) {
	dialer := &ledgertest.Dialer{Account: &ledger.AccountState{Balance: 1_234_567, Activated: true}}
	svc, _ := newTestWallet(t, testSeed, dialer, config.RiskConfig{})

	bal, err := svc.Balance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1.234567, bal.XRP, 1e-12)
	assert.InDelta(t, 1.728394, bal.USD, 1e-9)
}

func TestWalletBalanceUnfunded(t *testing.T) {
	dialer := &ledgertest.Dialer{Account: &ledger.AccountState{Activated: false}}
	svc, _ := newTestWallet(t, testSeed, dialer, config.RiskConfig{})

	bal, err := svc.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &model.Balance{Address: testAddress}, bal)

	raw, err := json.Marshal(bal)
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":"`+testAddress+`","drops":0,"xrp":0,"usd":0,"activated":false}`, string(raw))
	assertClosedOnce(t, dialer)
}

func TestWalletBalanceNetworkFaults(t *testing.T) {
	t.Run("dial", func(t *testing.T) {
		dialer := &ledgertest.Dialer{DialErr: ledger.ErrNetwork}
		svc, _ := newTestWallet(t, testSeed, dialer, config.RiskConfig{})
		_, err := svc.Balance(context.Background())
		requireAppError(t, err, apperrors.ErrNetwork)
	})

	t.Run("read", func(t *testing.T) {
		dialer := &ledgertest.Dialer{AccountErr: ledger.ErrNetwork}
		svc, _ := newTestWallet(t, testSeed, dialer, config.RiskConfig{})
		_, err := svc.Balance(context.Background())
		appErr := requireAppError(t, err, apperrors.ErrNetwork)
		assert.Equal(t, 500, appErr.HTTPStatus)
		assertClosedOnce(t, dialer)
	})
}

func TestWalletPaySuccess(t *testing.T) {
	dialer := &ledgertest.Dialer{Submission: &ledger.Submission{Hash: "ABC123", Result: "tesSUCCESS", LedgerIndex: 9}}
	svc, usage := newTestWallet(t, testSeed, dialer, config.RiskConfig{})
	ctx := context.Background()

	res, err := svc.Pay(ctx, model.Payment{Destination: testDestination, Drops: 1_000_000})
	require.NoError(t, err)
	assert.Equal(t, &model.PaymentResult{TxHash: "ABC123", Drops: 1_000_000}, res)

	assert.Equal(t, 1, dialer.TotalSubmits())
	assert.Equal(t, []ledgertest.Payment{{Account: testAddress, Destination: testDestination, Drops: 1_000_000}},
		dialer.Conns()[0].Payments())
	assertClosedOnce(t, dialer)

	payments, drops, err := usage.GetDailyUsage(ctx, testAddress)
	require.NoError(t, err)
	assert.Equal(t, 1, payments)
	assert.Equal(t, uint64(1_000_000), drops)
}

func TestWalletPaySubmissionFailure(t *testing.T) {
	dialer := &ledgertest.Dialer{SubmitErr: &ledger.SubmissionError{Code: "tecUNFUNDED_PAYMENT"}}
	svc, usage := newTestWallet(t, testSeed, dialer, config.RiskConfig{})

	_, err := svc.Pay(context.Background(), model.Payment{Destination: testDestination, Drops: 5})
	appErr := requireAppError(t, err, apperrors.ErrSubmission)
	assert.Contains(t, appErr.Message, "tecUNFUNDED_PAYMENT")
	assertClosedOnce(t, dialer)

	_, drops, _ := usage.GetDailyUsage(context.Background(), testAddress)
	assert.Zero(t, drops)
}

func TestWalletPayTimeoutSubmitsOnce(t *testing.T) {
	dialer := &ledgertest.Dialer{BlockSubmit: true}
	svc, _ := newTestWallet(t, testSeed, dialer, config.RiskConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := svc.Pay(ctx, model.Payment{Destination: testDestination, Drops: 5})
	requireAppError(t, err, apperrors.ErrSubmission)
	assert.Equal(t, 1, dialer.Dials())
	assert.Equal(t, 1, dialer.TotalSubmits())
	assertClosedOnce(t, dialer)
}

func TestWalletPayRiskRejectSkipsNetwork(t *testing.T) {
	dialer := &ledgertest.Dialer{}
	svc, _ := newTestWallet(t, testSeed, dialer, config.RiskConfig{MaxPaymentDrops: 100})

	_, err := svc.Pay(context.Background(), model.Payment{Destination: testDestination, Drops: 101})
	appErr := requireAppError(t, err, apperrors.ErrRiskReject)
	assert.Equal(t, 400, appErr.HTTPStatus)
	assert.Zero(t, dialer.Dials())
}

func TestWalletConcurrentPaysRespectDailyLimits(t *testing.T) {
	dialer := &ledgertest.Dialer{SubmitDelay: 100 * time.Millisecond}
	svc, usage := newTestWallet(t, testSeed, dialer, config.RiskConfig{MaxDailyPayments: 1, MaxDailyDrops: 1_000_000})
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejects   int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Pay(ctx, model.Payment{Destination: testDestination, Drops: 1_000_000})
			mu.Lock()
			defer mu.Unlock()
			var appErr *apperrors.AppError
			switch {
			case err == nil:
				successes++
			case errors.As(err, &appErr) && appErr.Type == apperrors.ErrRiskReject:
				rejects++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 4, rejects)
	assert.Equal(t, 1, dialer.TotalSubmits())
	payments, drops, _ := usage.GetDailyUsage(ctx, testAddress)
	assert.Equal(t, 1, payments)
	assert.Equal(t, uint64(1_000_000), drops)
}

func TestWalletPayOutcomeUnknownKeepsBudget(t *testing.T) {
	dialer := &ledgertest.Dialer{SubmitErr: fmt.Errorf("%w: socket closed", ledger.ErrOutcomeUnknown)}
	svc, usage := newTestWallet(t, testSeed, dialer, config.RiskConfig{MaxDailyDrops: 1_000_000})
	ctx := context.Background()

	_, err := svc.Pay(ctx, model.Payment{Destination: testDestination, Drops: 700_000})
	requireAppError(t, err, apperrors.ErrSubmission)

	_, drops, _ := usage.GetDailyUsage(ctx, testAddress)
	assert.Equal(t, uint64(700_000), drops)

	// The unknown payment may have moved funds, so a second one no longer fits.
	_, err = svc.Pay(ctx, model.Payment{Destination: testDestination, Drops: 700_000})
	requireAppError(t, err, apperrors.ErrRiskReject)
	assert.Equal(t, 1, dialer.TotalSubmits())
}

func TestWalletPayDefiniteFailuresReleaseBudget(t *testing.T) {
	testCases := []struct {
		name   string
		dialer *ledgertest.Dialer
	}{
		{name: "dial error", dialer: &ledgertest.Dialer{DialErr: ledger.ErrNetwork}},
		{name: "before submit", dialer: &ledgertest.Dialer{SubmitErr: fmt.Errorf("%w: fee", ledger.ErrNetwork)}},
		{name: "rejected", dialer: &ledgertest.Dialer{SubmitErr: &ledger.SubmissionError{Code: "temBAD_FEE"}}},
		{name: "expired", dialer: &ledgertest.Dialer{SubmitErr: &ledger.SubmissionError{Code: "tefMAX_LEDGER"}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, usage := newTestWallet(t, testSeed, tc.dialer, config.RiskConfig{MaxDailyPayments: 1})
			ctx := context.Background()

			_, err := svc.Pay(ctx, model.Payment{Destination: testDestination, Drops: 10})
			require.Error(t, err)

			payments, drops, _ := usage.GetDailyUsage(ctx, testAddress)
			assert.Zero(t, payments)
			assert.Zero(t, drops)
		})
	}
}

func TestWalletPayTimeoutBoundsStalledNode(t *testing.T) {
	dialer := &ledgertest.Dialer{SubmitDelay: 2 * time.Second}
	svc, _ := newTestWallet(t, testSeed, dialer, config.RiskConfig{})
	svc.SetPayTimeout(50 * time.Millisecond)

	start := time.Now()
	_, err := svc.Pay(context.Background(), model.Payment{Destination: testDestination, Drops: 5})
	appErr := requireAppError(t, err, apperrors.ErrSubmission)
	assert.Contains(t, appErr.Message, "outcome unknown")
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, dialer.TotalSubmits())
	assertClosedOnce(t, dialer)
}

func TestParsePayment(t *testing.T) {
	testCases := []struct {
		name    string
		req     model.PaymentRequest
		want    model.Payment
		wantErr string
	}{
		{name: "empty", req: model.PaymentRequest{}, wantErr: "to and drops required"},
		{name: "missing to", req: model.PaymentRequest{Drops: "10"}, wantErr: "to and drops required"},
		{name: "missing drops", req: model.PaymentRequest{To: testDestination}, wantErr: "to and drops required"},
		{name: "zero drops", req: model.PaymentRequest{To: testDestination, Drops: "0"}, wantErr: "to and drops required"},
		{name: "negative", req: model.PaymentRequest{To: testDestination, Drops: "-5"}, wantErr: "positive integer"},
		{name: "fractional", req: model.PaymentRequest{To: testDestination, Drops: "1.5"}, wantErr: "positive integer"},
		{name: "too large", req: model.PaymentRequest{To: testDestination, Drops: "100000000000000001"}, wantErr: "maximum"},
		{name: "bad destination", req: model.PaymentRequest{To: "rNotAnAddress", Drops: "10"}, wantErr: "invalid destination"},
		{name: "valid", req: model.PaymentRequest{To: testDestination, Drops: "1000000"},
			want: model.Payment{Destination: testDestination, Drops: 1_000_000}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePayment(tc.req)
			if tc.wantErr != "" {
				appErr := requireAppError(t, err, apperrors.ErrInvalidRequest)
				assert.Contains(t, appErr.Message, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want apperrors.ErrorType
	}{
		{name: "store", err: secrets.ErrUnavailable, want: apperrors.ErrStoreUnavailable},
		{name: "network", err: ledger.ErrNetwork, want: apperrors.ErrNetwork},
		{name: "outcome unknown wrapping network", err: errors.Join(ledger.ErrOutcomeUnknown, ledger.ErrNetwork), want: apperrors.ErrSubmission},
		{name: "deadline", err: context.DeadlineExceeded, want: apperrors.ErrNetwork},
		{name: "other", err: errors.New("boom"), want: apperrors.ErrInternal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classify(tc.err).Type)
		})
	}
}
