package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/usexrp/agentwallet/internal/ledger"
	"github.com/usexrp/agentwallet/internal/model"
	"github.com/usexrp/agentwallet/internal/pkg/apperrors"
	"github.com/usexrp/agentwallet/internal/pkg/logger"
	"github.com/usexrp/agentwallet/internal/pkg/metrics"
	"github.com/usexrp/agentwallet/internal/signer"
)

const missingPaymentFields = "to and drops required"

// WalletService answers the gateway endpoints. Every call materializes the
// keypair afresh and opens its own ledger connection.
type WalletService struct {
	keys   KeySource
	dialer ledger.Dialer
	price  PriceSource
	risk   *RiskEngine

	payTimeout time.Duration
}

func NewWalletService(keys KeySource, dialer ledger.Dialer, price PriceSource, risk *RiskEngine) *WalletService {
	if risk == nil {
		risk = NewRiskEngine(nil, noLimits)
	}
	return &WalletService{keys: keys, dialer: dialer, price: price, risk: risk}
}

func (s *WalletService) Address(ctx context.Context) (string, error) {
	kp, err := s.keys.Keypair(ctx)
	if err != nil {
		return "", classify(err)
	}
	return kp.Address(), nil
}

func (s *WalletService) Balance(ctx context.Context) (*model.Balance, error) {
	kp, err := s.keys.Keypair(ctx)
	if err != nil {
		return nil, classify(err)
	}
	address := kp.Address()

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		return nil, classify(err)
	}
	defer closeConn(conn)

	state, err := conn.ReadAccount(ctx, address)
	if err != nil {
		return nil, classify(err)
	}
	if !state.Activated {
		return &model.Balance{Address: address}, nil
	}

	rate, err := s.price.USDPerXRP(ctx)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "price unavailable", err)
	}

	xrp := decimal.NewFromInt(int64(state.Balance)).Shift(-6)
	return &model.Balance{
		Address:   address,
		Drops:     state.Balance,
		XRP:       xrp.InexactFloat64(),
		USD:       xrp.Mul(rate).Round(6).InexactFloat64(),
		Activated: true,
	}, nil
}

// SetPayTimeout bounds every Pay call end to end. Zero leaves the caller's
// context as the only limit.
func (s *WalletService) SetPayTimeout(d time.Duration) {
	s.payTimeout = d
}

// Pay signs and submits one payment and returns once it is validated. A
// submitted payment is never retried here.
func (s *WalletService) Pay(ctx context.Context, payment model.Payment) (*model.PaymentResult, error) {
	start := time.Now()
	if s.payTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.payTimeout)
		defer cancel()
	}

	kp, err := s.keys.Keypair(ctx)
	if err != nil {
		return nil, classify(err)
	}
	account := kp.Address()

	reservation, err := s.risk.Reserve(ctx, account, payment.Drops)
	if err != nil {
		metrics.PaymentsTotal.WithLabelValues("rejected").Inc()
		return nil, classify(err)
	}

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		reservation.Release(ctx)
		metrics.PaymentsTotal.WithLabelValues("failed").Inc()
		return nil, classify(err)
	}
	defer closeConn(conn)

	sub, err := submitWithin(ctx, conn, kp, payment)
	if err != nil {
		if errors.Is(err, ledger.ErrOutcomeUnknown) {
			// The payment may still validate, so it keeps its share of the budget.
			logger.Warn("payment outcome unknown, daily usage kept",
				"destination", payment.Destination, "drops", payment.Drops)
		} else {
			reservation.Release(ctx)
		}
		metrics.PaymentsTotal.WithLabelValues(paymentStatus(err)).Inc()
		logger.LogError(ctx, err, "payment failed",
			"destination", payment.Destination, "drops", payment.Drops)
		return nil, classify(err)
	}

	metrics.PaymentsTotal.WithLabelValues("success").Inc()
	logger.Info("payment validated",
		"tx_hash", sub.Hash,
		"destination", payment.Destination,
		"drops", payment.Drops,
		"ledger_index", sub.LedgerIndex,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return &model.PaymentResult{TxHash: sub.Hash, Drops: payment.Drops}, nil
}

// submitWithin returns by the time ctx ends even if the connection does not
// honor it. The caller's deferred Close then tears the connection down.
func submitWithin(ctx context.Context, conn ledger.Conn, kp *signer.Keypair, payment model.Payment) (*ledger.Submission, error) {
	type result struct {
		sub *ledger.Submission
		err error
	}
	done := make(chan result, 1)
	go func() {
		sub, err := conn.SubmitPayment(ctx, kp, payment.Destination, payment.Drops)
		done <- result{sub: sub, err: err}
	}()

	select {
	case r := <-done:
		return r.sub, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ledger.ErrOutcomeUnknown, ctx.Err())
	}
}

// ParsePayment validates a request body before any network call.
func ParsePayment(req model.PaymentRequest) (model.Payment, error) {
	to := strings.TrimSpace(req.To)
	raw := strings.TrimSpace(req.Drops.String())
	if to == "" || raw == "" || raw == "0" {
		return model.Payment{}, apperrors.NewInvalidRequest(missingPaymentFields)
	}

	drops, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return model.Payment{}, apperrors.NewInvalidRequest("drops must be a positive integer")
	}
	if drops == 0 {
		return model.Payment{}, apperrors.NewInvalidRequest(missingPaymentFields)
	}
	if drops > ledger.MaxDrops {
		return model.Payment{}, apperrors.NewInvalidRequest("drops exceeds the maximum XRP amount")
	}
	if !signer.IsValidAddress(to) {
		return model.Payment{}, apperrors.NewInvalidRequest("invalid destination address")
	}
	return model.Payment{Destination: to, Drops: drops}, nil
}

func closeConn(conn ledger.Conn) {
	if err := conn.Close(); err != nil {
		logger.Debug("ledger connection close", "error", err)
	}
}
