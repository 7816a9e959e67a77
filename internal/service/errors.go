package service

import (
	"context"
	"errors"

	"github.com/usexrp/agentwallet/internal/ledger"
	"github.com/usexrp/agentwallet/internal/pkg/apperrors"
	"github.com/usexrp/agentwallet/internal/secrets"
	"github.com/usexrp/agentwallet/internal/signer"
)

// classify maps lower-layer errors onto the HTTP error taxonomy.
func classify(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	var subErr *ledger.SubmissionError

	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, ErrWalletNotConfigured):
		return apperrors.New(apperrors.ErrWalletNotConfigured, "Agent wallet not configured", err)
	case errors.Is(err, secrets.ErrUnavailable):
		return apperrors.New(apperrors.ErrStoreUnavailable, "secret store unavailable", err)
	case errors.Is(err, ErrRiskReject):
		return apperrors.New(apperrors.ErrRiskReject, err.Error(), err)
	case errors.Is(err, signer.ErrInvalidAddress):
		return apperrors.New(apperrors.ErrInvalidRequest, "invalid destination address", err)
	case errors.Is(err, ledger.ErrInvalidAmount):
		return apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err)
	case errors.As(err, &subErr):
		return apperrors.New(apperrors.ErrSubmission, subErr.Error(), err)
	case errors.Is(err, ledger.ErrOutcomeUnknown):
		// Checked before ErrNetwork: unknown outcomes usually wrap a transport error.
		return apperrors.New(apperrors.ErrSubmission, err.Error(), err)
	case errors.Is(err, ledger.ErrNetwork),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return apperrors.New(apperrors.ErrNetwork, err.Error(), err)
	case errors.Is(err, signer.ErrInvalidSeed):
		return apperrors.New(apperrors.ErrWalletNotConfigured, "stored wallet seed is invalid", err)
	default:
		return apperrors.Wrap(err)
	}
}

func paymentStatus(err error) string {
	switch {
	case errors.Is(err, ledger.ErrOutcomeUnknown):
		return "unknown"
	case errors.Is(err, ledger.ErrNetwork):
		return "network_error"
	default:
		return "failed"
	}
}
