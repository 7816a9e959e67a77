package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork covers connection and transport failures and unexpected
	// server responses.
	ErrNetwork = errors.New("ledger network error")
	// ErrOutcomeUnknown means the payment was submitted but finality could not
	// be observed in time. It must not be resubmitted blindly.
	ErrOutcomeUnknown = errors.New("transaction outcome unknown")
)

// SubmissionError is a definitive rejection of the payment.
type SubmissionError struct {
	Code    string
	Message string
	Hash    string
}

func (e *SubmissionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("transaction failed: %s: %s", e.Code, e.Message)
	}
	return "transaction failed: " + e.Code
}

// RPCError is an error status returned by the server for one command.
type RPCError struct {
	Command string
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Command, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Command, e.Code)
}

func rpcCode(err error) string {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code
	}
	return ""
}
