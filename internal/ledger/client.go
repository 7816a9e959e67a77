package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/usexrp/agentwallet/internal/pkg/logger"
	"github.com/usexrp/agentwallet/internal/pkg/metrics"
	"github.com/usexrp/agentwallet/internal/signer"
)

const (
	minFeeDrops = 10

	codeAccountNotFound = "actNotFound"
	codeTxnNotFound     = "txnNotFound"
	codeMaxLedger       = "tefMAX_LEDGER"
	resultSuccess       = "tesSUCCESS"
)

// AccountState is the account as seen in the current ledger.
type AccountState struct {
	Balance   uint64
	Activated bool
	Sequence  uint32
}

// Submission is a payment that reached a validated ledger with tesSUCCESS.
type Submission struct {
	Hash        string
	Result      string
	LedgerIndex uint32
}

// Dialer opens one ledger connection. Callers own the returned Conn and must
// Close it.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

type Conn interface {
	ReadAccount(ctx context.Context, address string) (*AccountState, error)
	SubmitPayment(ctx context.Context, kp *signer.Keypair, destination string, drops uint64) (*Submission, error)
	Close() error
}

// WSDialer connects to a rippled WebSocket endpoint.
type WSDialer struct {
	URL             string
	DialTimeout     time.Duration
	RequestTimeout  time.Duration
	FinalityTimeout time.Duration
	PollInterval    time.Duration
	LedgerOffset    uint32
	MaxFeeDrops     uint64
}

var _ Dialer = (*WSDialer)(nil)

func (d *WSDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.DialTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, d.URL, nil)
	if err != nil {
		metrics.LedgerCalls.WithLabelValues("connect", "error").Inc()
		return nil, fmt.Errorf("%w: connect %s: %v", ErrNetwork, d.URL, err)
	}
	metrics.LedgerCalls.WithLabelValues("connect", "ok").Inc()
	return newClient(ws, d), nil
}

// Client is a single WebSocket connection. Requests are serialized and
// correlated with their responses by id.
type Client struct {
	ws  *websocket.Conn
	cfg WSDialer

	mu     sync.Mutex
	nextID uint64

	closeOnce sync.Once
	closeErr  error
}

var _ Conn = (*Client)(nil)

func newClient(ws *websocket.Conn, d *WSDialer) *Client {
	cfg := *d
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.FinalityTimeout <= 0 {
		cfg.FinalityTimeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.LedgerOffset == 0 {
		cfg.LedgerOffset = 20
	}
	return &Client{ws: ws, cfg: cfg}
}

// Close is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

type response struct {
	ID           uint64          `json:"id"`
	Status       string          `json:"status"`
	Type         string          `json:"type"`
	Result       json.RawMessage `json:"result"`
	Error        string          `json:"error"`
	ErrorMessage string          `json:"error_message"`
}

// request sends one command and decodes the matching result into out.
func (c *Client) request(ctx context.Context, command string, params map[string]any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	msg := make(map[string]any, len(params)+2)
	for k, v := range params {
		msg[k] = v
	}
	msg["id"] = id
	msg["command"] = command

	deadline := time.Now().Add(c.cfg.RequestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return c.transportError(ctx, command, err)
	}
	if err := c.ws.WriteJSON(msg); err != nil {
		return c.transportError(ctx, command, err)
	}
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return c.transportError(ctx, command, err)
	}

	for {
		var resp response
		if err := c.ws.ReadJSON(&resp); err != nil {
			return c.transportError(ctx, command, err)
		}
		// Stream messages and stale replies share the socket.
		if resp.Type != "response" || resp.ID != id {
			continue
		}
		if resp.Status != "success" {
			metrics.LedgerCalls.WithLabelValues(command, "rpc_error").Inc()
			return &RPCError{Command: command, Code: resp.Error, Message: resp.ErrorMessage}
		}
		metrics.LedgerCalls.WithLabelValues(command, "ok").Inc()
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("%w: decode %s result: %v", ErrNetwork, command, err)
		}
		return nil
	}
}

func (c *Client) transportError(ctx context.Context, command string, err error) error {
	metrics.LedgerCalls.WithLabelValues(command, "error").Inc()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrNetwork, command, ctxErr)
	}
	return fmt.Errorf("%w: %s: %v", ErrNetwork, command, err)
}

// ReadAccount reads balance and sequence at the current ledger. An account
// that does not exist yet is reported as not activated, not as an error.
func (c *Client) ReadAccount(ctx context.Context, address string) (*AccountState, error) {
	var res struct {
		AccountData struct {
			Balance  string `json:"Balance"`
			Sequence uint32 `json:"Sequence"`
		} `json:"account_data"`
	}
	err := c.request(ctx, "account_info", map[string]any{
		"account":      address,
		"ledger_index": "current",
	}, &res)
	if err != nil {
		if rpcCode(err) == codeAccountNotFound {
			return &AccountState{Activated: false}, nil
		}
		if errors.Is(err, ErrNetwork) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	balance, err := strconv.ParseUint(res.AccountData.Balance, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed balance %q", ErrNetwork, res.AccountData.Balance)
	}
	return &AccountState{
		Balance:   balance,
		Activated: true,
		Sequence:  res.AccountData.Sequence,
	}, nil
}

// SubmitPayment autofills, signs, submits exactly once and waits for the
// payment to appear in a validated ledger.
func (c *Client) SubmitPayment(ctx context.Context, kp *signer.Keypair, destination string, drops uint64) (*Submission, error) {
	dest, err := signer.DecodeAddress(destination)
	if err != nil {
		return nil, err
	}
	if drops == 0 || drops > MaxDrops {
		return nil, ErrInvalidAmount
	}

	// 1. Autofill
	account, err := c.ReadAccount(ctx, kp.Address())
	if err != nil {
		return nil, err
	}
	if !account.Activated {
		return nil, &SubmissionError{Code: codeAccountNotFound, Message: "source account is not funded"}
	}
	fee, err := c.openLedgerFee(ctx)
	if err != nil {
		return nil, err
	}
	current, err := c.currentLedgerIndex(ctx)
	if err != nil {
		return nil, err
	}

	payment := &Payment{
		Account:            kp.AccountID(),
		Destination:        dest,
		Amount:             drops,
		Fee:                fee,
		Sequence:           account.Sequence,
		LastLedgerSequence: current + c.cfg.LedgerOffset,
	}

	// 2. Sign
	signed, err := payment.Sign(kp)
	if err != nil {
		return nil, err
	}

	log := logger.With("tx_hash", signed.Hash, "sequence", payment.Sequence,
		"last_ledger_sequence", payment.LastLedgerSequence)

	// 3. Submit once
	var submitted struct {
		EngineResult        string `json:"engine_result"`
		EngineResultMessage string `json:"engine_result_message"`
	}
	err = c.request(ctx, "submit", map[string]any{"tx_blob": signed.BlobHex()}, &submitted)
	if err != nil {
		if code := rpcCode(err); code != "" {
			return nil, &SubmissionError{Code: code, Message: err.Error(), Hash: signed.Hash}
		}
		// The blob may have reached the server.
		return nil, fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)
	}
	log.Info("payment submitted", "engine_result", submitted.EngineResult)

	if isFinalRejection(submitted.EngineResult) {
		return nil, &SubmissionError{
			Code:    submitted.EngineResult,
			Message: submitted.EngineResultMessage,
			Hash:    signed.Hash,
		}
	}

	// 4. Wait for validation
	return c.awaitFinality(ctx, signed.Hash, payment.LastLedgerSequence)
}

func (c *Client) awaitFinality(ctx context.Context, hash string, lastLedger uint32) (*Submission, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.FinalityTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("%w: %s not validated: %w", ErrOutcomeUnknown, hash, waitCtx.Err())
		case <-ticker.C:
		}

		sub, done, err := c.checkTransaction(waitCtx, hash, lastLedger)
		if err != nil {
			var subErr *SubmissionError
			if errors.As(err, &subErr) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)
		}
		if done {
			return sub, nil
		}
	}
}

// checkTransaction reports done once the transaction is in a validated ledger
// or can no longer be included.
func (c *Client) checkTransaction(ctx context.Context, hash string, lastLedger uint32) (*Submission, bool, error) {
	var res struct {
		Validated   bool   `json:"validated"`
		LedgerIndex uint32 `json:"ledger_index"`
		Meta        struct {
			TransactionResult string `json:"TransactionResult"`
		} `json:"meta"`
	}
	err := c.request(ctx, "tx", map[string]any{"transaction": hash, "binary": false}, &res)
	if err != nil && rpcCode(err) != codeTxnNotFound {
		return nil, false, err
	}

	if err == nil && res.Validated {
		if res.Meta.TransactionResult != resultSuccess {
			return nil, true, &SubmissionError{Code: res.Meta.TransactionResult, Hash: hash}
		}
		return &Submission{Hash: hash, Result: resultSuccess, LedgerIndex: res.LedgerIndex}, true, nil
	}

	validated, err := c.validatedLedgerIndex(ctx)
	if err != nil {
		return nil, false, err
	}
	if validated > lastLedger {
		return nil, true, &SubmissionError{
			Code:    codeMaxLedger,
			Message: fmt.Sprintf("not included by ledger %d", lastLedger),
			Hash:    hash,
		}
	}
	return nil, false, nil
}

func (c *Client) openLedgerFee(ctx context.Context) (uint64, error) {
	var res struct {
		Drops struct {
			BaseFee       string `json:"base_fee"`
			OpenLedgerFee string `json:"open_ledger_fee"`
		} `json:"drops"`
	}
	if err := c.request(ctx, "fee", nil, &res); err != nil {
		return 0, asNetworkError(err)
	}

	fee := uint64(minFeeDrops)
	for _, s := range []string{res.Drops.OpenLedgerFee, res.Drops.BaseFee} {
		if v, err := strconv.ParseUint(s, 10, 64); err == nil && v > fee {
			fee = v
		}
	}
	if c.cfg.MaxFeeDrops > 0 && fee > c.cfg.MaxFeeDrops {
		fee = c.cfg.MaxFeeDrops
	}
	return fee, nil
}

func (c *Client) currentLedgerIndex(ctx context.Context) (uint32, error) {
	var res struct {
		LedgerCurrentIndex uint32 `json:"ledger_current_index"`
	}
	if err := c.request(ctx, "ledger_current", nil, &res); err != nil {
		return 0, asNetworkError(err)
	}
	return res.LedgerCurrentIndex, nil
}

func (c *Client) validatedLedgerIndex(ctx context.Context) (uint32, error) {
	var res struct {
		LedgerIndex uint32 `json:"ledger_index"`
	}
	if err := c.request(ctx, "ledger", map[string]any{"ledger_index": "validated"}, &res); err != nil {
		return 0, err
	}
	return res.LedgerIndex, nil
}

func asNetworkError(err error) error {
	if errors.Is(err, ErrNetwork) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// isFinalRejection reports preliminary results that can never succeed later.
func isFinalRejection(engineResult string) bool {
	for _, prefix := range []string{"tem", "tef", "tel"} {
		if strings.HasPrefix(engineResult, prefix) {
			return true
		}
	}
	return false
}
