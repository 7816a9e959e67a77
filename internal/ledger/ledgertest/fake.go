// Package ledgertest provides in-memory ledger.Dialer and ledger.Conn doubles
// that count how they are used.
package ledgertest

import (
	"context"
	"sync"
	"time"

	"github.com/usexrp/agentwallet/internal/ledger"
	"github.com/usexrp/agentwallet/internal/signer"
)

// Dialer hands out one fresh Conn per Dial, configured from the template
// fields on the Dialer.
type Dialer struct {
	DialErr error

	Account    *ledger.AccountState
	AccountErr error
	Submission *ledger.Submission
	SubmitErr  error
	// BlockSubmit makes SubmitPayment wait for ctx to end and then return
	// ledger.ErrOutcomeUnknown, like a finality wait that never completes.
	BlockSubmit bool
	// SubmitDelay makes SubmitPayment sleep without watching ctx, like a
	// node that stops answering.
	SubmitDelay time.Duration

	mu    sync.Mutex
	conns []*Conn
	dials int
}

var _ ledger.Dialer = (*Dialer)(nil)

func (d *Dialer) Dial(ctx context.Context) (ledger.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	c := &Conn{
		account:    d.Account,
		accountErr: d.AccountErr,
		submission: d.Submission,
		submitErr:  d.SubmitErr,
		block:      d.BlockSubmit,
		delay:      d.SubmitDelay,
	}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *Dialer) Conns() []*Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Conn, len(d.conns))
	copy(out, d.conns)
	return out
}

// TotalSubmits sums SubmitPayment calls over every connection.
func (d *Dialer) TotalSubmits() int {
	total := 0
	for _, c := range d.Conns() {
		total += c.Submits()
	}
	return total
}

// Payment records one SubmitPayment call.
type Payment struct {
	Account     string
	Destination string
	Drops       uint64
}

type Conn struct {
	account    *ledger.AccountState
	accountErr error
	submission *ledger.Submission
	submitErr  error
	block      bool
	delay      time.Duration

	mu       sync.Mutex
	reads    []string
	payments []Payment
	closes   int
}

var _ ledger.Conn = (*Conn)(nil)

func (c *Conn) ReadAccount(ctx context.Context, address string) (*ledger.AccountState, error) {
	c.mu.Lock()
	c.reads = append(c.reads, address)
	c.mu.Unlock()

	if c.accountErr != nil {
		return nil, c.accountErr
	}
	if c.account == nil {
		return &ledger.AccountState{Activated: false}, nil
	}
	state := *c.account
	return &state, nil
}

func (c *Conn) SubmitPayment(ctx context.Context, kp *signer.Keypair, destination string, drops uint64) (*ledger.Submission, error) {
	c.mu.Lock()
	c.payments = append(c.payments, Payment{Account: kp.Address(), Destination: destination, Drops: drops})
	c.mu.Unlock()

	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.block {
		<-ctx.Done()
		return nil, ledger.ErrOutcomeUnknown
	}
	if c.submitErr != nil {
		return nil, c.submitErr
	}
	if c.submission == nil {
		return &ledger.Submission{Hash: "MOCKHASH", Result: "tesSUCCESS"}, nil
	}
	sub := *c.submission
	return &sub, nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *Conn) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *Conn) Submits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payments)
}

func (c *Conn) Payments() []Payment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Payment, len(c.payments))
	copy(out, c.payments)
	return out
}

func (c *Conn) Reads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.reads))
	copy(out, c.reads)
	return out
}
