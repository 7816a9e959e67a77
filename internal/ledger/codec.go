package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/usexrp/agentwallet/internal/signer"
)

const (
	// MaxDrops is the total XRP supply, 100 billion XRP.
	MaxDrops uint64 = 100_000_000_000 * DropsPerXRP
	DropsPerXRP     = 1_000_000

	txTypePayment    uint16 = 0
	nativeAmountFlag uint64 = 0x4000000000000000
)

var (
	signingPrefix = []byte{0x53, 0x54, 0x58, 0x00} // STX\0
	txHashPrefix  = []byte{0x54, 0x58, 0x4E, 0x00} // TXN\0

	ErrInvalidAmount = errors.New("amount must be between 1 drop and the total supply")
)

// Payment is a native XRP payment in the fields the gateway fills in.
type Payment struct {
	Account            signer.AccountID
	Destination        signer.AccountID
	Amount             uint64
	Fee                uint64
	Sequence           uint32
	LastLedgerSequence uint32
	Flags              uint32
	SigningPubKey      []byte
	TxnSignature       []byte
}

// SignedPayment is the wire blob and its ledger hash.
type SignedPayment struct {
	Blob []byte
	Hash string
}

func (s *SignedPayment) BlobHex() string {
	return strings.ToUpper(hex.EncodeToString(s.Blob))
}

// Serialize encodes the payment in canonical field order. The signature is
// left out when withSignature is false, which yields the signing form.
func (p *Payment) Serialize(withSignature bool) []byte {
	buf := make([]byte, 0, 256)

	buf = append(buf, 0x12)
	buf = binary.BigEndian.AppendUint16(buf, txTypePayment)

	buf = append(buf, 0x22)
	buf = binary.BigEndian.AppendUint32(buf, p.Flags)

	buf = append(buf, 0x24)
	buf = binary.BigEndian.AppendUint32(buf, p.Sequence)

	buf = append(buf, 0x20, 0x1B)
	buf = binary.BigEndian.AppendUint32(buf, p.LastLedgerSequence)

	buf = append(buf, 0x61)
	buf = binary.BigEndian.AppendUint64(buf, p.Amount|nativeAmountFlag)

	buf = append(buf, 0x68)
	buf = binary.BigEndian.AppendUint64(buf, p.Fee|nativeAmountFlag)

	buf = append(buf, 0x73)
	buf = appendVL(buf, p.SigningPubKey)

	if withSignature {
		buf = append(buf, 0x74)
		buf = appendVL(buf, p.TxnSignature)
	}

	buf = append(buf, 0x81)
	buf = appendVL(buf, p.Account[:])

	buf = append(buf, 0x83)
	buf = appendVL(buf, p.Destination[:])

	return buf
}

// Sign fills SigningPubKey and TxnSignature and returns the submittable blob.
func (p *Payment) Sign(kp *signer.Keypair) (*SignedPayment, error) {
	if p.Amount == 0 || p.Amount > MaxDrops {
		return nil, ErrInvalidAmount
	}
	if kp.AccountID() != p.Account {
		return nil, fmt.Errorf("keypair does not control account %s", p.Account.Address())
	}

	p.SigningPubKey = kp.PublicKey()
	p.TxnSignature = nil

	sig, err := kp.Sign(append(append([]byte{}, signingPrefix...), p.Serialize(false)...))
	if err != nil {
		return nil, fmt.Errorf("sign payment: %w", err)
	}
	p.TxnSignature = sig

	blob := p.Serialize(true)
	return &SignedPayment{Blob: blob, Hash: TransactionHash(blob)}, nil
}

// TransactionHash is the identifier the ledger assigns to a signed blob.
func TransactionHash(blob []byte) string {
	h := signer.SHA512Half(txHashPrefix, blob)
	return strings.ToUpper(hex.EncodeToString(h[:]))
}

// appendVL writes a variable-length field. Every blob here is under 193 bytes,
// which keeps the length prefix to one byte.
func appendVL(buf, data []byte) []byte {
	if len(data) > 192 {
		panic("ledger: variable-length field too long")
	}
	buf = append(buf, byte(len(data)))
	return append(buf, data...)
}
