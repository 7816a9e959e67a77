package signer

import (
	"bytes"
	"crypto/sha256"
	"errors"

	"github.com/btcsuite/btcutil/base58"
)

// The ledger uses its own base58 alphabet. Both alphabets have 58 symbols,
// so encoding is a symbol-for-symbol translation of the Bitcoin form.
const (
	bitcoinAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	rippleAlphabet  = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"
)

var (
	ErrInvalidEncoding = errors.New("invalid base58 encoding")
	ErrChecksum        = errors.New("base58 checksum mismatch")

	toRipple  [256]byte
	toBitcoin [256]byte
)

func init() {
	for i := 0; i < len(bitcoinAlphabet); i++ {
		toRipple[bitcoinAlphabet[i]] = rippleAlphabet[i]
		toBitcoin[rippleAlphabet[i]] = bitcoinAlphabet[i]
	}
}

// Encode encodes raw bytes with the ledger alphabet.
func Encode(data []byte) string {
	out := []byte(base58.Encode(data))
	for i, c := range out {
		out[i] = toRipple[c]
	}
	return string(out)
}

// Decode reverses Encode.
func Decode(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrInvalidEncoding
	}
	in := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := toBitcoin[s[i]]
		if c == 0 {
			return nil, ErrInvalidEncoding
		}
		in[i] = c
	}
	out := base58.Decode(string(in))
	if len(out) == 0 {
		return nil, ErrInvalidEncoding
	}
	return out, nil
}

// EncodeCheck encodes version||payload followed by a 4-byte double-SHA256 checksum.
func EncodeCheck(version, payload []byte) string {
	buf := make([]byte, 0, len(version)+len(payload)+4)
	buf = append(buf, version...)
	buf = append(buf, payload...)
	buf = append(buf, checksum(buf)...)
	return Encode(buf)
}

// DecodeCheck verifies the checksum and version prefix and returns the payload.
func DecodeCheck(s string, version []byte, payloadLen int) ([]byte, error) {
	raw, err := Decode(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != len(version)+payloadLen+4 {
		return nil, ErrInvalidEncoding
	}
	body, sum := raw[:len(raw)-4], raw[len(raw)-4:]
	if !bytes.Equal(checksum(body), sum) {
		return nil, ErrChecksum
	}
	if !bytes.Equal(body[:len(version)], version) {
		return nil, ErrInvalidEncoding
	}
	return body[len(version):], nil
}

func checksum(data []byte) []byte {
	h0 := sha256.Sum256(data)
	h1 := sha256.Sum256(h0[:])
	return h1[:4]
}
