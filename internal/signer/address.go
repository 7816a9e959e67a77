package signer

import (
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // account IDs are defined over RIPEMD-160
)

const AccountIDSize = 20

var (
	accountVersion = []byte{0x00}

	ErrInvalidAddress = errors.New("invalid address")
)

// AccountID is RIPEMD160(SHA256(publicKey)).
type AccountID [AccountIDSize]byte

func AccountIDFromPublicKey(pub []byte) AccountID {
	sha := sha256.Sum256(pub)
	h := ripemd160.New()
	h.Write(sha[:])

	var id AccountID
	copy(id[:], h.Sum(nil))
	return id
}

// Address renders the classic "r..." form.
func (id AccountID) Address() string {
	return EncodeCheck(accountVersion, id[:])
}

func DecodeAddress(address string) (AccountID, error) {
	var id AccountID
	payload, err := DecodeCheck(address, accountVersion, AccountIDSize)
	if err != nil {
		return id, ErrInvalidAddress
	}
	copy(id[:], payload)
	return id, nil
}

func IsValidAddress(address string) bool {
	_, err := DecodeAddress(address)
	return err == nil
}
