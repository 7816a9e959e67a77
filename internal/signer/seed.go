package signer

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
)

type Algorithm string

const (
	Secp256k1 Algorithm = "secp256k1"
	Ed25519   Algorithm = "ed25519"
)

const EntropySize = 16

var (
	secp256k1SeedVersion = []byte{0x21}
	ed25519SeedVersion   = []byte{0x01, 0xE1, 0x4B}

	ErrInvalidSeed = errors.New("invalid seed")
)

// Seed is the 16 bytes of entropy every keypair is derived from.
type Seed struct {
	Entropy   [EntropySize]byte
	Algorithm Algorithm
}

// GenerateSeed draws fresh entropy from crypto/rand.
func GenerateSeed(alg Algorithm) (*Seed, error) {
	if alg != Secp256k1 && alg != Ed25519 {
		return nil, fmt.Errorf("unsupported algorithm %q", alg)
	}
	s := &Seed{Algorithm: alg}
	if _, err := rand.Read(s.Entropy[:]); err != nil {
		return nil, fmt.Errorf("read entropy: %w", err)
	}
	return s, nil
}

// DecodeSeed parses a family seed ("s...") or an ed25519 seed ("sEd...").
func DecodeSeed(encoded string) (*Seed, error) {
	encoded = strings.TrimSpace(encoded)

	if entropy, err := DecodeCheck(encoded, ed25519SeedVersion, EntropySize); err == nil {
		s := &Seed{Algorithm: Ed25519}
		copy(s.Entropy[:], entropy)
		return s, nil
	}
	entropy, err := DecodeCheck(encoded, secp256k1SeedVersion, EntropySize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	s := &Seed{Algorithm: Secp256k1}
	copy(s.Entropy[:], entropy)
	return s, nil
}

func (s *Seed) Encode() string {
	if s.Algorithm == Ed25519 {
		return EncodeCheck(ed25519SeedVersion, s.Entropy[:])
	}
	return EncodeCheck(secp256k1SeedVersion, s.Entropy[:])
}

// String never prints the entropy.
func (s *Seed) String() string {
	return fmt.Sprintf("Seed(%s)", s.Algorithm)
}
