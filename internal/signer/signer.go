package signer

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

const ed25519Prefix = 0xED

// Keypair is the signing key of the gateway account. It is materialized per
// request from the stored seed and never serialized.
type Keypair struct {
	alg       Algorithm
	publicKey []byte
	account   AccountID

	secp *secp256k1.PrivateKey
	ed   ed25519.PrivateKey
}

// SHA512Half is the first 32 bytes of SHA-512, the ledger's standard digest.
func SHA512Half(parts ...[]byte) [32]byte {
	h := sha512.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// DeriveKeypair derives the account keypair (index 0) from a seed.
func DeriveKeypair(seed *Seed) (*Keypair, error) {
	if seed == nil {
		return nil, ErrInvalidSeed
	}

	var kp *Keypair
	switch seed.Algorithm {
	case Ed25519:
		digest := SHA512Half(seed.Entropy[:])
		priv := ed25519.NewKeyFromSeed(digest[:])
		pub := append([]byte{ed25519Prefix}, priv.Public().(ed25519.PublicKey)...)
		kp = &Keypair{alg: Ed25519, publicKey: pub, ed: priv}
	case Secp256k1:
		// 1. Root generator from the entropy
		root := deriveScalar(seed.Entropy[:], nil)
		rootPub := secp256k1.NewPrivateKey(&root).PubKey().SerializeCompressed()

		// 2. Account 0 tweak from the root public key
		var index uint32
		tweak := deriveScalar(rootPub, &index)
		tweak.Add(&root)

		priv := secp256k1.NewPrivateKey(&tweak)
		kp = &Keypair{alg: Secp256k1, publicKey: priv.PubKey().SerializeCompressed(), secp: priv}
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidSeed, seed.Algorithm)
	}

	kp.account = AccountIDFromPublicKey(kp.publicKey)
	return kp, nil
}

// KeypairFromSeed decodes and derives in one step.
func KeypairFromSeed(encoded string) (*Keypair, error) {
	seed, err := DecodeSeed(encoded)
	if err != nil {
		return nil, err
	}
	return DeriveKeypair(seed)
}

// deriveScalar hashes input (and the optional discriminator) with an
// increasing counter until the digest is a valid non-zero scalar.
func deriveScalar(input []byte, discriminator *uint32) secp256k1.ModNScalar {
	var buf [4]byte
	for i := uint32(0); ; i++ {
		parts := [][]byte{input}
		if discriminator != nil {
			parts = append(parts, binary.BigEndian.AppendUint32(nil, *discriminator))
		}
		binary.BigEndian.PutUint32(buf[:], i)
		parts = append(parts, buf[:])

		digest := SHA512Half(parts...)
		var s secp256k1.ModNScalar
		if overflow := s.SetByteSlice(digest[:]); !overflow && !s.IsZero() {
			return s
		}
	}
}

func (k *Keypair) Algorithm() Algorithm {
	return k.alg
}

// PublicKey is 33 bytes: compressed secp256k1, or 0xED followed by the ed25519 key.
func (k *Keypair) PublicKey() []byte {
	out := make([]byte, len(k.publicKey))
	copy(out, k.publicKey)
	return out
}

func (k *Keypair) AccountID() AccountID {
	return k.account
}

func (k *Keypair) Address() string {
	return k.account.Address()
}

// Sign signs a message as the ledger expects: DER over SHA512Half for
// secp256k1, and the raw message for ed25519.
func (k *Keypair) Sign(message []byte) ([]byte, error) {
	switch k.alg {
	case Secp256k1:
		digest := SHA512Half(message)
		return ecdsa.Sign(k.secp, digest[:]).Serialize(), nil
	case Ed25519:
		return ed25519.Sign(k.ed, message), nil
	default:
		return nil, errors.New("keypair not initialized")
	}
}

// Verify checks a signature produced by Sign against this keypair's public key.
func (k *Keypair) Verify(message, signature []byte) bool {
	switch k.alg {
	case Secp256k1:
		sig, err := ecdsa.ParseDERSignature(signature)
		if err != nil {
			return false
		}
		digest := SHA512Half(message)
		return sig.Verify(digest[:], k.secp.PubKey())
	case Ed25519:
		return ed25519.Verify(ed25519.PublicKey(k.publicKey[1:]), message, signature)
	default:
		return false
	}
}

func (k *Keypair) String() string {
	return fmt.Sprintf("Keypair(%s, %s)", k.alg, k.Address())
}
