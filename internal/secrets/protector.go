package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	masterKeySize = 32
	nonceSize     = 12
	masterKeyUser = "master_key"
)

// Protector is the platform encryption facility used for values at rest.
type Protector interface {
	Available() bool
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// KeyringProtector seals values with AES-256-GCM under a master key kept in
// the OS keychain. The key is created on first use.
type KeyringProtector struct {
	service string

	once sync.Once
	key  []byte
	err  error
}

func NewKeyringProtector(service string) *KeyringProtector {
	return &KeyringProtector{service: service}
}

// Available checks the keychain once; the answer holds for the process lifetime.
func (p *KeyringProtector) Available() bool {
	return p.masterKey() == nil
}

func (p *KeyringProtector) masterKey() error {
	p.once.Do(func() {
		p.key, p.err = p.loadOrCreate()
	})
	return p.err
}

func (p *KeyringProtector) loadOrCreate() ([]byte, error) {
	encoded, err := keyring.Get(p.service, masterKeyUser)
	if err == nil {
		key, decErr := base64.StdEncoding.DecodeString(encoded)
		if decErr != nil || len(key) != masterKeySize {
			return nil, fmt.Errorf("keychain master key is malformed")
		}
		return key, nil
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("read keychain: %w", err)
	}

	key := make([]byte, masterKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate master key: %w", err)
	}
	if err := keyring.Set(p.service, masterKeyUser, base64.StdEncoding.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("write keychain: %w", err)
	}
	return key, nil
}

func (p *KeyringProtector) gcm() (cipher.AEAD, error) {
	if err := p.masterKey(); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(p.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Encrypt returns nonce || ciphertext || tag.
func (p *KeyringProtector) Encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := p.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (p *KeyringProtector) Decrypt(ciphertext []byte) ([]byte, error) {
	gcm, err := p.gcm()
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < nonceSize+gcm.Overhead() {
		return nil, fmt.Errorf("ciphertext too short: %d bytes", len(ciphertext))
	}
	plaintext, err := gcm.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

// NoProtector is used where no platform encryption exists. FileStore falls
// back to its reversible encoding.
type NoProtector struct{}

func (NoProtector) Available() bool { return false }

func (NoProtector) Encrypt([]byte) ([]byte, error) {
	return nil, errors.New("encryption unavailable")
}

func (NoProtector) Decrypt([]byte) ([]byte, error) {
	return nil, errors.New("encryption unavailable")
}
