package secrets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/usexrp/agentwallet/internal/pkg/logger"
)

const (
	storeDirMode = 0o700
	storeFileMod = 0o600

	sealedPrefix  = "enc:"
	encodedPrefix = "b64:"
)

// FileStore keeps every secret in one JSON file. Values are sealed by the
// Protector when it is available and base64 encoded otherwise.
type FileStore struct {
	path      string
	protector Protector
	encrypted bool

	mu sync.RWMutex
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string, protector Protector) *FileStore {
	if protector == nil {
		protector = NoProtector{}
	}
	s := &FileStore{
		path:      filepath.Clean(path),
		protector: protector,
		encrypted: protector.Available(),
	}
	if !s.encrypted {
		logger.Warn("platform encryption unavailable, secrets stored with reversible encoding",
			"path", s.path)
	}
	return s
}

// Encrypted reports whether values written by this process are encrypted.
func (s *FileStore) Encrypted() bool {
	return s.encrypted
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateKey(key); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.load()
	if err != nil {
		return "", err
	}
	stored, ok := entries[key]
	if !ok {
		return "", ErrNotFound
	}

	value, err := s.open(stored)
	if err != nil {
		logger.Warn("stored secret could not be decoded, treating as absent",
			"key", key, "error", err.Error())
		return "", ErrNotFound
	}
	return value, nil
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	sealed, err := s.seal(value)
	if err != nil {
		return fmt.Errorf("%w: seal %q: %v", ErrUnavailable, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[key] = sealed
	return s.save(entries)
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.save(entries)
}

func (s *FileStore) seal(value string) (string, error) {
	if !s.encrypted {
		return encodedPrefix + base64.StdEncoding.EncodeToString([]byte(value)), nil
	}
	ciphertext, err := s.protector.Encrypt([]byte(value))
	if err != nil {
		return "", err
	}
	return sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (s *FileStore) open(stored string) (string, error) {
	switch {
	case strings.HasPrefix(stored, encodedPrefix):
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, encodedPrefix))
		if err != nil {
			return "", err
		}
		return string(raw), nil
	case strings.HasPrefix(stored, sealedPrefix):
		if !s.encrypted {
			return "", errors.New("value is encrypted but platform encryption is unavailable")
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
		if err != nil {
			return "", err
		}
		plaintext, err := s.protector.Decrypt(raw)
		if err != nil {
			return "", err
		}
		return string(plaintext), nil
	default:
		return "", errors.New("unknown value encoding")
	}
}

// load must be called with s.mu held.
func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, s.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]string{}, nil
	}

	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrUnavailable, s.path, err)
	}
	return entries, nil
}

// save writes through a temp file and rename so a crash leaves either the
// old or the new mapping on disk.
func (s *FileStore) save(entries map[string]string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, storeDirMode); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrUnavailable, dir, err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrUnavailable, err)
	}

	tmp, err := os.CreateTemp(dir, ".secrets-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(storeFileMod); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: chmod temp file: %v", ErrUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write temp file: %v", ErrUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync temp file: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replace %s: %v", ErrUnavailable, s.path, err)
	}
	return nil
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("secret key is empty")
	}
	return nil
}
