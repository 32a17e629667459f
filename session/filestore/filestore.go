// Package filestore persists the session record as a JSON file, optionally
// sealed with XChaCha20-Poly1305 under a key derived from a passphrase.
package filestore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrsteele09/go-rag-client/internal/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 1
	saltLength      = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// envelope is the on-disk form of an encrypted record.
type envelope struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

type Store struct {
	path   string
	secret []byte
}

type Option func(*Store)

// WithSecret enables at-rest encryption. Empty secrets keep the file in plain JSON.
func WithSecret(secret string) Option {
	return func(s *Store) {
		if secret != "" {
			s.secret = []byte(secret)
		}
	}
}

func New(path string, options ...Option) *Store {
	s := &Store{path: path}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) Path() string {
	return s.path
}

// Load returns an empty record when the file does not exist yet.
func (s *Store) Load(_ context.Context) (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[filestore.Load] read %s: %w", s.path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Ciphertext) > 0 {
		if raw, err = s.open(env); err != nil {
			return nil, err
		}
	}

	values := map[string]string{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, errors.Wrapf(errors.ErrSessionCorrupt, "[filestore.Load] decode %s: %v", s.path, err)
	}
	return values, nil
}

// Save writes through a temporary file and a rename so readers never see a partial record.
func (s *Store) Save(_ context.Context, values map[string]string) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("[filestore.Save] encode: %w", err)
	}
	if s.secret != nil {
		env, err := s.seal(raw)
		if err != nil {
			return err
		}
		if raw, err = json.Marshal(env); err != nil {
			return fmt.Errorf("[filestore.Save] encode envelope: %w", err)
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("[filestore.Save] mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("[filestore.Save] create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("[filestore.Save] write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("[filestore.Save] chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[filestore.Save] close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("[filestore.Save] rename: %w", err)
	}
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("[filestore.Clear] remove %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) seal(plaintext []byte) (envelope, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return envelope{}, fmt.Errorf("[filestore.seal] salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(s.deriveKey(salt))
	if err != nil {
		return envelope{}, fmt.Errorf("[filestore.seal] cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return envelope{}, fmt.Errorf("[filestore.seal] nonce: %w", err)
	}
	return envelope{
		Version:    envelopeVersion,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}

func (s *Store) open(env envelope) ([]byte, error) {
	if s.secret == nil {
		return nil, errors.Wrapf(errors.ErrSessionCorrupt, "[filestore.open] %s is encrypted and no secret is configured", s.path)
	}
	if env.Version != envelopeVersion {
		return nil, errors.Wrapf(errors.ErrSessionCorrupt, "[filestore.open] unsupported envelope version %d", env.Version)
	}
	aead, err := chacha20poly1305.NewX(s.deriveKey(env.Salt))
	if err != nil {
		return nil, fmt.Errorf("[filestore.open] cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrSessionCorrupt, "[filestore.open] decrypt %s", s.path)
	}
	return plaintext, nil
}

func (s *Store) deriveKey(salt []byte) []byte {
	return argon2.IDKey(s.secret, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}
