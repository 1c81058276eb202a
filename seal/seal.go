// Package seal turns small records into tamper-evident encrypted tokens and
// back. Tokens are AES-256-GCM under a key derived from a master secret with
// Argon2id, serialized as nonce:tag:ciphertext.
package seal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/calisound/caliauth/internal/util"
)

var (
	// ErrEmptySecret is returned when no master secret is supplied.
	ErrEmptySecret = errors.New("master secret is empty")
	// ErrAuthentication is returned when a token fails GCM authentication,
	// either because it was modified or because it was sealed under a
	// different key.
	ErrAuthentication = errors.New("token authentication failed")
	// ErrPayload is returned by OpenJSON when the decrypted payload does not
	// decode into the requested record.
	ErrPayload = errors.New("token payload invalid")
)

// kdfSalt is static: the derived key must be reproducible from
// the master secret alone. Changing it invalidates every issued token.
var kdfSalt = []byte("caliauth:session-token:v1")

// tokenAAD binds tokens to this package so ciphertexts produced elsewhere
// with the same key are rejected.
var tokenAAD = []byte("caliauth:seal:v1")

type options struct {
	params util.Argon2idParams
}

// Option configures key derivation.
type Option func(*options)

// WithKDFParams overrides the Argon2id cost parameters. Tokens are only
// readable by a Sealer using the same parameters.
func WithKDFParams(p util.Argon2idParams) Option {
	return func(o *options) {
		o.params = p
	}
}

// Sealer seals and opens tokens with a key derived once from the master
// secret. The derived key lives in a memguard enclave between uses.
type Sealer struct {
	key *memguard.Enclave
}

// NewSealer derives the token key from masterSecret.
func NewSealer(masterSecret string, opts ...Option) (*Sealer, error) {
	if masterSecret == "" {
		return nil, ErrEmptySecret
	}
	o := options{params: util.DefaultArgon2idParams()}
	for _, opt := range opts {
		opt(&o)
	}
	key, err := util.DeriveArgon2idKey(masterSecret, kdfSalt, o.params)
	if err != nil {
		return nil, fmt.Errorf("deriving token key: %w", err)
	}
	// NewEnclave wipes key.
	return &Sealer{key: memguard.NewEnclave(key)}, nil
}

// Seal encrypts plaintext into a token. Every call uses a fresh nonce.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	var tok Token
	err := s.withKey(func(key []byte) error {
		nonce, tag, ct, err := util.SealAESGCM(plaintext, key, tokenAAD)
		if err != nil {
			return err
		}
		tok = Token{Nonce: nonce, Tag: tag, Ciphertext: ct}
		return nil
	})
	if err != nil {
		return "", err
	}
	return tok.String(), nil
}

// Open decrypts a token produced by Seal.
func (s *Sealer) Open(token string) ([]byte, error) {
	tok, err := ParseToken(token)
	if err != nil {
		return nil, err
	}
	var plaintext []byte
	err = s.withKey(func(key []byte) error {
		pt, err := util.OpenAESGCM(tok.Nonce, tok.Tag, tok.Ciphertext, key, tokenAAD)
		if err != nil {
			return ErrAuthentication
		}
		plaintext = pt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// DeriveKey expands the token key into n bytes of independent key material
// for the given purpose.
func (s *Sealer) DeriveKey(purpose string, n int) ([]byte, error) {
	var out []byte
	err := s.withKey(func(key []byte) error {
		k, err := util.HKDFLen(key, nil, []byte("caliauth:"+purpose), n)
		if err != nil {
			return err
		}
		out = k
		return nil
	})
	return out, err
}

func (s *Sealer) withKey(fn func(key []byte) error) error {
	buf, err := s.key.Open()
	if err != nil {
		return fmt.Errorf("opening token key: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// SealJSON marshals v and seals the result.
func SealJSON(s *Sealer, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	defer util.WipeBytes(data)
	return s.Seal(data)
}

// OpenJSON opens token and decodes it into a T. Unknown fields are rejected
// so that payloads of a different record shape do not decode.
func OpenJSON[T any](s *Sealer, token string) (T, error) {
	var v T
	data, err := s.Open(token)
	if err != nil {
		return v, err
	}
	defer util.WipeBytes(data)
	if err := decodeStrict(data, &v); err != nil {
		return v, ErrPayload
	}
	return v, nil
}

// Encrypt seals data under a key derived from masterSecret on every call.
// Prefer a long-lived Sealer on request paths.
func Encrypt(data []byte, masterSecret string, opts ...Option) (string, error) {
	s, err := NewSealer(masterSecret, opts...)
	if err != nil {
		return "", err
	}
	return s.Seal(data)
}

// Decrypt opens a token produced by Encrypt with the same master secret.
func Decrypt(token, masterSecret string, opts ...Option) ([]byte, error) {
	s, err := NewSealer(masterSecret, opts...)
	if err != nil {
		return nil, err
	}
	return s.Open(token)
}
