package util

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

var ErrArgon2idParams = errors.New("invalid argon2id parameters")

// Argon2idParams are the cost parameters for DeriveArgon2idKey.
type Argon2idParams struct {
	Time        uint32 `json:"time"`
	MemoryKiB   uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
	KeyLen      uint32 `json:"key_len"`
}

// DefaultArgon2idParams follows the RFC 9106 second recommended option,
// with four lanes.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{Time: 3, MemoryKiB: 64 * 1024, Parallelism: 4, KeyLen: AESKeySize}
}

func (p Argon2idParams) validate() error {
	switch {
	case p.KeyLen != AESKeySize:
		return fmt.Errorf("%w: key length %d, want %d", ErrArgon2idParams, p.KeyLen, AESKeySize)
	case p.Time == 0, p.MemoryKiB == 0, p.Parallelism == 0:
		return fmt.Errorf("%w: time, memory and parallelism must be non-zero", ErrArgon2idParams)
	}
	return nil
}

// DeriveArgon2idKey stretches secret into an AES-256 key.
func DeriveArgon2idKey(secret string, salt []byte, params Argon2idParams) ([]byte, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return argon2.IDKey([]byte(secret), salt, params.Time, params.MemoryKiB, params.Parallelism, params.KeyLen), nil
}
