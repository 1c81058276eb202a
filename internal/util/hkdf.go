package util

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// maxHKDFLen is the HKDF-SHA256 output limit (255 blocks).
const maxHKDFLen = 255 * sha256.Size

// HKDFLen expands seed into n bytes of key material bound to info.
func HKDFLen(seed, salt, info []byte, n int) ([]byte, error) {
	if n <= 0 || n > maxHKDFLen {
		return nil, fmt.Errorf("hkdf: invalid output length %d", n)
	}
	k := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, seed, salt, info), k); err != nil {
		return nil, fmt.Errorf("reading from HKDF: %w", err)
	}
	return k, nil
}
