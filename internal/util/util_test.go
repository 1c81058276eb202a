package util

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func TestAESGCM(t *testing.T) {
	key, err := RandomBytes(AESKeySize)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	plainText := []byte("hello world")
	aad := []byte("context")

	t.Run("SealOpenWithAAD", func(t *testing.T) {
		nonce, tag, cipherText, err := SealAESGCM(plainText, key, aad)
		if err != nil {
			t.Fatalf("SealAESGCM failed: %v", err)
		}
		if len(nonce) != GCMNonceSize {
			t.Errorf("expected %d byte nonce, got %d", GCMNonceSize, len(nonce))
		}
		if len(tag) != GCMTagSize {
			t.Errorf("expected %d byte tag, got %d", GCMTagSize, len(tag))
		}
		if len(cipherText) != len(plainText) {
			t.Errorf("expected ciphertext length %d, got %d", len(plainText), len(cipherText))
		}

		decrypted, err := OpenAESGCM(nonce, tag, cipherText, key, aad)
		if err != nil {
			t.Fatalf("OpenAESGCM failed: %v", err)
		}
		if !bytes.Equal(plainText, decrypted) {
			t.Errorf("expected %s, got %s", plainText, decrypted)
		}
	})

	t.Run("FreshNonce", func(t *testing.T) {
		n1, _, c1, _ := SealAESGCM(plainText, key, nil)
		n2, _, c2, _ := SealAESGCM(plainText, key, nil)
		if bytes.Equal(n1, n2) {
			t.Error("nonces must differ between calls")
		}
		if bytes.Equal(c1, c2) {
			t.Error("ciphertexts must differ between calls")
		}
	})

	t.Run("TamperAAD", func(t *testing.T) {
		nonce, tag, cipherText, _ := SealAESGCM(plainText, key, aad)
		_, err := OpenAESGCM(nonce, tag, cipherText, key, []byte("wrong context"))
		if err == nil {
			t.Error("expected error with wrong AAD, got nil")
		}
	})

	t.Run("TamperTag", func(t *testing.T) {
		nonce, tag, cipherText, _ := SealAESGCM(plainText, key, aad)
		tag[0] ^= 0xFF
		_, err := OpenAESGCM(nonce, tag, cipherText, key, aad)
		if err == nil {
			t.Error("expected error with tampered tag, got nil")
		}
	})

	t.Run("TamperCipherText", func(t *testing.T) {
		nonce, tag, cipherText, _ := SealAESGCM(plainText, key, aad)
		cipherText[len(cipherText)-1] ^= 0xFF
		_, err := OpenAESGCM(nonce, tag, cipherText, key, aad)
		if err == nil {
			t.Error("expected error with tampered ciphertext, got nil")
		}
	})

	t.Run("RejectShortNonce", func(t *testing.T) {
		_, tag, cipherText, _ := SealAESGCM(plainText, key, aad)
		_, err := OpenAESGCM([]byte{1, 2, 3}, tag, cipherText, key, aad)
		if err == nil {
			t.Error("expected error with short nonce, got nil")
		}
	})

	t.Run("RejectBadKeySize", func(t *testing.T) {
		_, _, _, err := SealAESGCM(plainText, []byte("too short"), aad)
		if err == nil {
			t.Error("expected error with wrong key size, got nil")
		}
	})
}

func TestArgon2id(t *testing.T) {
	params := Argon2idParams{Time: 1, MemoryKiB: 8 * 1024, Parallelism: 1, KeyLen: 32}
	salt := []byte("static salt")

	key, err := DeriveArgon2idKey("correct horse battery staple", salt, params)
	if err != nil {
		t.Fatalf("DeriveArgon2idKey failed: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("expected key length 32, got %d", len(key))
	}

	again, _ := DeriveArgon2idKey("correct horse battery staple", salt, params)
	if !bytes.Equal(key, again) {
		t.Error("DeriveArgon2idKey should be deterministic")
	}

	other, _ := DeriveArgon2idKey("wrong passphrase", salt, params)
	if bytes.Equal(key, other) {
		t.Error("different secrets should derive different keys")
	}

	t.Run("KeyLenNot32", func(t *testing.T) {
		p := params
		p.KeyLen = 16
		if _, err := DeriveArgon2idKey("x", salt, p); !errors.Is(err, ErrArgon2idParams) {
			t.Errorf("expected ErrArgon2idParams for KeyLen != 32, got %v", err)
		}
	})

	t.Run("ZeroTime", func(t *testing.T) {
		p := params
		p.Time = 0
		if _, err := DeriveArgon2idKey("x", salt, p); !errors.Is(err, ErrArgon2idParams) {
			t.Errorf("expected ErrArgon2idParams for Time=0, got %v", err)
		}
	})
}

func TestDefaultArgon2idParams(t *testing.T) {
	p := DefaultArgon2idParams()
	if p.MemoryKiB < 64*1024 {
		t.Errorf("default MemoryKiB=%d is below 64 MiB", p.MemoryKiB)
	}
	if p.KeyLen != 32 {
		t.Errorf("default KeyLen=%d must be 32", p.KeyLen)
	}
}

func TestHKDFLen(t *testing.T) {
	seed := []byte("seed")
	info := []byte("cookie-hash")

	key1, err := HKDFLen(seed, nil, info, 64)
	if err != nil {
		t.Fatalf("HKDFLen failed: %v", err)
	}
	if len(key1) != 64 {
		t.Errorf("expected 64 bytes, got %d", len(key1))
	}

	key2, _ := HKDFLen(seed, nil, info, 64)
	if !bytes.Equal(key1, key2) {
		t.Error("HKDFLen should be deterministic")
	}

	other, _ := HKDFLen(seed, nil, []byte("cookie-block"), 64)
	if bytes.Equal(key1, other) {
		t.Error("different info should give different keys")
	}

	short, _ := HKDFLen(seed, nil, info, 32)
	if !bytes.Equal(short, key1[:32]) {
		t.Error("shorter output should be a prefix of the longer expansion")
	}

	for _, n := range []int{0, -1, 255*32 + 1} {
		if _, err := HKDFLen(seed, nil, info, n); err == nil {
			t.Errorf("expected error for length %d", n)
		}
	}
}

func TestBytes(t *testing.T) {
	a := []byte{0x01, 0x02, 0x03}

	copied := bytes.Clone(a)
	WipeBytes(copied)
	if !bytes.Equal(copied, []byte{0, 0, 0}) {
		t.Errorf("WipeBytes left %v", copied)
	}
	if !bytes.Equal(a, []byte{0x01, 0x02, 0x03}) {
		t.Error("WipeBytes touched the original")
	}
}

func TestConstantTimeEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"Equal", "secret-value", "secret-value", true},
		{"DifferFirst", "secret-value", "Xecret-value", false},
		{"DifferLast", "secret-value", "secret-valuX", false},
		{"DifferentLength", "secret", "secret-value", false},
		{"BothEmpty", "", "", true},
		{"OneEmpty", "", "x", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ConstantTimeEqualString(tc.a, tc.b); got != tc.want {
				t.Errorf("ConstantTimeEqualString(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	// NFC é and NFD e + combining acute normalize to the same form.
	if Normalize("caf\u00e9") != Normalize("cafe\u0301") {
		t.Error("Normalize should fold composed and decomposed forms together")
	}
	// Compatibility forms fold too: the "ﬁ" ligature becomes "fi".
	if Normalize("\ufb01le") != "file" {
		t.Error("Normalize should apply compatibility decomposition")
	}
	if Normalize("hunter2") != "hunter2" {
		t.Error("ASCII should be unchanged")
	}
}

func TestRandom(t *testing.T) {
	t.Run("RandomBytes", func(t *testing.T) {
		b1, err := RandomBytes(32)
		if err != nil {
			t.Fatalf("RandomBytes failed: %v", err)
		}
		b2, err := RandomBytes(32)
		if err != nil {
			t.Fatalf("RandomBytes failed: %v", err)
		}
		if len(b1) != 32 {
			t.Errorf("expected 32 bytes, got %d", len(b1))
		}
		if bytes.Equal(b1, b2) {
			t.Error("RandomBytes should produce different outputs")
		}
	})

	t.Run("RandomHex", func(t *testing.T) {
		s, err := RandomHex(16)
		if err != nil {
			t.Fatalf("RandomHex failed: %v", err)
		}
		if len(s) != 32 {
			t.Errorf("expected 32 hex chars, got %d", len(s))
		}
		if _, err := hex.DecodeString(s); err != nil {
			t.Errorf("RandomHex output is not hex: %v", err)
		}
	})
}
