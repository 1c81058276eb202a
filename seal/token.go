package seal

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/calisound/caliauth/internal/util"
)

const tokenSeparator = ":"

// ErrMalformedToken is returned when a token is not three lowercase hex
// components of the expected sizes.
var ErrMalformedToken = errors.New("malformed token")

// Token is the wire form of a sealed payload: nonce:tag:ciphertext, each
// component lowercase hex.
type Token struct {
	Nonce      []byte
	Tag        []byte
	Ciphertext []byte
}

func (t Token) String() string {
	return strings.Join([]string{
		hex.EncodeToString(t.Nonce),
		hex.EncodeToString(t.Tag),
		hex.EncodeToString(t.Ciphertext),
	}, tokenSeparator)
}

// ParseToken splits and decodes a token. Only the canonical encoding produced
// by Token.String is accepted, so every character of a token is significant.
func ParseToken(s string) (Token, error) {
	parts := strings.Split(s, tokenSeparator)
	if len(parts) != 3 {
		return Token{}, ErrMalformedToken
	}
	decoded := make([][]byte, 3)
	for i, part := range parts {
		b, err := hex.DecodeString(part)
		if err != nil || hex.EncodeToString(b) != part {
			return Token{}, ErrMalformedToken
		}
		decoded[i] = b
	}
	t := Token{Nonce: decoded[0], Tag: decoded[1], Ciphertext: decoded[2]}
	if len(t.Nonce) != util.GCMNonceSize || len(t.Tag) != util.GCMTagSize {
		return Token{}, ErrMalformedToken
	}
	return t, nil
}
