package totp

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rfcSecret is the RFC 6238 SHA-1 test key "12345678901234567890".
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

// midStep sits in the middle of a 30 second step so that offsets of whole
// steps never land on a boundary.
var midStep = time.Unix(1700000025, 0)

func TestCodeMatchesRFC6238Vectors(t *testing.T) {
	tests := []struct {
		unix int64
		want string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1234567890, "005924"},
		{2000000000, "279037"},
	}
	for _, tc := range tests {
		got, err := Code(rfcSecret, time.Unix(tc.unix, 0))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "unix=%d", tc.unix)
	}
}

func TestGenerateSecret(t *testing.T) {
	s1, err := GenerateSecret()
	require.NoError(t, err)
	s2, err := GenerateSecret()
	require.NoError(t, err)

	assert.NotEqual(t, s1, s2)
	assert.Len(t, s1, 32, "160 bits base32 without padding")
	assert.NotContains(t, s1, "=")
	for _, r := range s1 {
		assert.True(t, (r >= 'A' && r <= 'Z') || (r >= '2' && r <= '7'), "unexpected rune %q", r)
	}

	raw, err := decodeSecret(s1)
	require.NoError(t, err)
	assert.Len(t, raw, SecretSize)
}

func TestProvisioningURI(t *testing.T) {
	uri, err := ProvisioningURI(rfcSecret, "admin", "CALI Sound")
	require.NoError(t, err)

	u, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "otpauth", u.Scheme)
	assert.Equal(t, "totp", u.Host)
	assert.Equal(t, "/CALI Sound:admin", u.Path)

	q := u.Query()
	assert.Equal(t, rfcSecret, q.Get("secret"))
	assert.Equal(t, "CALI Sound", q.Get("issuer"))
	assert.Equal(t, "SHA1", q.Get("algorithm"))
	assert.Equal(t, "6", q.Get("digits"))
	assert.Equal(t, "30", q.Get("period"))
}

func TestProvisioningURIRejectsBadSecret(t *testing.T) {
	_, err := ProvisioningURI("", "admin", "CALI Sound")
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = ProvisioningURI("not base32!", "admin", "CALI Sound")
	assert.ErrorIs(t, err, ErrInvalidSecret)
}

func TestVerifyModerateWindow(t *testing.T) {
	code, err := Code(rfcSecret, midStep)
	require.NoError(t, err)

	for k := -5; k <= 5; k++ {
		at := midStep.Add(time.Duration(k*Period) * time.Second)
		assert.True(t, Verify(code, rfcSecret, ModerateSkew, at), "step offset %d", k)
	}
	assert.False(t, Verify(code, rfcSecret, ModerateSkew, midStep.Add(8*Period*time.Second)))
}

func TestValidateFallsBackToWideWindow(t *testing.T) {
	code, err := Code(rfcSecret, midStep)
	require.NoError(t, err)

	for _, k := range []int{-10, -8, -6, 6, 8, 10} {
		at := midStep.Add(time.Duration(k*Period) * time.Second)
		assert.True(t, Validate(code, rfcSecret, at), "step offset %d", k)
	}
}

func TestValidateRejectsOutsideBothWindows(t *testing.T) {
	code, err := Code(rfcSecret, midStep)
	require.NoError(t, err)

	for _, k := range []int{11, 12, 20, -11, -20} {
		at := midStep.Add(time.Duration(k*Period) * time.Second)
		assert.False(t, Validate(code, rfcSecret, at), "step offset %d", k)
	}
}

func TestVerifyNormalizesWhitespace(t *testing.T) {
	code, err := Code(rfcSecret, midStep)
	require.NoError(t, err)

	spaced := code[:3] + " " + code[3:]
	assert.True(t, Validate(spaced, rfcSecret, midStep))
	assert.True(t, Validate(" "+code+"\n", rfcSecret, midStep))
	assert.True(t, Validate(code, strings.ToLower(rfcSecret), midStep))
}

func TestVerifyRejectsMalformedCodes(t *testing.T) {
	for _, code := range []string{"", "12345", "1234567", "12a456", "１２３４５６", "-12345"} {
		assert.False(t, Validate(code, rfcSecret, midStep), "code %q", code)
	}
}

func TestVerifyFailsClosedWithoutSecret(t *testing.T) {
	code, err := Code(rfcSecret, midStep)
	require.NoError(t, err)

	assert.False(t, Validate(code, "", midStep))
	assert.False(t, Validate(code, "   ", midStep))
	assert.False(t, Validate(code, "!!!!", midStep))
}

func TestWellFormedCode(t *testing.T) {
	assert.True(t, WellFormedCode("000000"))
	assert.True(t, WellFormedCode("123456"))
	assert.False(t, WellFormedCode("12345"))
	assert.False(t, WellFormedCode("12 456"))
}

func TestCheckSecret(t *testing.T) {
	got, err := CheckSecret(" gezd gnbv gy3t qojq gezd gnbv gy3t qojq ")
	require.NoError(t, err)
	assert.Equal(t, "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ", got)

	_, err = CheckSecret("")
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = CheckSecret("not*base32!")
	assert.ErrorIs(t, err, ErrInvalidSecret)
}
