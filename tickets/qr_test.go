package tickets

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialRoundTrip(t *testing.T) {
	issuedAt := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	payload := EncodeCredential("tick-123", "evt-456", "user-789", issuedAt)

	cred, err := DecodeCredential(payload)
	require.NoError(t, err)

	assert.Equal(t, "tick-123", cred.TicketID)
	assert.Equal(t, "evt-456", cred.EventID)
	assert.Equal(t, "user-789", cred.HolderID)
	assert.True(t, cred.IssuedAt.Equal(issuedAt))
}

func TestCredentialDeterministic(t *testing.T) {
	issuedAt := time.Now().UTC().Truncate(time.Second)
	a := EncodeCredential("t", "e", "h", issuedAt)
	b := EncodeCredential("t", "e", "h", issuedAt)
	assert.Equal(t, a, b)
}

func TestCredentialOmitsMutableState(t *testing.T) {
	payload := EncodeCredential("tick-1", "evt-1", "user-1", time.Now())
	// Only issuance-time fields are serialized; a payload generated at
	// claim time must not be able to misrepresent current status.
	parts := strings.Split(payload, "|")
	assert.Len(t, parts, 5)
	for _, p := range parts[:4] {
		assert.NotContains(t, p, "active")
		assert.NotContains(t, p, "used")
	}
}

func TestCredentialTamperDetection(t *testing.T) {
	payload := EncodeCredential("tick-123", "evt-456", "user-789", time.Now())

	for i := 0; i < len(payload); i++ {
		mutated := []byte(payload)
		if mutated[i] == 'x' {
			mutated[i] = 'y'
		} else {
			mutated[i] = 'x'
		}
		_, err := DecodeCredential(string(mutated))
		assert.Error(t, err, "mutation at index %d should not decode", i)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"garbage", "not-a-credential"},
		{"too few parts", "a|b|c|123"},
		{"too many parts", "a|b|c|123|sig|extra"},
		{"empty ticket id", "|e|h|123|sig"},
		{"empty event id", "t||h|123|sig"},
		{"empty holder id", "t|e||123|sig"},
		{"non-numeric timestamp", "t|e|h|soon|sig"},
		{"bad signature", "t|e|h|123|AAAA"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeCredential(tc.payload)
			assert.ErrorIs(t, err, ErrMalformedCredential)
		})
	}
}

func TestDecodeRejectsForgedSignature(t *testing.T) {
	// A structurally valid payload signed with the wrong key must not
	// decode.
	genuine := EncodeCredential("tick-123", "evt-456", "user-789", time.Now())
	parts := strings.Split(genuine, "|")
	forged := strings.Join(parts[:4], "|") + "|Zm9yZ2Vkc2lnbmF0dXJl"

	_, err := DecodeCredential(forged)
	assert.ErrorIs(t, err, ErrMalformedCredential)
}
