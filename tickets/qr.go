package tickets

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tessera/globals"
)

// Credential is the decoded form of a QR payload. It binds exactly the
// four issuance-time fields; nothing mutable (in particular, status)
// is ever part of the payload.
type Credential struct {
	TicketID string
	EventID  string
	HolderID string
	IssuedAt time.Time
}

// EncodeCredential builds the QR payload:
// ticketID|eventID|holderID|unixTimestamp|signature
// The exact string is stored on the ticket and doubles as the
// redemption lookup key.
func EncodeCredential(ticketID, eventID, holderID string, issuedAt time.Time) string {
	data := fmt.Sprintf("%s|%s|%s|%d", ticketID, eventID, holderID, issuedAt.Unix())

	h := hmac.New(sha256.New, globals.QRHmacSecret)
	h.Write([]byte(data))
	sig := base64.StdEncoding.EncodeToString(h.Sum(nil))

	return fmt.Sprintf("%s|%s", data, sig)
}

// DecodeCredential parses and verifies a QR payload. Any structural or
// signature failure yields ErrMalformedCredential; a well-formed
// payload with no matching stored ticket is the lifecycle layer's
// ErrTicketNotFound, not the codec's concern.
func DecodeCredential(payload string) (*Credential, error) {
	parts := strings.Split(payload, "|")
	if len(parts) != 5 {
		return nil, ErrMalformedCredential
	}

	ticketID := parts[0]
	eventID := parts[1]
	holderID := parts[2]
	timestampStr := parts[3]
	signature := parts[4]

	if ticketID == "" || eventID == "" || holderID == "" {
		return nil, ErrMalformedCredential
	}

	ts, err := strconv.ParseInt(timestampStr, 10, 64)
	if err != nil {
		return nil, ErrMalformedCredential
	}

	data := fmt.Sprintf("%s|%s|%s|%s", ticketID, eventID, holderID, timestampStr)
	h := hmac.New(sha256.New, globals.QRHmacSecret)
	h.Write([]byte(data))
	expectedSig := base64.StdEncoding.EncodeToString(h.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expectedSig)) {
		return nil, ErrMalformedCredential
	}

	return &Credential{
		TicketID: ticketID,
		EventID:  eventID,
		HolderID: holderID,
		IssuedAt: time.Unix(ts, 0).UTC(),
	}, nil
}
