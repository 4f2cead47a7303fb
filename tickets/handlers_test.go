package tickets

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteEngineErrorMapping(t *testing.T) {
	cases := []struct {
		err      error
		wantCode int
	}{
		{ErrSoldOut, http.StatusConflict},
		{ErrAlreadyClaimed, http.StatusConflict},
		{ErrNotActive, http.StatusConflict},
		{ErrEventNotClaimable, http.StatusBadRequest},
		{ErrEventPassed, http.StatusBadRequest},
		{ErrMalformedCredential, http.StatusBadRequest},
		{ErrWrongScope, http.StatusForbidden},
		{ErrTicketNotFound, http.StatusNotFound},
		{ErrEventNotFound, http.StatusNotFound},
		{fmt.Errorf("claim: insert ticket: %w", fmt.Errorf("connection reset")), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeEngineError(rec, tc.err)
			assert.Equal(t, tc.wantCode, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestDistinctMessagesForClaimRejections(t *testing.T) {
	// The frontend renders these verbatim; "Sold out" and "already
	// claimed" must never collapse into one message.
	soldOut := httptest.NewRecorder()
	writeEngineError(soldOut, ErrSoldOut)

	claimed := httptest.NewRecorder()
	writeEngineError(claimed, ErrAlreadyClaimed)

	assert.NotEqual(t, soldOut.Body.String(), claimed.Body.String())
}
