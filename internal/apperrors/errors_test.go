package apperrors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"authentication", AuthenticationRequired("missing token"), http.StatusUnauthorized},
		{"payment", PaymentRequired("upgrade"), http.StatusPaymentRequired},
		{"quota", QuotaExceeded("limit", 10, 10), http.StatusTooManyRequests},
		{"validation", Validation("bad file"), http.StatusBadRequest},
		{"too large", PayloadTooLarge("too big"), http.StatusRequestEntityTooLarge},
		{"not found", NotFound("missing"), http.StatusNotFound},
		{"forbidden", Forbidden("nope"), http.StatusForbidden},
		{"configuration", Configuration("starter plan missing"), http.StatusInternalServerError},
		{"foreign", sql.ErrConnDone, http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("admit: %w", PaymentRequired("upgrade")), http.StatusPaymentRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("consume: %w", QuotaExceeded("Daily limit reached.", 3, 3))

	assert.True(t, errors.Is(err, ErrQuotaExceeded))
	assert.False(t, errors.Is(err, ErrPaymentRequired))
}

func TestPublicMessageHidesInternalText(t *testing.T) {
	raw := errors.New("pq: connection refused on 10.0.0.4")

	assert.Equal(t, "Internal server error", PublicMessage(raw))
	assert.Equal(t, "Internal server error", PublicMessage(Wrap(raw, "load plan")))
	assert.Equal(t, "Invalid filename", PublicMessage(Validation("Invalid filename")))
}

func TestQuotaExceededMetadata(t *testing.T) {
	err := QuotaExceeded("limit", 7, 10)

	assert.Equal(t, 7, err.Metadata["used"])
	assert.Equal(t, 10, err.Metadata["limit"])
	assert.Equal(t, KindQuotaExceeded, KindOf(err))
}
