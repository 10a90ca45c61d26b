package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodes(t *testing.T) {
	t.Run("wrapped error keeps code through fmt wrapping", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := fmt.Errorf("lookup principal: %w", Wrap(cause, CodeInternal, "principal lookup failed"))

		assert.True(t, HasCode(err, CodeInternal))
		assert.False(t, HasCode(err, CodeForbidden))
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "principal lookup failed", MessageOf(err))
	})

	t.Run("plain errors default to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
		assert.Equal(t, "", MessageOf(errors.New("boom")))
	})

	t.Run("status mapping", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, HTTPStatus(CodeUnauthorized))
		assert.Equal(t, http.StatusForbidden, HTTPStatus(CodeForbidden))
		assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(CodeRateLimited))
		assert.Equal(t, http.StatusLocked, HTTPStatus(CodeLockedOut))
		assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeInvalidInput))
		assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Code("unknown")))
	})
}
