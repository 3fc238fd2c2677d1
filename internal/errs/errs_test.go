package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIErrorMessage(t *testing.T) {
	assert.Equal(t, "invalid credentials", NewAPIError(401, "invalid credentials").Error())
	assert.Equal(t, "HTTP 500", NewAPIError(500, "").Error())
}

func TestIsUnauthorized(t *testing.T) {
	assert.True(t, IsUnauthorized(NewAPIError(http.StatusUnauthorized, "")))
	assert.True(t, IsUnauthorized(fmt.Errorf("call failed: %w", NewAPIError(401, "expired"))))
	assert.False(t, IsUnauthorized(NewAPIError(http.StatusForbidden, "")))
	assert.False(t, IsUnauthorized(errors.New("plain")))
	assert.False(t, IsUnauthorized(nil))
}

func TestTransportErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transportf("read frame: %w", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "transport:")
}

func TestValidationErrorFormat(t *testing.T) {
	assert.Equal(t, "email: failed \"required\" constraint", Validationf("email", "failed %q constraint", "required").Error())
	assert.Equal(t, "no chat selected", Validationf("", "no chat selected").Error())
}
