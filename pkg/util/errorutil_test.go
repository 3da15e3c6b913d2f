package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	wrapped := fmt.Errorf("handler: %w", NewForbidden("nope"))
	assert.Equal(t, "FORBIDDEN", ToDomainError(wrapped).Code)

	assert.Equal(t, http.StatusNotFound, ToDomainError(pgx.ErrNoRows).HTTPStatus)
	assert.Equal(t, "TIMEOUT", ToDomainError(context.DeadlineExceeded).Code)

	de := ToDomainError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Equal(t, "internal server error: boom", de.Error())
}

func TestNewLoginFailed_Status(t *testing.T) {
	de := ToDomainError(NewLoginFailed("Invalid credentials", http.StatusUnauthorized, nil))
	assert.Equal(t, "LOGIN_FAILED", de.Code)
	assert.Equal(t, http.StatusUnauthorized, de.HTTPStatus)
	assert.Equal(t, "Invalid credentials", de.Error())

	assert.Equal(t, http.StatusConflict, ToDomainError(NewLoginFailed("taken", http.StatusConflict, nil)).HTTPStatus)
	assert.Equal(t, http.StatusUnauthorized, ToDomainError(NewLoginFailed("Login failed", 0, nil)).HTTPStatus)
	assert.Equal(t, http.StatusUnauthorized, ToDomainError(NewLoginFailed("Login failed", 503, nil)).HTTPStatus)
}
