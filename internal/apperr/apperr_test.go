package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatchesThroughWrap(t *testing.T) {
	wrapped := Wrap(ErrRoomExpired, fmt.Errorf("store said no"))
	assert.True(t, errors.Is(wrapped, ErrRoomExpired))

	rewrapped := fmt.Errorf("joining room: %w", wrapped)
	assert.True(t, errors.Is(rewrapped, ErrRoomExpired))
	assert.False(t, errors.Is(rewrapped, ErrRoomFull))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("bad input"), http.StatusBadRequest},
		{ErrUnauthorized, http.StatusForbidden},
		{ErrRoomNotFound, http.StatusNotFound},
		{ErrRoomFull, http.StatusConflict},
		{Internal(fmt.Errorf("boom")), http.StatusInternalServerError},
		{fmt.Errorf("plain error"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HTTPStatus(c.err), "for %v", c.err)
	}
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeConflict, CodeOf(ErrAlreadyInRoom))
	assert.Equal(t, CodeNotFound, CodeOf(fmt.Errorf("get: %w", ErrMemberNotFound)))
	assert.Equal(t, CodeInternal, CodeOf(fmt.Errorf("plain error")))
}

func TestInternalHidesNothingFromUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Internal(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}
