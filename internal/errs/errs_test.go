package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Unauthenticated("no token"), http.StatusUnauthorized},
		{Forbidden("nope"), http.StatusForbidden},
		{NotFound("Project not found"), http.StatusNotFound},
		{Invalid("bad assignee"), http.StatusBadRequest},
		{Internal("Server Error", errors.New("conn reset")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", Forbidden("x")), http.StatusForbidden},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Status(tc.err), tc.err.Error())
	}
}

func TestMessageHidesUnclassified(t *testing.T) {
	assert.Equal(t, "Server Error", Message(errors.New("pq: connection refused")))
	assert.Equal(t, "Task not found", Message(NotFound("Task not found")))
}

func TestSentinelMatching(t *testing.T) {
	sentinel := Unauthenticated("Invalid token")
	wrapped := fmt.Errorf("verify: %w", Unauthenticated("Invalid token"))

	assert.ErrorIs(t, wrapped, sentinel)
	assert.NotErrorIs(t, wrapped, Unauthenticated("User not found"))
	assert.True(t, IsKind(wrapped, KindUnauthenticated))
}
