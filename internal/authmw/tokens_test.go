package authmw

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyri56xcaesar/tasktracker/internal/models"
)

func TestIssueAndVerify(t *testing.T) {
	iss := NewIssuer("secret", "tasktracker", time.Hour)
	u := &models.User{ID: "u1", Name: "Ann", Email: "ann@example.com", Role: models.RoleProjectManager}

	tok, exp, err := iss.Issue(u)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleProjectManager, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestVerifyRejects(t *testing.T) {
	iss := NewIssuer("secret", "tasktracker", time.Hour)
	u := &models.User{ID: "u1", Role: models.RoleTeamMember}

	t.Run("wrong secret", func(t *testing.T) {
		tok, _, err := NewIssuer("other", "tasktracker", time.Hour).Issue(u)
		require.NoError(t, err)
		_, err = iss.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		tok, _, err := NewIssuer("secret", "someone-else", time.Hour).Issue(u)
		require.NoError(t, err)
		_, err = iss.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		old := NewIssuer("secret", "tasktracker", time.Hour)
		old.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		tok, _, err := old.Issue(u)
		require.NoError(t, err)

		_, err = iss.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.True(t, IsExpired(err))
	})

	t.Run("none algorithm", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "tasktracker",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			UserID: "u1",
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = iss.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := iss.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
