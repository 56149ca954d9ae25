package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/sid-bonds/internal/model"
)

func TestParser_RoundTrip(t *testing.T) {
	p := NewParser("secret")
	principal := model.Principal{UserID: uuid.New(), Roles: []string{model.RoleBondsUser}}

	token, err := p.Issue(principal, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	parsed, err := p.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, principal.UserID, parsed.UserID)
	assert.True(t, parsed.CanWrite())
	assert.False(t, parsed.IsManager())
}

func TestParser_Rejects(t *testing.T) {
	p := NewParser("secret")
	principal := model.Principal{UserID: uuid.New()}

	expired, err := p.Issue(principal, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	require.NoError(t, err)
	_, err = p.Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign, err := NewParser("other").Issue(principal, jwt.RegisteredClaims{})
	require.NoError(t, err)
	_, err = p.Parse(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = p.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
