package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionIssuerBindsRoundAndIdentity(t *testing.T) {
	issuer, err := NewSessionIssuer("secret")
	require.NoError(t, err)

	token, err := issuer.Issue("ada@example.com", "weekly", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, issuer.Authorize(token, "weekly", "ada@example.com"))
	require.ErrorIs(t, issuer.Authorize(token, "other", "ada@example.com"), ErrInvalidSession)
	require.ErrorIs(t, issuer.Authorize(token, "weekly", "bob@example.com"), ErrInvalidSession)

	other, err := NewSessionIssuer("different")
	require.NoError(t, err)
	require.ErrorIs(t, other.Authorize(token, "weekly", "ada@example.com"), ErrInvalidSession)
}

func TestSessionIssuerRejectsExpiredTokens(t *testing.T) {
	issuer, err := NewSessionIssuer("secret")
	require.NoError(t, err)

	token, err := issuer.Issue("ada@example.com", "weekly", time.Now().Add(time.Minute))
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = issuer.Parse(token)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestNewSessionIssuerRequiresSecret(t *testing.T) {
	_, err := NewSessionIssuer("")
	require.Error(t, err)
}
