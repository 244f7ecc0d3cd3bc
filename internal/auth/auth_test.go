package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestAuthService() *Service {
	service := NewService("test-secret-key", time.Hour)
	service.Register(Account{
		APIKey:    "alice-key",
		APISecret: "alice-secret",
		Identity:  Identity{UserID: "alice", UserName: "Alice", Verified: true},
	})
	service.Register(Account{
		APIKey:    "admin-key",
		APISecret: "admin-secret",
		Identity:  Identity{UserID: "admin", UserName: "Admin", Verified: true, Admin: true},
	})
	return service
}

func TestGenerateToken_RoundTrip(t *testing.T) {
	service := newTestAuthService()

	token, err := service.GenerateToken(Credentials{APIKey: "alice-key", APISecret: "alice-secret"})
	require.NoError(t, err)
	require.NotEmpty(t, token.Token)
	require.WithinDuration(t, time.Now().Add(time.Hour), token.Expiration, 5*time.Second)

	identity, err := service.ValidateToken(token.Token)
	require.NoError(t, err)
	require.Equal(t, "alice", identity.UserID)
	require.Equal(t, "Alice", identity.UserName)
	require.True(t, identity.Verified)
	require.False(t, identity.Admin)
}

func TestGenerateToken_AdminClaims(t *testing.T) {
	service := newTestAuthService()

	token, err := service.GenerateToken(Credentials{APIKey: "admin-key", APISecret: "admin-secret"})
	require.NoError(t, err)

	identity, err := service.ValidateToken(token.Token)
	require.NoError(t, err)
	require.True(t, identity.Admin)
}

func TestGenerateToken_InvalidCredentials(t *testing.T) {
	service := newTestAuthService()

	tests := []struct {
		name  string
		creds Credentials
	}{
		{"unknown_key", Credentials{APIKey: "nobody-key", APISecret: "alice-secret"}},
		{"wrong_secret", Credentials{APIKey: "alice-key", APISecret: "wrong"}},
		{"empty", Credentials{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.GenerateToken(tc.creds)
			require.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestValidateToken_Rejections(t *testing.T) {
	service := newTestAuthService()

	_, err := service.ValidateToken("not-a-jwt")
	require.Error(t, err)

	// Tokens signed with a different secret must not validate.
	other := NewService("another-secret", time.Hour)
	other.Register(Account{
		APIKey:    "alice-key",
		APISecret: "alice-secret",
		Identity:  Identity{UserID: "alice", UserName: "Alice", Verified: true},
	})
	token, err := other.GenerateToken(Credentials{APIKey: "alice-key", APISecret: "alice-secret"})
	require.NoError(t, err)

	_, err = service.ValidateToken(token.Token)
	require.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	service := NewService("test-secret-key", -time.Minute)
	service.Register(Account{
		APIKey:    "alice-key",
		APISecret: "alice-secret",
		Identity:  Identity{UserID: "alice", UserName: "Alice", Verified: true},
	})

	token, err := service.GenerateToken(Credentials{APIKey: "alice-key", APISecret: "alice-secret"})
	require.NoError(t, err)

	_, err = service.ValidateToken(token.Token)
	require.Error(t, err)
}
