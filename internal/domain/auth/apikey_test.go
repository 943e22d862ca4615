package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockKeyRepo struct {
	byHash map[string]*Identity
}

func (m *mockKeyRepo) FindByHash(_ context.Context, hash string) (*Identity, error) {
	id, ok := m.byHash[hash]
	if !ok {
		return nil, ErrUnauthorized
	}
	return id, nil
}

func newAuthenticatorWithKey(t *testing.T, raw, userID string) *Authenticator {
	t.Helper()
	a := NewAuthenticator(&mockKeyRepo{byHash: map[string]*Identity{}}, []byte("test-pepper"))
	hash := a.HashKey(raw)
	a.keys.(*mockKeyRepo).byHash[hash] = &Identity{
		UserID:  userID,
		KeyID:   "k1",
		KeyHash: hash,
		Name:    "test key",
	}
	return a
}

func TestAuthenticate_ValidKey(t *testing.T) {
	a := newAuthenticatorWithKey(t, "secret-key", "u1")

	id, err := a.Authenticate(context.Background(), "secret-key")

	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
}

func TestAuthenticate_UnknownKey(t *testing.T) {
	a := newAuthenticatorWithKey(t, "secret-key", "u1")

	_, err := a.Authenticate(context.Background(), "wrong-key")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticate_EmptyKey(t *testing.T) {
	a := newAuthenticatorWithKey(t, "secret-key", "u1")

	_, err := a.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticate_PepperChangesHash(t *testing.T) {
	a1 := NewAuthenticator(nil, []byte("pepper-one"))
	a2 := NewAuthenticator(nil, []byte("pepper-two"))

	assert.NotEqual(t, a1.HashKey("same-key"), a2.HashKey("same-key"))
}
