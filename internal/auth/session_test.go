package auth

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndAuthenticateJWT(t *testing.T) {
	Init()

	token, err := CreateJWT("user-123")
	require.NoError(t, err)

	sub, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", sub)
}

func TestAuthenticateJWTRejectsGarbage(t *testing.T) {
	Init()

	_, err := AuthenticateJWT("not.a.token")
	assert.Error(t, err)
}

func TestInitFromPath(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "jwt_private.key")
	pubPath := filepath.Join(dir, "jwt_public.key")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o600))

	require.NoError(t, InitFromPath(privPath, pubPath))

	token, err := CreateJWT("user-456")
	require.NoError(t, err)
	sub, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user-456", sub)
}

func TestInitFromPathMissingFile(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, InitFromPath(filepath.Join(dir, "nope.key"), filepath.Join(dir, "nope.pub")))
}
