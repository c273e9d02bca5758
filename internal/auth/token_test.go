package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestTokenStore_Keyring(t *testing.T) {
	keyring.MockInit()
	s := NewTokenStore("walksim-test", "")

	_, err := s.Get()
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, s.Set("  secret-token \n"))
	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "secret-token", got)

	require.NoError(t, s.Clear())
	_, err = s.Get()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestTokenStore_FallbackWhenKeyringUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus: session bus not available"))
	path := filepath.Join(t.TempDir(), "secrets", "tokens.json")
	s := NewTokenStore("", path)

	require.NoError(t, s.Set("file-token"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "file-token", got)

	require.NoError(t, s.Clear())
	_, err = s.Get()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestTokenStore_NoFallbackConfigured(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus: session bus not available"))
	s := NewTokenStore("walksim-test", "")

	assert.Error(t, s.Set("token"))
	_, err := s.Get()
	assert.ErrorIs(t, err, ErrNoToken)
	assert.NoError(t, s.Clear())
}

func TestTokenStore_KeyringFailure(t *testing.T) {
	keyring.MockInitWithError(errors.New("permission denied"))
	s := NewTokenStore("walksim-test", filepath.Join(t.TempDir(), "tokens.json"))

	assert.Error(t, s.Set("token"))
	_, err := s.Get()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoToken)
}

func TestTokenStore_Generate(t *testing.T) {
	keyring.MockInit()
	s := NewTokenStore("walksim-test", "")

	token, err := s.Generate()
	require.NoError(t, err)
	assert.Len(t, token, 64)

	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, token, got)
}

func TestSetEmpty(t *testing.T) {
	keyring.MockInit()
	assert.Error(t, NewTokenStore("walksim-test", "").Set("   "))
}

func TestEqualAndMask(t *testing.T) {
	assert.True(t, Equal("abc", "abc"))
	assert.False(t, Equal("abc", "abd"))
	assert.False(t, Equal("", "abc"))

	assert.Equal(t, "****cdef", Mask("1234cdef"))
	assert.Equal(t, "***", Mask("abc"))
	assert.Equal(t, "", Mask(""))
}
