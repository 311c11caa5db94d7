package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionKeyPersists(t *testing.T) {
	dir := t.TempDir()

	key, err := SessionKey(dir)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	again, err := SessionKey(dir)
	require.NoError(t, err)
	assert.Equal(t, key, again, "key must survive reloads")
}

func TestSessionKeyIndependentPerDir(t *testing.T) {
	a, err := SessionKey(t.TempDir())
	require.NoError(t, err)
	b, err := SessionKey(t.TempDir())
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
