package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkarr/linkarr/internal/config"
	"github.com/linkarr/linkarr/internal/testutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(testutil.NewTestStore(t), testutil.NewTestLogger(t))
}

func TestGetSetRoundTrip(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.Set("alice", config.UserSettings{
		ScanInputPath: "/library",
		ClientOS:      "mac",
	}))

	got := svc.Get("alice")
	assert.Equal(t, "/library", got.ScanInputPath)
	assert.Equal(t, "mac", got.ClientOS)
}

func TestGetUnknownUserIsZero(t *testing.T) {
	svc := newTestService(t)
	assert.Equal(t, config.UserSettings{}, svc.Get("nobody"))
}

func TestEmptyUsernameIsDefaultProfile(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.Set("", config.UserSettings{ScanOutputPath: "/out"}))

	assert.Equal(t, "/out", svc.Get("").ScanOutputPath)
	assert.Equal(t, "/out", svc.Get("default").ScanOutputPath)
}

func TestAllSeedsDefaultProfile(t *testing.T) {
	svc := newTestService(t)

	all := svc.All()
	require.Len(t, all, 1)
	_, ok := all["default"]
	assert.True(t, ok)

	require.NoError(t, svc.Set("bob", config.UserSettings{ClientOS: "windows"}))
	all = svc.All()
	assert.Equal(t, "windows", all["bob"].ClientOS)
}
