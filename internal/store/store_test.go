package store

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(t.TempDir(), zerolog.New(zerolog.NewTestWriter(t)))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSetGet(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.Set(MapEnrich, "key1", record{Name: "a", Count: 2}))

	var got record
	ok, err := st.Get(MapEnrich, "key1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, record{Name: "a", Count: 2}, got)
}

func TestGetMissing(t *testing.T) {
	st := openTestStore(t)

	var got record
	ok, err := st.Get(MapEnrich, "nope", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetOverwrites(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.Set(MapEnrich, "k", record{Count: 1}))
	require.NoError(t, st.Set(MapEnrich, "k", record{Count: 2}))

	var got record
	_, err := st.Get(MapEnrich, "k", &got)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count)
}

func TestMapsAreIndependent(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.Set(MapEnrich, "k", record{Count: 1}))

	var got record
	ok, err := st.Get(MapParsed, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok, "key must not leak across maps")
}

func TestDelete(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.Set(MapImages, "k", record{}))
	require.NoError(t, st.Delete(MapImages, "k"))

	var got record
	ok, err := st.Get(MapImages, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting a missing key is not an error.
	assert.NoError(t, st.Delete(MapImages, "k"))
}

func TestKeys(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.Set(MapScans, "b", record{}))
	require.NoError(t, st.Set(MapScans, "a", record{}))

	keys, err := st.Keys(MapScans)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)
}

func TestLoadReplaceMap(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, ReplaceMap(st, MapUsers, map[string]record{
		"u1": {Count: 1},
		"u2": {Count: 2},
	}))

	got, err := LoadMap[record](st, MapUsers)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, got["u1"].Count)

	// Replace drops keys absent from the new map.
	require.NoError(t, ReplaceMap(st, MapUsers, map[string]record{"u3": {Count: 3}}))
	got, err = LoadMap[record](st, MapUsers)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 3, got["u3"].Count)
}

func TestDebouncer(t *testing.T) {
	fired := make(chan struct{}, 4)
	d := NewDebouncer(30*time.Millisecond, func() { fired <- struct{}{} })

	d.Schedule()
	d.Schedule()
	d.Schedule()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("debounced flush never fired")
	}
	select {
	case <-fired:
		t.Fatal("coalesced schedules fired more than once")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncerFlush(t *testing.T) {
	fired := make(chan struct{}, 1)
	d := NewDebouncer(time.Hour, func() { fired <- struct{}{} })

	// Flush with nothing pending is a no-op.
	d.Flush()
	select {
	case <-fired:
		t.Fatal("flush fired without a pending write")
	default:
	}

	d.Schedule()
	d.Flush()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("flush did not run the pending write")
	}
}
