package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-friendcare/internal/friend"
	"github.com/tartampluch/go-friendcare/internal/reminder"
)

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "nested", "store.json"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.Empty(t, s.Friends())
	assert.Empty(t, s.Triggers())
}

func TestOpen_CorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestRoundTripThroughClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := Open(path)
	require.NoError(t, err)

	next := time.Date(2025, 6, 25, 9, 0, 0, 0, time.UTC)
	s.SetFriends([]friend.Friend{{ID: "F1", Name: "Mina", Recurrence: friend.RecurrenceBiweekly, NextContactAt: &next}})
	s.SetTriggers([]reminder.Trigger{{ID: "F1", FriendID: "F1", Kind: reminder.KindRegular, FireAt: next}})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	friends := reopened.Friends()
	require.Len(t, friends, 1)
	assert.Equal(t, friend.RecurrenceBiweekly, friends[0].Recurrence)
	assert.True(t, friends[0].NextContactAt.Equal(next))

	triggers := reopened.Triggers()
	require.Len(t, triggers, 1)
	assert.True(t, triggers[0].FireAt.Equal(next))
}

func TestDebouncedSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := Open(path)
	require.NoError(t, err)
	s.delay = 10 * time.Millisecond
	defer func() { _ = s.Close() }()

	s.SetFriends([]friend.Friend{{ID: "F1"}})
	s.SetFriends([]friend.Friend{{ID: "F1"}, {ID: "F2"}})

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && len(data) > 0
	}, time.Second, 10*time.Millisecond)
}

func TestClear(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	s.SetFriends([]friend.Friend{{ID: "F1"}})
	s.Clear()
	assert.Empty(t, s.Friends())
}

func TestOwner_PersistsAndClears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := Open(path)
	require.NoError(t, err)

	assert.Empty(t, s.Owner())
	s.SetOwner("U1")
	s.SetFriends([]friend.Friend{{ID: "F1"}})
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	assert.Equal(t, "U1", reopened.Owner())

	reopened.Clear()
	assert.Empty(t, reopened.Owner())
	assert.Empty(t, reopened.Friends())
}

func TestCopiesAreIsolated(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	in := []friend.Friend{{ID: "F1", Name: "Mina"}}
	s.SetFriends(in)
	in[0].Name = "changed"

	out := s.Friends()
	out[0].Name = "also changed"
	assert.Equal(t, "Mina", s.Friends()[0].Name)
}
