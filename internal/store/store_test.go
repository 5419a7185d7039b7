package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFreshStoreIsUnauthenticated(t *testing.T) {
	s := openTestStore(t)

	assert.Equal(t, Credential{}, s.Credential())
	assert.Nil(t, s.Identity())
}

func TestSetThenReadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	user := Identity{ID: "u1", Email: "user@example.com", CreatedAt: created}
	require.NoError(t, s.Set(Credential{AccessToken: "T1", RefreshToken: "R1"}, user))

	cred := s.Credential()
	assert.Equal(t, "T1", cred.AccessToken)
	assert.Equal(t, "R1", cred.RefreshToken)

	got := s.Identity()
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "user@example.com", got.Email)
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestSetSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(Credential{AccessToken: "T1"}, Identity{ID: "u1"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "T1", s.Credential().AccessToken)
	require.NotNil(t, s.Identity())
	assert.Equal(t, "u1", s.Identity().ID)
}

func TestClearRemovesEverything(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set(Credential{AccessToken: "T1", RefreshToken: "R1"}, Identity{ID: "u1"}))
	require.NoError(t, s.Clear())

	assert.Equal(t, Credential{}, s.Credential())
	assert.Nil(t, s.Identity())
}

func TestCorruptIdentityReadsAsAbsent(t *testing.T) {
	s := openTestStore(t)

	_, err := s.db.Exec(`INSERT OR REPLACE INTO session (key, value) VALUES (?, ?)`, slotUser, `{not json`)
	require.NoError(t, err)

	assert.Nil(t, s.Identity())
}

func TestIdentityWithoutIDOrEmailReadsAsAbsent(t *testing.T) {
	s := openTestStore(t)

	_, err := s.db.Exec(`INSERT OR REPLACE INTO session (key, value) VALUES (?, ?)`, slotUser, `{}`)
	require.NoError(t, err)

	assert.Nil(t, s.Identity())
}
