package storage

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBlobRoundTrip(t *testing.T) {
	s := openTest(t)

	_, err := s.LoadBlob(0x08040000, 16)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.StoreBlob(0x08040000, []byte{1, 2, 3, 4, 5}))
	got, err := s.LoadBlob(0x08040000, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	got, err = s.LoadBlob(0x08040000, 64)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, got)

	require.NoError(t, s.StoreBlob(0x08040000, []byte{9}))
	got, err = s.LoadBlob(0x08040000, 64)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, got, "second store replaces the first")
}

func TestBlobFileDatabase(t *testing.T) {
	path := t.TempDir() + "/lock.db"
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.StoreBlob(7, []byte("abc")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.LoadBlob(7, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestSessions(t *testing.T) {
	s := openTest(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordSession(SessionRecord{
		ID: "a", Kind: "enroll", Samples: 80, Outcome: "saved",
		StartedAt: base, Duration: 6400 * time.Millisecond,
	}))
	require.NoError(t, s.RecordSession(SessionRecord{
		ID: "b", Kind: "authenticate", Samples: 75, Outcome: "rejected", Strategy: "correlation",
		Axes: [3]float64{0.9, math.NaN(), 0.1}, StartedAt: base.Add(time.Minute), Duration: 6500 * time.Millisecond,
	}))

	recs, err := s.RecentSessions(10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "b", recs[0].ID)
	assert.Equal(t, [3]float64{0.9, 0, 0.1}, recs[0].Axes)
	assert.True(t, recs[0].StartedAt.Equal(base.Add(time.Minute)))
	assert.Equal(t, 6500*time.Millisecond, recs[0].Duration)
	assert.Equal(t, "a", recs[1].ID)

	recs, err = s.RecentSessions(1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
