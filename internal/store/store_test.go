package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextVersionStartsAtOne(t *testing.T) {
	s := New()
	l := s.Lock("k")
	defer l.Unlock()
	require.Equal(t, int64(1), s.NextVersion("k"))
}

func TestNextVersionAccountsForDirtyAndClean(t *testing.T) {
	s := New()
	l := s.Lock("k")
	defer l.Unlock()

	s.SetClean("k", 2, "v2")
	require.Equal(t, int64(3), s.NextVersion("k"))

	s.PutDirty("k", 5, "v5")
	require.Equal(t, int64(6), s.NextVersion("k"))
}

func TestPromoteDirtyMovesVersionToClean(t *testing.T) {
	s := New()
	l := s.Lock("k")
	defer l.Unlock()

	s.PutDirty("k", 1, "v1")
	require.True(t, s.HasDirty("k"))

	require.NoError(t, s.PromoteDirty("k", 1, "v1"))
	require.False(t, s.HasDirty("k"))

	c, ok := s.Clean("k")
	require.True(t, ok)
	require.Equal(t, Clean{Version: 1, Value: "v1"}, c)
}

func TestPromoteDirtyLeavesOtherVersionsDirty(t *testing.T) {
	s := New()
	l := s.Lock("k")
	defer l.Unlock()

	s.PutDirty("k", 1, "v1")
	s.PutDirty("k", 2, "v2")

	require.NoError(t, s.PromoteDirty("k", 1, "v1"))
	require.True(t, s.HasDirty("k"))
	_, stillDirty := s.DirtyValue("k", 2)
	require.True(t, stillDirty)
}

func TestPromoteDirtyErrorsOnUnknownVersion(t *testing.T) {
	s := New()
	l := s.Lock("k")
	defer l.Unlock()

	require.Error(t, s.PromoteDirty("k", 9, "v9"))
}

func TestLockIsPerKeyAndReused(t *testing.T) {
	s := New()
	l1 := s.Lock("k")
	l1.Unlock()
	l2 := s.Lock("k")
	defer l2.Unlock()
	require.Same(t, l1, l2)
}
