package gcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetOrCreate_CreatesOnce(t *testing.T) {
	c, err := New[string, int](8)
	require.NoError(t, err)

	calls := 0
	create := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := c.GetOrCreate("a", create)
	require.NoError(t, err)
	require.Equal(t, 42, v)

	v, err = c.GetOrCreate("a", create)
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, 1, calls)
}

func TestCleanup_EvictsStaleRounds(t *testing.T) {
	c, err := New[string, int](8)
	require.NoError(t, err)

	_, _ = c.GetOrCreate("stale", func() (int, error) { return 1, nil })

	c.NewRound()
	c.NewRound()
	_, _ = c.GetOrCreate("fresh", func() (int, error) { return 2, nil })

	evicted := c.Cleanup(1)
	require.Equal(t, 1, evicted)

	_, ok := c.Get("stale")
	require.False(t, ok)
	_, ok = c.Get("fresh")
	require.True(t, ok)
}

func TestGet_RefreshesRoundOnHit(t *testing.T) {
	c, err := New[string, int](8)
	require.NoError(t, err)

	_, _ = c.GetOrCreate("k", func() (int, error) { return 1, nil })
	c.NewRound()
	c.NewRound()
	_, ok := c.Get("k")
	require.True(t, ok)

	evicted := c.Cleanup(1)
	require.Equal(t, 0, evicted, "Get should have refreshed the round so the entry survives Cleanup")
}

func TestRemove(t *testing.T) {
	c, err := New[string, int](8)
	require.NoError(t, err)

	_, _ = c.GetOrCreate("k", func() (int, error) { return 1, nil })
	c.Remove("k")
	_, ok := c.Get("k")
	require.False(t, ok)
}
