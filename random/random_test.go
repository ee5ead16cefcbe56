package random

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixed(t *testing.T) {
	src := Fixed{Value: 777}
	require.Equal(t, uint64(777), src.Next())
	require.Equal(t, uint64(777), src.Next())
}

func TestStream_Deterministic(t *testing.T) {
	a, err := NewStream([]byte("drand-round-42"))
	require.NoError(t, err)
	b, err := NewStream([]byte("drand-round-42"))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.Equal(t, a.Next(), b.Next())
	}

	c, err := NewStream([]byte("drand-round-43"))
	require.NoError(t, err)
	same := true
	for i := 0; i < 10; i++ {
		if a.Next() != c.Next() {
			same = false
		}
	}
	require.False(t, same)
}

func TestStream_EmptySeed(t *testing.T) {
	_, err := NewStream(nil)
	require.Error(t, err)
}

func TestCrypto(t *testing.T) {
	src := Crypto{}
	seen := map[uint64]bool{}
	for i := 0; i < 8; i++ {
		seen[src.Next()] = true
	}
	// Eight draws from 64 bits of system randomness do not collide.
	require.True(t, len(seen) > 1)
}
