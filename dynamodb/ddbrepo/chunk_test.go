package ddbrepo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	items := make([]int, 30)
	for i := range items {
		items[i] = i
	}

	chunks := chunk(items, 25)
	require.Len(t, chunks, 2)
	require.Len(t, chunks[0], 25)
	require.Len(t, chunks[1], 5)
	require.Equal(t, 0, chunks[0][0])
	require.Equal(t, 24, chunks[0][24])
	require.Equal(t, 25, chunks[1][0])
	require.Equal(t, 29, chunks[1][4])

	require.Nil(t, chunk([]int{}, 25))
	require.Len(t, chunk(items[:25], 25), 1)
	require.Len(t, chunk(items[:26], 25), 2)

	require.Panics(t, func() { chunk(items, 0) })
}

func TestExponentialBackoff(t *testing.T) {
	backoff := ExponentialBackoff(50*time.Millisecond, 2.0, 5*time.Second)

	for attempt := 0; attempt < 20; attempt++ {
		d := backoff(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 5*time.Second)
	}

	// Negative attempts clamp to the base window.
	require.LessOrEqual(t, backoff(-1), 50*time.Millisecond)
}
