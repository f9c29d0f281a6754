package dataset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"thunderfit/internal/errs"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestNewPartitionsEvenly(t *testing.T) {
	c := New(seq(10), Options{Partitions: 3, Workers: 2})
	require.Equal(t, 3, c.Partitions())
	require.Equal(t, 10, c.Count())
	require.Equal(t, seq(10), c.Collect())
}

func TestNewMorePartitionsThanItems(t *testing.T) {
	c := New(seq(2), Options{Partitions: 8})
	require.Equal(t, 2, c.Partitions())

	empty := New([]int(nil), Options{Partitions: 4})
	require.Equal(t, 1, empty.Partitions())
	require.Equal(t, 0, empty.Count())
}

func TestMapPreservesCountAndOrder(t *testing.T) {
	ctx := context.Background()
	c := New(seq(100), Options{Partitions: 7, Workers: 4})

	squared, err := Map(ctx, c, func(v int) int { return v * v })
	require.NoError(t, err)
	require.Equal(t, 100, squared.Count())

	got := squared.Collect()
	for i, v := range got {
		require.Equal(t, (i+1)*(i+1), v)
	}
}

func TestFilter(t *testing.T) {
	ctx := context.Background()
	c := New(seq(20), Options{Partitions: 3, Workers: 3})

	even, err := c.Filter(ctx, func(v int) bool { return v%2 == 0 })
	require.NoError(t, err)
	require.Equal(t, 10, even.Count())
	require.Equal(t, []int{2, 4, 6, 8, 10, 12, 14, 16, 18, 20}, even.Collect())
}

func TestReduceMatchesSerialSum(t *testing.T) {
	ctx := context.Background()
	for _, partitions := range []int{1, 2, 5, 13} {
		c := New(seq(1000), Options{Partitions: partitions, Workers: 4})
		sum, err := Reduce(ctx, c, func(a, b int) int { return a + b })
		require.NoError(t, err)
		require.Equal(t, 500500, sum)
	}
}

func TestReduceFloatDeterministic(t *testing.T) {
	ctx := context.Background()
	items := make([]float64, 997)
	for i := range items {
		items[i] = 1.0 / float64(i+1)
	}
	add := func(a, b float64) float64 { return a + b }

	first, err := Reduce(ctx, New(items, Options{Partitions: 9, Workers: 8}), add)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Reduce(ctx, New(items, Options{Partitions: 9, Workers: 3}), add)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestReduceSkipsEmptyPartitions(t *testing.T) {
	ctx := context.Background()
	c := New(seq(12), Options{Partitions: 4})
	only, err := c.Filter(ctx, func(v int) bool { return v == 12 })
	require.NoError(t, err)

	got, err := Reduce(ctx, only, func(a, b int) int { return a + b })
	require.NoError(t, err)
	require.Equal(t, 12, got)
}

func TestReduceEmpty(t *testing.T) {
	_, err := Reduce(context.Background(), New([]int{}, Options{}), func(a, b int) int { return a + b })
	require.ErrorIs(t, err, errs.ErrEmptyCollection)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Map(ctx, New(seq(10), Options{Partitions: 2}), func(v int) int { return v })
	require.ErrorIs(t, err, context.Canceled)
}
