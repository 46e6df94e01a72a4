package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/paramsearch/internal/space"
)

func resultWith(p space.Point, output, target float64) ShardResult {
	return ShardResult{Best: NewCandidate(p, output, target)}
}

func TestAggregateEmpty(t *testing.T) {
	_, err := Aggregate(nil)
	require.ErrorIs(t, err, ErrEmptyResult)
}

func TestAggregatePicksMinimalDistance(t *testing.T) {
	results := []ShardResult{
		resultWith(space.Point{0}, 90, 100),
		resultWith(space.Point{1}, 103, 100),
		resultWith(space.Point{2}, 120, 100),
	}
	best, err := Aggregate(results)
	require.NoError(t, err)
	assert.Equal(t, space.Point{1}, best.Point())
}

func TestAggregateTieKeepsFirst(t *testing.T) {
	results := []ShardResult{
		resultWith(space.Point{0}, 150, 100),
		resultWith(space.Point{1}, 95, 100),
		resultWith(space.Point{2}, 105, 100),
	}
	best, err := Aggregate(results)
	require.NoError(t, err)
	assert.Equal(t, space.Point{1}, best.Point())
}

func TestNaiveSearch(t *testing.T) {
	sp := testSpace(t, 3)
	best, err := NaiveSearch(sp, sumFunc(), 5)
	require.NoError(t, err)
	assert.Equal(t, space.Point{0, 0, 2, 3}, best.Point())
	assert.Zero(t, best.Distance())
}
