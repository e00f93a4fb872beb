package cocogt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolygonMaskSquare(t *testing.T) {
	// An axis-aligned 6x6 square at (2,2) in a 10x10 image.
	ring := []float64{2, 2, 8, 2, 8, 8, 2, 8}
	mask := PolygonMask([][]float64{ring}, 10, 10)

	assert.InDelta(t, 36, mask.Count(), 6)

	x0, y0, x1, y1, ok := mask.Bounds()
	require.True(t, ok)
	assert.InDelta(t, 2, x0, 1)
	assert.InDelta(t, 2, y0, 1)
	assert.InDelta(t, 8, x1, 1)
	assert.InDelta(t, 8, y1, 1)
}

func TestPolygonMaskTriangle(t *testing.T) {
	// A right triangle covering half of the image; area 50.
	ring := []float64{0, 0, 10, 0, 0, 10}
	mask := PolygonMask([][]float64{ring}, 10, 10)
	assert.InDelta(t, 50, mask.Count(), 8)
}

func TestPolygonMaskUnion(t *testing.T) {
	// Two disjoint unit-area squares of one annotation are unioned.
	rings := [][]float64{
		{0, 0, 2, 0, 2, 2, 0, 2},
		{5, 5, 7, 5, 7, 7, 5, 7},
	}
	mask := PolygonMask(rings, 10, 10)
	assert.InDelta(t, 8, mask.Count(), 3)

	single := PolygonMask(rings[:1], 10, 10)
	for i := range single.Pix {
		if single.Pix[i] == 1 {
			assert.EqualValues(t, 1, mask.Pix[i], "union must contain each ring")
		}
	}
}

func TestPolygonMaskDegenerate(t *testing.T) {
	// Fewer than three vertices encloses no area.
	mask := PolygonMask([][]float64{{1, 1, 5, 5}}, 10, 10)
	assert.Equal(t, 0, mask.Count())

	mask = PolygonMask(nil, 4, 4)
	assert.Equal(t, 0, mask.Count())
}
