package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanDimensions(t *testing.T) {
	tests := []struct {
		name     string
		width    int
		height   int
		maxShort int
		maxLong  int
		expectW  int
		expectH  int
	}{
		{
			name:  "Landscape exceeding both limits",
			width: 3000, height: 2000,
			maxShort: 768, maxLong: 1568,
			// scale = min(768/2000, 1568/3000) = 0.384
			expectW: 1152, expectH: 768,
		},
		{
			name:  "Portrait exceeding both limits",
			width: 2000, height: 3000,
			maxShort: 768, maxLong: 1568,
			expectW: 768, expectH: 1152,
		},
		{
			name:  "Already within limits",
			width: 500, height: 400,
			maxShort: 768, maxLong: 1568,
			expectW: 500, expectH: 400,
		},
		{
			name:  "Exactly at both limits",
			width: 1568, height: 768,
			maxShort: 768, maxLong: 1568,
			expectW: 1568, expectH: 768,
		},
		{
			name:  "Long side only exceeds",
			width: 1600, height: 768,
			maxShort: 768, maxLong: 1568,
			// scale = 1568/1600 = 0.98
			expectW: 1568, expectH: 753,
		},
		{
			name:  "Square counts as portrait",
			width: 2000, height: 2000,
			maxShort: 768, maxLong: 1568,
			expectW: 768, expectH: 768,
		},
		{
			name:  "Extreme aspect ratio",
			width: 10000, height: 10,
			maxShort: 768, maxLong: 1568,
			// scale = 1568/10000 = 0.1568
			expectW: 1568, expectH: 2,
		},
		{
			name:  "Dimensions clamp to one pixel",
			width: 20000, height: 1,
			maxShort: 768, maxLong: 1568,
			expectW: 1568, expectH: 1,
		},
		{
			name:  "Tiny image untouched",
			width: 1, height: 1,
			maxShort: 768, maxLong: 1568,
			expectW: 1, expectH: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := planDimensions(tt.width, tt.height, tt.maxShort, tt.maxLong)
			assert.Equal(t, tt.expectW, w)
			assert.Equal(t, tt.expectH, h)
		})
	}
}

func TestPlanDimensionsNeverUpscales(t *testing.T) {
	for _, dims := range [][2]int{{100, 100}, {768, 768}, {1, 500}, {767, 1567}} {
		w, h := planDimensions(dims[0], dims[1], 768, 1568)
		assert.LessOrEqual(t, w, dims[0])
		assert.LessOrEqual(t, h, dims[1])
	}
}

func TestPlanDimensionsPreservesAspectRatio(t *testing.T) {
	w, h := planDimensions(3000, 2000, 768, 1568)
	assert.InDelta(t, 3000.0/2000.0, float64(w)/float64(h), 0.01)
}

func TestPlanDimensionsExported(t *testing.T) {
	w, h := PlanDimensions(3000, 2000, DefaultOptions())
	assert.Equal(t, 1152, w)
	assert.Equal(t, 768, h)
}
