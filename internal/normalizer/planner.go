package normalizer

import "math"

// PlanDimensions reports the output dimensions the normalizer would
// choose for an image of the given size under opts.
func PlanDimensions(width, height int, opts Options) (int, int) {
	return planDimensions(width, height, opts.MaxShortSide, opts.MaxLongSide)
}

// planDimensions computes target dimensions that fit both the
// short-side and long-side limits while preserving aspect ratio.
// Images already within both limits keep their original dimensions;
// the planner never upscales.
func planDimensions(width, height, maxShortSide, maxLongSide int) (int, int) {
	shortSide, longSide := width, height
	if width > height {
		shortSide, longSide = height, width
	}

	if shortSide <= maxShortSide && longSide <= maxLongSide {
		return width, height
	}

	scale := math.Min(
		float64(maxShortSide)/float64(shortSide),
		float64(maxLongSide)/float64(longSide),
	)

	w := int(math.Round(float64(width) * scale))
	h := int(math.Round(float64(height) * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
