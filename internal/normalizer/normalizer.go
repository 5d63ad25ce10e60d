package normalizer

import (
	"context"
	"image"
)

// SourceImage is an opaque binary resource handed in by the caller.
// It is never mutated by the normalizer.
type SourceImage struct {
	Data     []byte
	MimeType string
	Name     string
}

// OutputImage is the normalized resource returned to the caller.
type OutputImage struct {
	Data     []byte
	MimeType string
	Name     string
}

// Options controls the resize-and-recompress behavior.
type Options struct {
	// MaxLongSide is the upper bound on the larger of width/height.
	MaxLongSide int
	// MaxShortSide is the upper bound on the smaller of width/height.
	MaxShortSide int
	// MaxSizeBytes is the upper bound on the final encoded size.
	MaxSizeBytes int64
	// MimeType is the target encoding format.
	MimeType string
	// InitialQuality is the quality of the first encode attempt (0..1].
	InitialQuality float64
	// MinQuality is the lowest quality the loop will attempt.
	MinQuality float64
	// QualityStep is the fixed decrement applied between attempts.
	// Must be > 0 for the loop to terminate.
	QualityStep float64
}

// DefaultOptions returns the default normalization options.
func DefaultOptions() Options {
	return Options{
		MaxLongSide:    1568,
		MaxShortSide:   768,
		MaxSizeBytes:   19 * 1024 * 1024,
		MimeType:       MimeWebP,
		InitialQuality: 0.92,
		MinQuality:     0.5,
		QualityStep:    0.07,
	}
}

// Result describes the outcome of normalizing a single image.
type Result struct {
	Image OutputImage

	// Width and Height are the output pixel dimensions.
	// Zero when the input was passed through undecoded.
	Width  int
	Height int

	// Quality is the encode quality of the returned bytes.
	Quality float64

	// Attempts is the number of rasterize+encode passes performed.
	Attempts int

	// PassThrough reports that the input was not an image and was
	// returned unchanged.
	PassThrough bool
}

// Normalizer normalizes an image resource to fit dimension and byte
// budgets.
type Normalizer interface {
	Normalize(ctx context.Context, src SourceImage) (*Result, error)
}

// Decoder turns encoded image bytes into a pixel-addressable image.
type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// Encoder rasterizes a decoded image to target dimensions and encodes
// the raster into a byte buffer at a given quality.
type Encoder interface {
	Rasterize(img image.Image, width, height int) (image.Image, error)
	Encode(raster image.Image, mimeType string, quality float64) ([]byte, error)
}
