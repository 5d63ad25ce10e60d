package pipeline

import (
	"image-normalizer-go/internal/config"
	"image-normalizer-go/internal/normalizer"
)

// CompressionOptions maps the compression config section onto
// normalizer options.
func CompressionOptions(c config.CompressionConfig) normalizer.Options {
	return normalizer.Options{
		MaxLongSide:    c.MaxLongSide,
		MaxShortSide:   c.MaxShortSide,
		MaxSizeBytes:   c.MaxSizeBytes,
		MimeType:       c.MimeType,
		InitialQuality: c.InitialQuality,
		MinQuality:     c.MinQuality,
		QualityStep:    c.QualityStep,
	}
}
