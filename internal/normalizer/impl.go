package normalizer

import (
	"context"
	"strings"
)

// qualityEpsilon guards the quality-floor comparison against float
// drift from repeated subtraction, so the attempt bound stays at
// ceil((InitialQuality-MinQuality)/QualityStep)+1.
const qualityEpsilon = 1e-6

// ImageNormalizer resizes an image to fit short/long side limits and
// re-encodes it at decreasing quality until it fits the byte budget or
// the quality floor is reached.
type ImageNormalizer struct {
	opts    Options
	decoder Decoder
	encoder Encoder
}

// New returns an ImageNormalizer using the provided decode and encode
// capabilities.
func New(opts Options, decoder Decoder, encoder Encoder) *ImageNormalizer {
	return &ImageNormalizer{
		opts:    opts,
		decoder: decoder,
		encoder: encoder,
	}
}

// NewDefault returns an ImageNormalizer backed by the default
// ImagingCodec.
func NewDefault(opts Options) *ImageNormalizer {
	codec := NewImagingCodec()
	return New(opts, codec, codec)
}

// Normalize runs the full pipeline: pass-through check, decode,
// dimension planning, iterative encode, output naming.
//
// Non-image input (declared mime type not starting "image/") is
// returned unchanged with no decode or encode calls. If the byte
// budget is still exceeded at the quality floor, the oversized buffer
// is returned without error (best effort).
func (n *ImageNormalizer) Normalize(ctx context.Context, src SourceImage) (*Result, error) {
	if !strings.HasPrefix(src.MimeType, "image/") {
		return &Result{
			Image: OutputImage{
				Data:     src.Data,
				MimeType: src.MimeType,
				Name:     src.Name,
			},
			PassThrough: true,
		}, nil
	}

	img, err := n.decoder.Decode(src.Data)
	if err != nil {
		return nil, &DecodeError{Name: src.Name, Err: err}
	}

	bounds := img.Bounds()
	width, height := planDimensions(bounds.Dx(), bounds.Dy(),
		n.opts.MaxShortSide, n.opts.MaxLongSide)

	quality := n.opts.InitialQuality
	attempts := 0
	var encoded []byte
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raster, err := n.encoder.Rasterize(img, width, height)
		if err != nil {
			return nil, &EncodeError{MimeType: n.opts.MimeType, Quality: quality, Err: err}
		}
		encoded, err = n.encoder.Encode(raster, n.opts.MimeType, quality)
		if err != nil {
			return nil, &EncodeError{MimeType: n.opts.MimeType, Quality: quality, Err: err}
		}
		attempts++

		if int64(len(encoded)) <= n.opts.MaxSizeBytes ||
			quality-n.opts.MinQuality <= qualityEpsilon {
			break
		}
		quality -= n.opts.QualityStep
	}

	return &Result{
		Image: OutputImage{
			Data:     encoded,
			MimeType: n.opts.MimeType,
			Name:     RenameForMime(src.Name, n.opts.MimeType),
		},
		Width:    width,
		Height:   height,
		Quality:  quality,
		Attempts: attempts,
	}, nil
}
