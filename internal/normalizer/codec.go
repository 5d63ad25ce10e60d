package normalizer

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	_ "image/gif" // register GIF decoder

	_ "golang.org/x/image/webp" // register WebP decoder
)

// Supported mime types.
const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeGIF  = "image/gif"
	MimeWebP = "image/webp"
)

// ImagingCodec is the default Decoder/Encoder implementation, built on
// disintegration/imaging with chai2010/webp for WebP output.
type ImagingCodec struct{}

// NewImagingCodec returns a new ImagingCodec.
func NewImagingCodec() *ImagingCodec {
	return &ImagingCodec{}
}

// Decode decodes encoded image bytes into an image. Formats are those
// registered with the image package (JPEG, PNG, GIF, WebP, TIFF, BMP).
func (c *ImagingCodec) Decode(data []byte) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(data))
}

// Rasterize scales img to the given dimensions using Lanczos
// resampling. The result is a fresh pixel buffer even when the
// dimensions are unchanged.
func (c *ImagingCodec) Rasterize(img image.Image, width, height int) (image.Image, error) {
	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

// Encode encodes the raster at the given mime type and quality.
// Quality is a 0..1 fraction; formats without a quality knob ignore it.
func (c *ImagingCodec) Encode(raster image.Image, mimeType string, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch mimeType {
	case MimeWebP:
		err = webp.Encode(&buf, raster, &webp.Options{Quality: float32(quality * 100)})
	case MimeJPEG:
		err = imaging.Encode(&buf, raster, imaging.JPEG,
			imaging.JPEGQuality(int(math.Round(quality*100))))
	case MimePNG:
		err = imaging.Encode(&buf, raster, imaging.PNG)
	case MimeGIF:
		err = imaging.Encode(&buf, raster, imaging.GIF)
	default:
		return nil, fmt.Errorf("unsupported output mime type: %s", mimeType)
	}

	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
