package normalizer

import "fmt"

// DecodeError reports that the input bytes could not be decoded as an
// image (malformed data or a format the decoder does not support).
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports that the rasterize/encode capability could not
// produce output for the requested format.
type EncodeError struct {
	MimeType string
	Quality  float64
	Err      error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s at quality %.2f: %v", e.MimeType, e.Quality, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
