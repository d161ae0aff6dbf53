// Package qr implements the standalone QR code generation endpoint.
package qr

import (
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	// DefaultSize is the image edge in pixels when the request doesn't
	// specify one.
	DefaultSize = 256
	// MinSize is the smallest image edge that can be requested.
	MinSize = 64
	// MaxSize bounds a single request.
	MaxSize = 1024
	// MaxTextLength bounds the encoded payload.
	MaxTextLength = 2048
)

var (
	// ErrEmptyText is returned when there is nothing to encode.
	ErrEmptyText = errors.New("qr text is empty")
	// ErrTextTooLong is returned when the payload exceeds MaxTextLength.
	ErrTextTooLong = errors.New("qr text too long")
	// ErrInvalidSize is returned when the requested size is out of range.
	ErrInvalidSize = errors.New("qr size out of range")
)

// Encoder renders text as PNG-encoded QR images.
type Encoder struct{}

// EncodePNG returns the PNG bytes for text rendered at the given edge size
// in pixels, using medium error correction.
func (Encoder) EncodePNG(text string, size int) ([]byte, error) {
	const op = "qr.Encoder.EncodePNG"

	if text == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyText)
	}
	if len(text) > MaxTextLength {
		return nil, fmt.Errorf("%s: %w", op, ErrTextTooLong)
	}
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidSize)
	}

	png, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encode qr image: %w", op, err)
	}

	return png, nil
}
