// Package qrcode renders text into PNG QR codes.
package qrcode

import (
	"encoding/base64"
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	ErrEmptyContent   = errors.New("qrcode.errors.empty_content")
	ErrInvalidSize    = errors.New("qrcode.errors.invalid_size")
	ErrFailedToEncode = errors.New("qrcode.errors.failed_to_encode")
)

const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 2048
)

// RecoveryLevel is the share of the symbol that may be damaged and still scan.
type RecoveryLevel = skipqrcode.RecoveryLevel

const (
	RecoveryLow     = skipqrcode.Low
	RecoveryMedium  = skipqrcode.Medium
	RecoveryHigh    = skipqrcode.High
	RecoveryHighest = skipqrcode.Highest
)

type options struct {
	size          int
	level         RecoveryLevel
	disableBorder bool
}

type Option func(*options)

// WithSize sets the image width and height in pixels.
func WithSize(px int) Option {
	return func(o *options) { o.size = px }
}

func WithRecoveryLevel(l RecoveryLevel) Option {
	return func(o *options) { o.level = l }
}

// WithoutBorder drops the quiet zone around the symbol.
func WithoutBorder() Option {
	return func(o *options) { o.disableBorder = true }
}

// Generate encodes content as a PNG image.
func Generate(content string, opts ...Option) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	o := options{size: DefaultSize, level: RecoveryMedium}
	for _, opt := range opts {
		opt(&o)
	}
	if o.size < MinSize || o.size > MaxSize {
		return nil, ErrInvalidSize
	}

	qr, err := skipqrcode.New(content, o.level)
	if err != nil {
		return nil, errors.Join(ErrFailedToEncode, err)
	}
	qr.DisableBorder = o.disableBorder

	png, err := qr.PNG(o.size)
	if err != nil {
		return nil, errors.Join(ErrFailedToEncode, err)
	}
	return png, nil
}

// DataURI encodes content as a "data:image/png;base64," URI for inline <img> use.
func DataURI(content string, opts ...Option) (string, error) {
	png, err := Generate(content, opts...)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
