// Package imageproc prepares photos for upload to the analysis service.
package imageproc

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

var ErrProcessing = errors.New("image processing failed")

// Preset bounds the output box and JPEG quality (1-100).
type Preset struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

var (
	Default = Preset{MaxWidth: 800, MaxHeight: 800, Quality: 70}
	High    = Preset{MaxWidth: 1200, MaxHeight: 1200, Quality: 80}
	Low     = Preset{MaxWidth: 600, MaxHeight: 600, Quality: 50}
)

// PresetByName resolves "default", "high" or "low". Unknown names fall back to Default.
func PresetByName(name string) Preset {
	switch name {
	case "high":
		return High
	case "low":
		return Low
	default:
		return Default
	}
}

// Compress decodes data, shrinks it into the preset box keeping the aspect
// ratio and re-encodes it as JPEG. Images already inside the box keep their size.
func Compress(data []byte, p Preset) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(ErrProcessing, "%v", err)
	}

	b := img.Bounds()
	if b.Dx() > p.MaxWidth || b.Dy() > p.MaxHeight {
		img = imaging.Fit(img, p.MaxWidth, p.MaxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.Quality)); err != nil {
		return nil, errors.Wrapf(ErrProcessing, "%v", err)
	}
	return buf.Bytes(), nil
}

// CompressToBase64 is Compress followed by standard base64 encoding.
func CompressToBase64(data []byte, p Preset) (string, error) {
	out, err := Compress(data, p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// Validate reports whether data decodes as a supported image.
func Validate(data []byte) error {
	if len(data) == 0 {
		return errors.Wrap(ErrProcessing, "empty image")
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return errors.Wrapf(ErrProcessing, "%v", err)
	}
	return nil
}
