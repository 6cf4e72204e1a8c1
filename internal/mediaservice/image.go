package mediaservice

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// normaliseImage applies the EXIF orientation, caps the width at MaxImageWidth and re-encodes
// the image, which also drops its metadata.
func normaliseImage(data []byte, format string) ([]byte, error) {
	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if img.Bounds().Dx() > MaxImageWidth {
		img = imaging.Resize(img, MaxImageWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	err = imaging.Encode(&buf, img, f, imaging.JPEGQuality(90))
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return buf.Bytes(), nil
}
