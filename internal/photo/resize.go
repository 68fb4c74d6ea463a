package photo

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"math"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/fpang/tripstory/internal/apperr"
	"github.com/fpang/tripstory/internal/journey"
)

// DefaultMaxDimension is the longest edge sent to image-generation models.
const DefaultMaxDimension = 2048

// jpegQuality is used when a downscaled photo is re-encoded.
const jpegQuality = 85

// Downscale shrinks p so neither edge exceeds maxDimension, re-encoding it as
// JPEG. Photos already within bounds are returned unchanged.
func Downscale(p journey.Photo, maxDimension int) (journey.Photo, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(p.Data))
	if err != nil {
		return journey.Photo{}, apperr.Validation("downscale photo", fmt.Errorf("%w: %v", ErrNotImage, err))
	}
	if cfg.Width <= maxDimension && cfg.Height <= maxDimension {
		return p, nil
	}

	img, _, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return journey.Photo{}, apperr.Validation("downscale photo", fmt.Errorf("failed to decode image: %w", err))
	}

	bounds := img.Bounds()
	newWidth, newHeight := scaledDimensions(bounds.Dx(), bounds.Dy(), maxDimension)
	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return journey.Photo{}, fmt.Errorf("failed to encode resized photo: %w", err)
	}

	log.Debug().
		Int("orig_width", bounds.Dx()).
		Int("orig_height", bounds.Dy()).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Int("orig_size", len(p.Data)).
		Int("output_size", buf.Len()).
		Msg("Photo downscaled")

	return journey.Photo{Data: buf.Bytes(), MIMEType: "image/jpeg"}, nil
}

// scaledDimensions keeps the aspect ratio while fitting maxDimension.
func scaledDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}
	if width > height {
		return maxDimension, int(float64(height) * float64(maxDimension) / float64(width))
	}
	return int(float64(width) * float64(maxDimension) / float64(height)), maxDimension
}

// Prepare validates and downscales an uploaded photo, logging its EXIF
// metadata when present. Missing metadata is not an error.
func Prepare(p journey.Photo, maxDimension int) (journey.Photo, *Metadata, error) {
	out, err := Downscale(p, maxDimension)
	if err != nil {
		return journey.Photo{}, nil, err
	}
	meta, err := Inspect(p.Data)
	if err != nil {
		log.Debug().Err(err).Msg("No EXIF metadata in uploaded photo")
		meta = nil
	}
	return out, meta, nil
}

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
