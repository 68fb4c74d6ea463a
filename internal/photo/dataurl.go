// Package photo handles the traveller's check-in photos: decoding the data
// URLs the client sends, reading EXIF metadata, and downscaling large images
// before they are handed to an image-generation model.
package photo

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fpang/tripstory/internal/apperr"
	"github.com/fpang/tripstory/internal/journey"
)

// ErrNotImage is returned when the payload is not a recognised image.
var ErrNotImage = errors.New("payload is not an image")

// DecodeDataURL parses "data:image/<type>;base64,<data>" into a Photo. The
// MIME type is lowercased; image models reject "image/PNG". A bare base64
// string without the data: prefix is accepted and its type sniffed.
func DecodeDataURL(s string) (journey.Photo, error) {
	const op = "decode photo"
	s = strings.TrimSpace(s)
	if s == "" {
		return journey.Photo{}, apperr.Validation(op, errors.New("empty image"))
	}

	mimeType := ""
	payload := s
	if strings.HasPrefix(s, "data:") {
		header, data, ok := strings.Cut(s[len("data:"):], ",")
		if !ok {
			return journey.Photo{}, apperr.Validation(op, errors.New("malformed data URL"))
		}
		mediaType, enc, _ := strings.Cut(header, ";")
		if !strings.EqualFold(enc, "base64") {
			return journey.Photo{}, apperr.Validation(op, fmt.Errorf("unsupported data URL encoding %q", enc))
		}
		mimeType = strings.ToLower(mediaType)
		payload = data
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some clients strip padding.
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return journey.Photo{}, apperr.Validation(op, fmt.Errorf("invalid base64: %w", err))
		}
	}
	if len(raw) == 0 {
		return journey.Photo{}, apperr.Validation(op, errors.New("empty image"))
	}

	sniffed := http.DetectContentType(raw)
	if mimeType == "" {
		mimeType = sniffed
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return journey.Photo{}, apperr.Validation(op, fmt.Errorf("%w: %s", ErrNotImage, mimeType))
	}
	return journey.Photo{Data: raw, MIMEType: mimeType}, nil
}

// DataURL encodes p as a base64 data URL with a lowercase MIME type.
func DataURL(p journey.Photo) string {
	mimeType := strings.ToLower(p.MIMEType)
	if mimeType == "" {
		mimeType = http.DetectContentType(p.Data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}
