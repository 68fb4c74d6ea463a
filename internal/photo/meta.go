package photo

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// Metadata is the EXIF subset logged for check-in photos.
type Metadata struct {
	Latitude  float64
	Longitude float64
	HasGPS    bool

	DateTaken time.Time
	HasDate   bool

	CameraMake  string
	CameraModel string
}

// Inspect reads EXIF metadata from an in-memory image. imagemeta only reads
// the metadata blocks, not the pixel data.
func Inspect(data []byte) (*Metadata, error) {
	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	m := &Metadata{}
	gps := exifData.GPS
	if gps.Latitude() != 0 || gps.Longitude() != 0 {
		m.Latitude = gps.Latitude()
		m.Longitude = gps.Longitude()
		m.HasGPS = true
	}

	// DateTimeOriginal > CreateDate > ModifyDate
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		m.DateTaken, m.HasDate = exifData.DateTimeOriginal(), true
	case !exifData.CreateDate().IsZero():
		m.DateTaken, m.HasDate = exifData.CreateDate(), true
	case !exifData.ModifyDate().IsZero():
		m.DateTaken, m.HasDate = exifData.ModifyDate(), true
	}

	m.CameraMake = strings.TrimSpace(exifData.Make)
	m.CameraModel = strings.TrimSpace(exifData.Model)

	log.Debug().
		Bool("has_gps", m.HasGPS).
		Bool("has_date", m.HasDate).
		Str("camera", strings.TrimSpace(m.CameraMake+" "+m.CameraModel)).
		Msg("Photo metadata extracted")
	return m, nil
}

// DistanceKm is the great-circle distance between the photo's GPS position
// and (lat, lng). It returns -1 when the photo has no GPS data.
func (m *Metadata) DistanceKm(lat, lng float64) float64 {
	if m == nil || !m.HasGPS {
		return -1
	}
	return haversineKm(m.Latitude, m.Longitude, lat, lng)
}
