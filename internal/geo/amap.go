// Package geo turns a planned route into a geocoded one using the AMap
// (高德地图) place search REST API.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/fpang/tripstory/internal/apperr"
)

const defaultBaseURL = "https://restapi.amap.com"

// POI is a resolved point of interest.
type POI struct {
	Name   string
	Lat    float64
	Lng    float64
	Photos []string
}

// Client searches AMap for points of interest.
type Client struct {
	httpClient *http.Client
	baseURL    string
	key        string
}

// NewClient creates an AMap client for the given web service key.
func NewClient(key string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
		key:        key,
	}
}

type placeResponse struct {
	Status string     `json:"status"`
	Info   string     `json:"info"`
	Pois   []placePOI `json:"pois"`
}

// AMap renders empty string fields as [], so location stays raw.
type placePOI struct {
	Name     string          `json:"name"`
	Location json.RawMessage `json:"location"`
	Photos   []struct {
		URL string `json:"url"`
	} `json:"photos"`
}

// SearchPOI returns the best match for keyword within city, or nil when
// AMap finds nothing.
func (c *Client) SearchPOI(ctx context.Context, keyword, city string) (*POI, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, apperr.Validation("amap search", errors.New("empty keyword"))
	}

	q := url.Values{}
	q.Set("key", c.key)
	q.Set("keywords", keyword)
	q.Set("city", city)
	q.Set("offset", "1")
	q.Set("page", "1")
	q.Set("extensions", "all")
	endpoint := c.baseURL + "/v3/place/text?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Transport("amap search", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Transport("amap search", fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstreamf("amap search", "status %d: %s", resp.StatusCode, truncateString(string(body), 200))
	}

	var parsed placeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperr.Upstream("amap search", fmt.Errorf("failed to parse response: %w", err))
	}
	if parsed.Status != "1" {
		return nil, apperr.Upstreamf("amap search", "status %s: %s", parsed.Status, parsed.Info)
	}
	if len(parsed.Pois) == 0 {
		return nil, nil
	}

	p := parsed.Pois[0]
	lng, lat, ok := parseLocation(p.Location)
	if !ok {
		log.Warn().Str("keyword", keyword).Str("location", string(p.Location)).Msg("AMap POI has no usable location")
		return nil, nil
	}
	poi := &POI{Name: p.Name, Lat: lat, Lng: lng}
	for _, ph := range p.Photos {
		if ph.URL != "" {
			poi.Photos = append(poi.Photos, ph.URL)
		}
	}
	return poi, nil
}

// parseLocation reads AMap's "lng,lat" string.
func parseLocation(raw json.RawMessage) (lng, lat float64, ok bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, 0, false
	}
	lngStr, latStr, found := strings.Cut(s, ",")
	if !found {
		return 0, 0, false
	}
	lng, err1 := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	lat, err2 := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lng, lat, true
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
