// Package video finds a travel video for the leg between two stops.
//
// A search keyword is generated for the leg (by an LLM when one is
// configured, otherwise "<origin>到<destination>沿途风景"), and the Bilibili
// web search API is queried for it under a bounded retry. The first result
// becomes the segment's video, played through the Bilibili embed player.
package video

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
	"github.com/fpang/tripstory/internal/retry"
)

const (
	// defaultBaseURL is the Bilibili web API host.
	defaultBaseURL = "https://api.bilibili.com"

	// searchPath is the typed search endpoint.
	searchPath = "/x/web-interface/search/type"

	// defaultTimeout bounds a single search request.
	defaultTimeout = 15 * time.Second

	// The search endpoint sits behind a WAF that rejects requests without
	// browser-like headers.
	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/144.0.0.0 Safari/537.36"
	acceptLanguage   = "zh,en-US;q=0.9,en;q=0.8,zh-CN;q=0.7,zh-TW;q=0.6"
)

// Result is a single video search hit.
type Result struct {
	BVID     string `json:"bvid"`
	AID      int64  `json:"aid"`
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author,omitempty"`
	Duration string `json:"duration,omitempty"`
	ArcURL   string `json:"arcurl,omitempty"`
	Pic      string `json:"pic,omitempty"`
}

// searchResponse is the envelope returned by the typed search endpoint.
type searchResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		Result []Result `json:"result"`
	} `json:"data"`
}

// Client queries the Bilibili video search API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cookie     string
	policy     retry.Policy
}

// Option customizes a Client.
type Option func(*Client)

// WithCookie sends a browser session cookie with every search. Bilibili's WAF
// is far less likely to reject a request that carries a buvid3 cookie.
func WithCookie(cookie string) Option {
	return func(c *Client) { c.cookie = cookie }
}

// WithPolicy overrides the default 3 x 3s retry policy.
func WithPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// NewClient creates a Bilibili search client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		policy:     retry.Default("bilibili search"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns the first video matching keyword. Transport failures, error
// statuses and non-zero API codes are retried under the client's policy; an
// empty result list is a definitive "nothing found" and returns
// retry.ErrNoResult without retrying.
func (c *Client) Search(ctx context.Context, keyword string) (*Result, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, apperr.Validation("bilibili search", errors.New("empty keyword"))
	}
	return retry.Do(ctx, c.policy, func(ctx context.Context, attempt int) (*Result, error) {
		return c.searchOnce(ctx, keyword)
	})
}

func (c *Client) searchOnce(ctx context.Context, keyword string) (*Result, error) {
	const op = "bilibili search"

	params := url.Values{
		"search_type": {"video"},
		"keyword":     {keyword},
		"page":        {"1"},
		"order":       {"default"},
	}
	reqURL := c.baseURL + searchPath + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperr.Validation(op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", acceptLanguage)
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	log.Debug().Str("keyword", keyword).Str("url", reqURL).Msg("Searching Bilibili")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Transport(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Transport(op, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstreamf(op, "status %d: %s", resp.StatusCode, truncateString(string(body), 200))
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, apperr.Upstream(op, fmt.Errorf("parse response: %w", err))
	}
	if sr.Code != 0 {
		return nil, apperr.Upstreamf(op, "api code %d: %s", sr.Code, sr.Message)
	}
	if sr.Data == nil || len(sr.Data.Result) == 0 {
		return nil, retry.ErrNoResult
	}

	first := sr.Data.Result[0]
	first.Title = stripHighlight(first.Title)
	log.Info().
		Str("keyword", keyword).
		Str("bvid", first.BVID).
		Int64("aid", first.AID).
		Str("title", first.Title).
		Int("results", len(sr.Data.Result)).
		Msg("Bilibili video found")
	return &first, nil
}

// stripHighlight removes the <em class="keyword"> markup Bilibili wraps
// around matched terms in titles.
func stripHighlight(s string) string {
	s = strings.ReplaceAll(s, `<em class="keyword">`, "")
	return strings.ReplaceAll(s, "</em>", "")
}

// EmbedURL returns the player URL for r: autoplaying and muted, addressed by
// bvid when present, else by aid, else by id. It returns "" for a result with
// no usable identifier.
func EmbedURL(r *Result) string {
	if r == nil {
		return ""
	}
	base := "//player.bilibili.com/player.html?isOutside=true&autoplay=1"
	switch {
	case r.BVID != "":
		base += "&bvid=" + url.QueryEscape(r.BVID)
	case r.AID != 0:
		base += "&aid=" + strconv.FormatInt(r.AID, 10)
	case r.ID != 0:
		base += "&aid=" + strconv.FormatInt(r.ID, 10)
	default:
		return ""
	}
	return base + "&muted=1"
}

// truncateString shortens s to at most maxLen bytes for log and error output,
// cutting on a rune boundary.
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
