package video

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/tripstory/internal/journey"
	"github.com/fpang/tripstory/internal/jsonutil"
	"github.com/fpang/tripstory/internal/metrics"
	"github.com/fpang/tripstory/internal/retry"
)

// KeywordGenerator proposes a video search keyword for a leg.
type KeywordGenerator interface {
	TravelKeyword(ctx context.Context, origin, destination string) (string, error)
}

// Searcher finds a video for a keyword.
type Searcher interface {
	Search(ctx context.Context, keyword string) (*Result, error)
}

// FallbackKeyword is the keyword used when no generator is configured or the
// generator fails.
func FallbackKeyword(origin, destination string) string {
	return fmt.Sprintf("%s到%s沿途风景", origin, destination)
}

// Lookup resolves the travel video for a leg. It implements
// journey.SegmentLookup.
type Lookup struct {
	keywords KeywordGenerator
	search   Searcher
}

var _ journey.SegmentLookup = (*Lookup)(nil)

// NewLookup creates a Lookup. keywords may be nil.
func NewLookup(keywords KeywordGenerator, search Searcher) *Lookup {
	return &Lookup{keywords: keywords, search: search}
}

// Keyword returns the search keyword for a leg, falling back to
// FallbackKeyword when generation fails or returns nothing.
func (l *Lookup) Keyword(ctx context.Context, origin, destination string) string {
	fallback := FallbackKeyword(origin, destination)
	if l.keywords == nil {
		return fallback
	}
	kw, err := l.keywords.TravelKeyword(ctx, origin, destination)
	if err != nil {
		log.Warn().Err(err).Str("origin", origin).Str("destination", destination).Msg("Keyword generation failed, using fallback")
		return fallback
	}
	kw = jsonutil.StripQuotes(kw)
	if kw == "" {
		return fallback
	}
	return kw
}

// LookupSegment returns the segment for origin → destination. A search that
// finds nothing or exhausts its retries yields a nil segment and a nil error;
// only context cancellation and invalid input are returned as errors.
func (l *Lookup) LookupSegment(ctx context.Context, origin, destination string) (*journey.Segment, error) {
	start := time.Now()
	keyword := l.Keyword(ctx, origin, destination)

	rec := metrics.New(metrics.Namespace).Dimension("Operation", "segmentLookup")
	defer func() {
		rec.Since("LookupLatencyMs", start).Flush()
	}()

	res, err := l.search.Search(ctx, keyword)
	if err != nil {
		var exhausted *retry.ExhaustedError
		switch {
		case errors.Is(err, retry.ErrNoResult):
			log.Info().Str("keyword", keyword).Msg("No travel video found")
			rec.Count("LookupNoResult")
			return nil, nil
		case errors.As(err, &exhausted):
			log.Warn().Err(err).Str("keyword", keyword).Int("attempts", exhausted.Attempts).Msg("Travel video search exhausted")
			rec.Count("LookupExhausted")
			return nil, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return nil, fmt.Errorf("lookup segment %s -> %s: %w", origin, destination, err)
		}
	}

	rec.Count("LookupFound")
	seg := &journey.Segment{
		Origin:      origin,
		Destination: destination,
		Keyword:     keyword,
		VideoID:     res.BVID,
		EmbedURL:    EmbedURL(res),
	}
	if seg.VideoID == "" && res.AID != 0 {
		seg.VideoID = fmt.Sprintf("av%d", res.AID)
	}
	return seg, nil
}

// Find is the one-shot form used by the travel-video endpoint: it returns the
// keyword used and the raw result, or a nil result when nothing was found.
func (l *Lookup) Find(ctx context.Context, origin, destination string) (string, *Result, error) {
	keyword := l.Keyword(ctx, origin, destination)
	res, err := l.search.Search(ctx, keyword)
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.Is(err, retry.ErrNoResult) || errors.As(err, &exhausted) {
			return keyword, nil, nil
		}
		return keyword, nil, err
	}
	return keyword, res, nil
}
