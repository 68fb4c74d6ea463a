package video

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fpang/tripstory/internal/apperr"
	"github.com/fpang/tripstory/internal/journey"
	"github.com/fpang/tripstory/internal/retry"
)

type stubKeywords struct {
	keyword string
	err     error
}

func (s stubKeywords) TravelKeyword(ctx context.Context, origin, destination string) (string, error) {
	return s.keyword, s.err
}

type stubSearcher struct {
	res      *Result
	err      error
	keywords []string
}

func (s *stubSearcher) Search(ctx context.Context, keyword string) (*Result, error) {
	s.keywords = append(s.keywords, keyword)
	return s.res, s.err
}

func TestKeyword(t *testing.T) {
	cases := []struct {
		name string
		gen  KeywordGenerator
		want string
	}{
		{"no generator", nil, "桂林到阳朔沿途风景"},
		{"generator error", stubKeywords{err: errors.New("quota")}, "桂林到阳朔沿途风景"},
		{"blank output", stubKeywords{keyword: "  \n"}, "桂林到阳朔沿途风景"},
		{"quotes stripped", stubKeywords{keyword: `"阳朔 大巴 窗外 POV"`}, "阳朔 大巴 窗外 POV"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLookup(tc.gen, &stubSearcher{})
			if got := l.Keyword(context.Background(), "桂林", "阳朔"); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestLookupSegment_Found(t *testing.T) {
	search := &stubSearcher{res: &Result{BVID: "BV1xx411c7mD", AID: 170001}}
	l := NewLookup(stubKeywords{keyword: "阳朔 POV"}, search)

	seg, err := l.LookupSegment(context.Background(), "桂林", "阳朔")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &journey.Segment{
		Origin:      "桂林",
		Destination: "阳朔",
		Keyword:     "阳朔 POV",
		VideoID:     "BV1xx411c7mD",
		EmbedURL:    "//player.bilibili.com/player.html?isOutside=true&autoplay=1&bvid=BV1xx411c7mD&muted=1",
	}
	if diff := cmp.Diff(want, seg); diff != "" {
		t.Errorf("segment mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"阳朔 POV"}, search.keywords); diff != "" {
		t.Errorf("search keywords mismatch (-want +got):\n%s", diff)
	}
}

func TestLookupSegment_AIDOnly(t *testing.T) {
	l := NewLookup(nil, &stubSearcher{res: &Result{AID: 99}})
	seg, err := l.LookupSegment(context.Background(), "A", "B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seg.VideoID != "av99" {
		t.Errorf("expected av99, got %s", seg.VideoID)
	}
}

func TestLookupSegment_TerminalOutcomesYieldNil(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"no result", retry.ErrNoResult},
		{"exhausted", &retry.ExhaustedError{Attempts: 3, Err: apperr.Upstreamf("bilibili search", "api code -412")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLookup(nil, &stubSearcher{err: tc.err})
			seg, err := l.LookupSegment(context.Background(), "A", "B")
			if err != nil {
				t.Errorf("expected nil error, got %v", err)
			}
			if seg != nil {
				t.Errorf("expected nil segment, got %+v", seg)
			}
		})
	}
}

func TestLookupSegment_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewLookup(nil, &stubSearcher{err: context.Canceled})

	if _, err := l.LookupSegment(ctx, "A", "B"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFind(t *testing.T) {
	l := NewLookup(nil, &stubSearcher{err: retry.ErrNoResult})
	kw, res, err := l.Find(context.Background(), "A", "B")
	if err != nil || res != nil {
		t.Errorf("expected nil result and error, got %+v, %v", res, err)
	}
	if kw != "A到B沿途风景" {
		t.Errorf("unexpected keyword %q", kw)
	}
}
