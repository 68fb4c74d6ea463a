package jsonutil

import (
	"errors"
	"testing"
)

func TestStripMarkdownFences(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"plain", `  {"a":1} `, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```\n", `[1,2]`},
		{"unclosed fence", "```json\n{\"a\":1}", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripMarkdownFences(tc.in); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	got, err := ExtractJSON(`好的，路线如下：{"start":"南宁","waypoints":[{"name":"象鼻山"}]} 祝旅途愉快`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"start":"南宁","waypoints":[{"name":"象鼻山"}]}` {
		t.Errorf("unexpected extraction %s", got)
	}

	got, _ = ExtractJSON(`list: [{"a":1}]`)
	if got != `[{"a":1}]` {
		t.Errorf("expected array extraction, got %s", got)
	}

	if _, err := ExtractJSON("抱歉，我无法回答。"); !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}
	if _, err := ExtractJSON(`{"a":1`); err == nil {
		t.Error("expected error for unclosed object")
	}
}

func TestParseJSON(t *testing.T) {
	type plan struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	p, err := ParseJSON[plan]("```json\n{\"start\":\"南宁\",\"end\":\"桂林\"}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Start != "南宁" || p.End != "桂林" {
		t.Errorf("unexpected plan %+v", p)
	}

	if _, err := ParseJSON[plan](`{"start": 3}`); err == nil {
		t.Error("expected type error")
	}
	if _, err := ParseJSON[plan]("no json"); !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}
}

func TestStripQuotes(t *testing.T) {
	cases := map[string]string{
		`"阳朔 高铁 窗外风景"`:   "阳朔 高铁 窗外风景",
		"“桂林到阳朔 自驾”":       "桂林到阳朔 自驾",
		"「漓江 竹筏」\n":        "漓江 竹筏",
		"```\n'POV 高铁'\n```": "POV 高铁",
		`""`:                 "",
	}
	for in, want := range cases {
		if got := StripQuotes(in); got != want {
			t.Errorf("StripQuotes(%q) = %q, want %q", in, got, want)
		}
	}
}
