// Package jsonutil cleans up LLM answers: it extracts JSON wrapped in
// markdown code fences or surrounded by prose, and strips the quoting models
// like to put around one-line answers.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON means the text contains no JSON object or array.
var ErrNoJSON = errors.New("no JSON content found")

// StripMarkdownFences removes ```json ... ``` or ``` ... ``` wrapping from text.
// Returns the content between the fences, or the trimmed text if no fences are found.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}

	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}

// ExtractJSON returns the JSON object or array in text, from the first { or [
// to the last matching closer.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)

	objIdx := strings.Index(text, "{")
	arrIdx := strings.Index(text, "[")
	if objIdx == -1 && arrIdx == -1 {
		return "", ErrNoJSON
	}

	startIdx, endChar := objIdx, "}"
	if objIdx == -1 || (arrIdx != -1 && arrIdx < objIdx) {
		startIdx, endChar = arrIdx, "]"
	}

	text = text[startIdx:]
	endIdx := strings.LastIndex(text, endChar)
	if endIdx == -1 {
		return "", fmt.Errorf("no closing %s found", endChar)
	}
	return text[:endIdx+1], nil
}

// ParseJSON strips markdown fences from a model answer, extracts the JSON
// content and unmarshals it into T.
func ParseJSON[T any](raw string) (T, error) {
	var zero T
	jsonStr, err := ExtractJSON(StripMarkdownFences(raw))
	if err != nil {
		return zero, fmt.Errorf("%w (raw length: %d)", err, len(raw))
	}

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		preview := jsonStr
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return zero, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview)
	}
	return result, nil
}

var quoteStripper = strings.NewReplacer(
	`"`, "", `'`, "", "`", "",
	"“", "", "”", "", "‘", "", "’", "",
	"「", "", "」", "",
)

// StripQuotes removes ASCII, typographic and CJK corner quotes anywhere in s
// and trims surrounding whitespace. Used for one-line answers such as search
// keywords.
func StripQuotes(s string) string {
	return strings.TrimSpace(quoteStripper.Replace(StripMarkdownFences(s)))
}
