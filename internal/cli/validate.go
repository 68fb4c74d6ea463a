package cli

import (
	"errors"

	"github.com/fpang/tripstory/internal/auth"
)

// ExplainValidationError turns an auth.ValidationError into advice for the
// user. Other errors yield a generic message.
func ExplainValidationError(err error) string {
	var validationErr *auth.ValidationError
	if !errors.As(err, &validationErr) {
		return "Unexpected error during API key validation"
	}
	switch validationErr.Type {
	case auth.ErrTypeNoKey:
		return "No API key configured. Set GEMINI_API_KEY in the environment or .env.local"
	case auth.ErrTypeInvalidKey:
		return "Invalid API key. Please check your API key and try again"
	case auth.ErrTypeNetworkError:
		return "Network error. Please check your internet connection"
	case auth.ErrTypeQuotaExceeded:
		return "API quota exceeded. Please try again later or check your usage limits"
	default:
		return "API key validation failed"
	}
}
