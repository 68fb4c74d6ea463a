package chat

import "os"

// Model IDs
//
// | Model                    | API Model ID                 | Use Case                         |
// |--------------------------|------------------------------|----------------------------------|
// | Gemini 3 Flash (Preview) | gemini-3-flash-preview       | Planning, guides, keywords       |
// | Gemini 2.5 Flash         | gemini-2.5-flash             | Stable fallback text model       |
// | Gemini 3 Pro Image       | gemini-3-pro-image-preview   | Check-in composites (Gemini)     |
// | Doubao Seedream 4.0      | doubao-seedream-4-0-250828   | Check-in composites (ARK)        |
const (
	// ModelGemini3FlashPreview is best for speed + intelligence.
	ModelGemini3FlashPreview = "gemini-3-flash-preview"

	// ModelGemini25Flash is stable, balanced performance.
	ModelGemini25Flash = "gemini-2.5-flash"

	// ModelGemini3ProImage is for image generation/edit.
	ModelGemini3ProImage = "gemini-3-pro-image-preview"

	// ModelSeedream40 is the Volcengine ARK image model.
	ModelSeedream40 = "doubao-seedream-4-0-250828"
)

// DefaultModelName is the default text model.
const DefaultModelName = ModelGemini3FlashPreview

// GetModelName returns the text model to use: GEMINI_MODEL if set, else
// DefaultModelName.
func GetModelName() string {
	if env := os.Getenv("GEMINI_MODEL"); env != "" {
		return env
	}
	return DefaultModelName
}
