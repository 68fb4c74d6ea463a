// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time so prompt wording can change without touching Go code.
package assets

import (
	_ "embed"
)

// PlannerSystemPrompt frames the model as a travel planner that answers in JSON.
//
//go:embed prompts/planner-system.txt
var PlannerSystemPrompt string
