package generation

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"luxgen/internal/domain"
)

// PromptStructure is the structured alternative to a free-form prompt: the
// client supplies labeled fragments and the server assembles them in a fixed
// order so prompts stay comparable across generations.
type PromptStructure struct {
	Subject  string `json:"subject"`
	Scene    string `json:"scene"`
	Motion   string `json:"motion"`
	Style    string `json:"style"`
	Lighting string `json:"lighting"`
}

// Flatten joins the non-empty fragments into one prompt string.
func (p PromptStructure) Flatten() string {
	parts := make([]string, 0, 5)
	for _, s := range []string{p.Subject, p.Scene, p.Motion, p.Style, p.Lighting} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// SubmitRequest is the normalized generation submission.
type SubmitRequest struct {
	StartImageURL   string           `json:"start_image_url" validate:"omitempty,url"`
	EndImageURL     string           `json:"end_image_url" validate:"omitempty,url"`
	AspectRatio     string           `json:"aspect_ratio" validate:"omitempty"`
	Prompt          string           `json:"prompt"`
	PromptStructure *PromptStructure `json:"prompt_structure"`
	Duration        string           `json:"duration" validate:"omitempty,oneof=5 10"`
	Seed            int              `json:"seed" validate:"omitempty,min=0"`
	Provider        string           `json:"provider" validate:"omitempty,oneof=replicate fal luma"`
}

// EffectivePrompt prefers the free-form prompt, falling back to the
// flattened structure.
func (r *SubmitRequest) EffectivePrompt() string {
	if p := strings.TrimSpace(r.Prompt); p != "" {
		return p
	}
	if r.PromptStructure != nil {
		return r.PromptStructure.Flatten()
	}
	return ""
}

// Normalize applies defaults before validation.
func (r *SubmitRequest) Normalize() {
	if r.AspectRatio == "" {
		r.AspectRatio = "16:9"
	}
	if r.Duration == "" {
		r.Duration = "5"
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field formats plus the cross-field rule that a submission
// needs either a prompt or at least one input image.
func (r *SubmitRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return domain.ErrInvalidRequest
	}
	if r.EffectivePrompt() == "" && r.StartImageURL == "" && r.EndImageURL == "" {
		return domain.ErrInvalidRequest
	}
	return nil
}
