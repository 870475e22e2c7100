package repo

import (
	"context"
	"errors"
)

// AI provider failure categories. Anything else returned by Generate is a
// transport-level error.
var (
	// ErrPolicyBlocked means the provider refused the prompt on safety grounds.
	ErrPolicyBlocked = errors.New("ai: blocked by safety policy")

	// ErrEmptyResult means the provider answered with no usable text.
	ErrEmptyResult = errors.New("ai: empty result")
)

// PromptPart is one segment of a generation prompt: plain text or an inline
// image payload.
type PromptPart struct {
	Text      string
	ImageData []byte
	ImageMIME string
}

// TextPart builds a plain-text prompt part.
func TextPart(text string) PromptPart {
	return PromptPart{Text: text}
}

// ImagePart builds an inline-image prompt part.
func ImagePart(data []byte, mime string) PromptPart {
	return PromptPart{ImageData: data, ImageMIME: mime}
}

// AIProvider is the generative-text collaborator invoked for AI replies.
type AIProvider interface {
	// Generate renders a reply for the given prompt parts. It must signal
	// ErrPolicyBlocked and ErrEmptyResult distinctly from transport errors.
	Generate(ctx context.Context, parts []PromptPart) (string, error)
}
