package data

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/zapbot-im/zapbot/internal/biz/repo"
)

// openaiProvider implements the AI provider on an OpenAI-compatible API.
type openaiProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates an AI provider. baseURL may be empty for the
// default OpenAI endpoint or point at any compatible service.
func NewOpenAIProvider(apiKey, model, baseURL string) repo.AIProvider {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &openaiProvider{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Generate runs one chat completion over the prompt parts. The leading text
// part is treated as the system prompt; the rest become one user message,
// with image parts inlined as data URLs.
func (p *openaiProvider) Generate(ctx context.Context, parts []repo.PromptPart) (string, error) {
	if len(parts) == 0 {
		return "", repo.ErrEmptyResult
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: parts[0].Text},
	}

	var content []openai.ChatMessagePart
	for _, part := range parts[1:] {
		if len(part.ImageData) > 0 {
			url := fmt.Sprintf("data:%s;base64,%s",
				part.ImageMIME, base64.StdEncoding.EncodeToString(part.ImageData))
			content = append(content, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: url},
			})
			continue
		}
		content = append(content, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: part.Text,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: content,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: messages,
	})
	if err != nil {
		if isPolicyError(err) {
			return "", repo.ErrPolicyBlocked
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", repo.ErrEmptyResult
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", repo.ErrPolicyBlocked
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", repo.ErrEmptyResult
	}
	return choice.Message.Content, nil
}

// isPolicyError recognizes a safety-policy rejection in an API error.
func isPolicyError(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if code, ok := apiErr.Code.(string); ok && code == "content_filter" {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "content management policy")
}
