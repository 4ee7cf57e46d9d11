// Package gemini streams assistant replies from Google Gemini.
package gemini

import (
	"context"
	"iter"
	"net/http"

	"github.com/go-faster/errors"
	"google.golang.org/genai"

	"github.com/xenking/storefront/internal/domain/chat"
)

const DefaultModel = "gemini-2.5-flash"

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

// Client implements chat.Model with the genai SDK.
type Client struct {
	model       string
	temperature float32
	maxTokens   int32
	generate    generateFunc
}

var _ chat.Model = (*Client)(nil)

// New creates a Client for the Gemini API. An empty model selects
// DefaultModel.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}
	return newClient(model, client.Models.GenerateContentStream), nil
}

func newClient(model string, generate generateFunc) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		model:       model,
		temperature: 0.8,
		maxTokens:   600,
		generate:    generate,
	}
}

// Stream yields the text of each streamed response chunk.
func (c *Client) Stream(ctx context.Context, p chat.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		config := &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
			Temperature:       genai.Ptr(c.temperature),
			MaxOutputTokens:   c.maxTokens,
		}
		for resp, err := range c.generate(ctx, c.model, genai.Text(p.Message), config) {
			if err != nil {
				yield("", mapError(err))
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return chat.ErrRateLimited
	}
	return errors.Wrap(err, "gemini stream")
}
