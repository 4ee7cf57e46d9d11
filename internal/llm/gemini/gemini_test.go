package gemini

import (
	"context"
	"iter"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/xenking/storefront/internal/domain/chat"
)

func chunk(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

func fake(chunks []string, failWith error, seen *genai.GenerateContentConfig) generateFunc {
	return func(_ context.Context, _ string, _ []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
		*seen = *config
		return func(yield func(*genai.GenerateContentResponse, error) bool) {
			for _, c := range chunks {
				if !yield(chunk(c), nil) {
					return
				}
			}
			if failWith != nil {
				yield(nil, failWith)
			}
		}
	}
}

func drain(c *Client) (string, error) {
	var sb strings.Builder
	for tok, err := range c.Stream(context.Background(), chat.Prompt{System: "be nice", Message: "hi"}) {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(tok)
	}
	return sb.String(), nil
}

func TestClient_Stream(t *testing.T) {
	var cfg genai.GenerateContentConfig
	c := newClient("", fake([]string{"Namaste", "", "! Welcome"}, nil, &cfg))

	text, err := drain(c)
	require.NoError(t, err)
	assert.Equal(t, "Namaste! Welcome", text)
	assert.Equal(t, DefaultModel, c.model)
	assert.Equal(t, int32(600), cfg.MaxOutputTokens)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "be nice", cfg.SystemInstruction.Parts[0].Text)
}

func TestClient_StreamErrors(t *testing.T) {
	var cfg genai.GenerateContentConfig

	c := newClient("m", fake(nil, genai.APIError{Code: 429, Message: "quota"}, &cfg))
	_, err := drain(c)
	require.ErrorIs(t, err, chat.ErrRateLimited)

	c = newClient("m", fake([]string{"partial"}, errors.New("boom"), &cfg))
	text, err := drain(c)
	require.Error(t, err)
	assert.NotErrorIs(t, err, chat.ErrRateLimited)
	assert.Equal(t, "partial", text)
}
