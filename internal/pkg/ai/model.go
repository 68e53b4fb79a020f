package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// ErrEmptyResponse the model returned no text.
var ErrEmptyResponse = errors.New("the AI response was empty")

// TextModel sends one prompt with a system instruction and returns the raw text reply.
type TextModel interface {
	Generate(ctx context.Context, systemInstruction, prompt string) (string, error)
}

// GeminiConfig configures the Gemini-backed TextModel.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GeminiModel implements TextModel with google/generative-ai-go.
type GeminiModel struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiModel returns nil, nil when no API key is configured: callers fall back to local logic.
func NewGeminiModel(ctx context.Context, cfg GeminiConfig) (*GeminiModel, error) {
	if cfg.APIKey == "" {
		log.Warn().Msg("[Gemini] API key is not set, AI features will use local fallbacks")
		return nil, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	return &GeminiModel{client: client, model: cfg.Model, timeout: cfg.Timeout}, nil
}

func (m *GeminiModel) Generate(ctx context.Context, systemInstruction, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	model := m.client.GenerativeModel(m.model)
	model.ResponseMIMEType = "application/json"
	if systemInstruction != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstruction)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

func (m *GeminiModel) Close() error {
	return m.client.Close()
}

// DecodeJSON strips markdown code fences from a model reply and decodes it strictly into dest.
// Unknown fields are rejected so a reply with the wrong shape fails instead of being guessed at.
func DecodeJSON(raw string, dest interface{}) error {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return ErrEmptyResponse
	}

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("the AI returned malformed JSON: %w", err)
	}
	return nil
}
