package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"pokiface/api/internal/match"
	"pokiface/api/internal/match/types"
)

const (
	temperature     = 0.7
	maxOutputTokens = 1000

	userText = "Here is the photo. Answer with the JSON object only."
)

type Engine struct {
	APIKey string
	Model  string

	opts []option.ClientOption
}

func New(apiKey, model string, opts ...option.ClientOption) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
		opts:   opts,
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// Analyze sends the system prompt plus the inline image and returns the first text part.
func (e *Engine) Analyze(ctx context.Context, credential string, req types.AnalysisRequest) (string, error) {
	key := strings.TrimSpace(credential)
	if key == "" {
		key = e.APIKey
	}
	if key == "" {
		return "", fmt.Errorf("gemini: GEMINI_API_KEY is empty: %w", match.ErrProviderFailure)
	}
	if len(req.Image) == 0 {
		return "", errors.New("gemini: empty image")
	}

	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(key)}, e.opts...)...)
	if err != nil {
		return "", fmt.Errorf("gemini: new client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	configure(m, req.Prompt)

	resp, err := m.GenerateContent(ctx, Parts(req)...)
	if err != nil {
		return "", providerError(err)
	}
	txt := firstText(resp)
	if strings.TrimSpace(txt) == "" {
		return "", fmt.Errorf("gemini: empty response: %w", match.ErrProviderFailure)
	}
	return txt, nil
}

func configure(m *genai.GenerativeModel, prompt string) {
	m.SetTemperature(temperature)
	m.SetMaxOutputTokens(maxOutputTokens)
	if prompt == "" {
		prompt = match.SystemPrompt
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(prompt)},
	}
}

// Parts is the user turn: a short instruction followed by the image blob.
func Parts(req types.AnalysisRequest) []genai.Part {
	return []genai.Part{
		genai.Text(userText),
		&genai.Blob{MIMEType: req.MIMEType, Data: req.Image},
	}
}

func providerError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &match.ProviderError{Provider: "Gemini", StatusCode: gerr.Code, Message: gerr.Message}
	}
	return &match.ProviderError{Provider: "Gemini", Message: err.Error()}
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}
