package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const probeTimeout = 15 * time.Second

// GeminiProber validates a key with a one-word generateContent call.
type GeminiProber struct {
	BaseURL string
	Model   string

	opts []option.ClientOption
}

func NewGeminiProber(baseURL, model string, opts ...option.ClientOption) *GeminiProber {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiProber{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		opts:    opts,
	}
}

func (p *GeminiProber) Probe(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	opts := append([]option.ClientOption{option.WithAPIKey(key), option.WithEndpoint(p.BaseURL)}, p.opts...)
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("gemini probe: %s", redact(err.Error(), key))
	}
	defer cl.Close()

	m := cl.GenerativeModel(p.Model)
	m.SetMaxOutputTokens(1)
	if _, err := m.GenerateContent(ctx, genai.Text("Hello")); err != nil {
		return probeError(err, key)
	}
	return nil
}

// probeError keeps the status code and drops the key, which the client sends as a
// query parameter and transport errors would echo.
func probeError(err error, key string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := strings.TrimSpace(gerr.Message)
		return fmt.Errorf("gemini probe %d: %s", gerr.Code, redact(msg, key))
	}
	return fmt.Errorf("gemini probe: %s", redact(err.Error(), key))
}

func redact(s, key string) string {
	if key == "" {
		return s
	}
	return strings.ReplaceAll(s, key, "REDACTED")
}
