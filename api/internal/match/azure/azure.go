package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"pokiface/api/internal/match"
	"pokiface/api/internal/match/types"
	"pokiface/api/internal/upload"
)

const (
	maxTokens   = 300
	temperature = 0.7
)

// Engine calls an Azure OpenAI chat-completions deployment.
type Engine struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string

	client openai.Client
}

func New(endpoint, apiKey, deployment, apiVersion string, opts ...option.RequestOption) *Engine {
	endpoint = strings.TrimSuffix(strings.TrimSpace(endpoint), "/")
	if apiVersion == "" {
		apiVersion = "2024-02-01"
	}
	base := []option.RequestOption{
		azure.WithEndpoint(endpoint, apiVersion),
		azure.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
	}
	return &Engine{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		Deployment: deployment,
		APIVersion: apiVersion,
		client:     openai.NewClient(append(base, opts...)...),
	}
}

func (e *Engine) Name() string     { return "azure" }
func (e *Engine) GetModel() string { return e.Deployment }

// Analyze always authenticates with the server key. Stored user credentials are Gemini
// keys, so the credential argument is ignored.
func (e *Engine) Analyze(ctx context.Context, _ string, req types.AnalysisRequest) (string, error) {
	if e.Endpoint == "" {
		return "", fmt.Errorf("azure: AZURE_OPENAI_ENDPOINT is empty: %w", match.ErrProviderFailure)
	}
	if len(req.Image) == 0 {
		return "", errors.New("azure: empty image")
	}
	if e.APIKey == "" {
		return "", fmt.Errorf("azure: AZURE_OPENAI_API_KEY is empty: %w", match.ErrProviderFailure)
	}

	params, err := Params(e.Deployment, req)
	if err != nil {
		return "", err
	}
	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", providerError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("azure: empty response: %w", match.ErrProviderFailure)
	}
	return resp.Choices[0].Message.Content, nil
}

// Params builds the chat request: system prompt, then the photo as a data URL.
func Params(deployment string, req types.AnalysisRequest) (openai.ChatCompletionNewParams, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = match.SystemPrompt
	}
	b64, err := upload.ToBase64(upload.File{MIMEType: req.MIMEType, Data: req.Image})
	if err != nil {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("azure: %w", err)
	}
	dataURL := upload.DataURL(req.MIMEType, b64)

	return openai.ChatCompletionNewParams{
		Model: openai.ChatModel(deployment),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
		MaxTokens:   openai.Int(maxTokens),
		Temperature: openai.Float(temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}, nil
}

func providerError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		msg := strings.TrimSpace(apierr.Message)
		if msg == "" {
			msg = http.StatusText(apierr.StatusCode)
		}
		return &match.ProviderError{Provider: "Azure", StatusCode: apierr.StatusCode, Message: msg}
	}
	return &match.ProviderError{Provider: "Azure", Message: err.Error()}
}
