package azure

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokiface/api/internal/match"
	"pokiface/api/internal/match/types"
)

const completion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "{\"pokemon_name\":\"Gengar\",\"description\":\"spooky\"}"}
  }]
}`

func TestAnalyze(t *testing.T) {
	var gotPath, gotKey, gotVersion string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Api-Key")
		gotVersion = r.URL.Query().Get("api-version")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completion)
	}))
	defer srv.Close()

	e := New(srv.URL+"/", "server-key", "gpt-4o-mini", "2024-02-01")
	out, err := e.Analyze(context.Background(), "", types.AnalysisRequest{Image: []byte("img"), MIMEType: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, `{"pokemon_name":"Gengar","description":"spooky"}`, out)

	assert.Equal(t, "/openai/deployments/gpt-4o-mini/chat/completions", gotPath)
	assert.Equal(t, "server-key", gotKey)
	assert.Equal(t, "2024-02-01", gotVersion)
	assert.EqualValues(t, 300, body["max_tokens"])
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	user := msgs[1].(map[string]any)
	parts := user["content"].([]any)
	img := parts[0].(map[string]any)["image_url"].(map[string]any)
	assert.True(t, strings.HasPrefix(img["url"].(string), "data:image/jpeg;base64,aW1n"))
}

func TestAnalyzeIgnoresUserCredential(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Api-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completion)
	}))
	defer srv.Close()

	e := New(srv.URL, "server-key", "gpt-4o-mini", "")
	_, err := e.Analyze(context.Background(), "AIza-gemini", types.AnalysisRequest{Image: []byte("img"), MIMEType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "server-key", gotKey, "a chat's Gemini key never reaches Azure")
}

func TestAnalyzeProviderError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"code":"401","message":"Access denied due to invalid subscription key."}}`)
	}))
	defer srv.Close()

	e := New(srv.URL, "bad", "gpt-4o-mini", "")
	_, err := e.Analyze(context.Background(), "", types.AnalysisRequest{Image: []byte("img"), MIMEType: "image/png"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, match.ErrProviderFailure))

	var pe *match.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	assert.NotEmpty(t, pe.Message)
	assert.Equal(t, 1, calls, "no retries")
}

func TestAnalyzeEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k", "m", "").Analyze(context.Background(), "", types.AnalysisRequest{Image: []byte{1}, MIMEType: "image/png"})
	assert.True(t, errors.Is(err, match.ErrProviderFailure))
}

func TestAnalyzeMissingConfig(t *testing.T) {
	_, err := New("", "k", "m", "").Analyze(context.Background(), "", types.AnalysisRequest{Image: []byte{1}})
	assert.True(t, errors.Is(err, match.ErrProviderFailure))

	_, err = New("https://x.openai.azure.com", "", "m", "").Analyze(context.Background(), "", types.AnalysisRequest{Image: []byte{1}})
	assert.True(t, errors.Is(err, match.ErrProviderFailure))
}
