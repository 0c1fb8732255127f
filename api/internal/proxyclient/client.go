package proxyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pokiface/api/internal/match/types"
	"pokiface/api/internal/upload"
	"pokiface/api/internal/util"
)

const twinPath = "/api/getPokemonTwin"

// ErrBadResponse is returned when the proxy answers 2xx with a body that is not a match.
var ErrBadResponse = errors.New("proxy returned an unusable response")

// StatusError is a non-2xx answer from the proxy. Message is the body text.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("proxy %d: %s", e.StatusCode, e.Message)
}

// Client talks to a running proxy function instead of calling the provider directly.
// The proxy owns the upstream credential, so the credential argument of Match is unused.
type Client struct {
	baseURL string
	hc      *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.hc = hc
	return c
}

func (c *Client) Match(ctx context.Context, _ string, image []byte, mime string) (types.Match, error) {
	b64, err := upload.ToBase64(upload.File{MIMEType: mime, Data: image})
	if err != nil {
		return types.Match{}, err
	}
	payload, err := json.Marshal(types.TwinRequest{Image: b64, MimeType: mime})
	if err != nil {
		return types.Match{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+twinPath, bytes.NewReader(payload))
	if err != nil {
		return types.Match{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if dl, ok := ctx.Deadline(); ok {
		if secs := int(time.Until(dl).Seconds()); secs > 0 {
			req.Header.Set("X-Request-Timeout", fmt.Sprint(secs))
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return types.Match{}, fmt.Errorf("proxy request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return types.Match{}, fmt.Errorf("read proxy response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.Match{}, &StatusError{StatusCode: resp.StatusCode, Message: util.Truncate(strings.TrimSpace(string(raw)), 500)}
	}

	var m types.Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return types.Match{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if strings.TrimSpace(m.CreatureName) == "" {
		return types.Match{}, fmt.Errorf("%w: missing pokemon_name", ErrBadResponse)
	}
	return m, nil
}
