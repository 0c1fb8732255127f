package artwork

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBaseURL     = "https://pokeapi.co/api/v2"
	DefaultPlaceholder = "https://via.placeholder.com/200x200?text=Pokemon"

	lookupTimeout = 10 * time.Second
)

// Resolver maps creature names to artwork URLs via PokeAPI. Resolve never fails.
type Resolver struct {
	baseURL     string
	placeholder string
	httpc       *http.Client
	log         *zap.Logger

	group singleflight.Group
	cache sync.Map // slug -> url
}

func New(baseURL, placeholder string, log *zap.Logger) *Resolver {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		baseURL:     strings.TrimRight(baseURL, "/"),
		placeholder: placeholder,
		httpc:       &http.Client{Timeout: lookupTimeout},
		log:         log,
	}
}

// WithHTTPClient overrides the internal HTTP client.
func (r *Resolver) WithHTTPClient(c *http.Client) *Resolver {
	if c != nil {
		r.httpc = c
	}
	return r
}

// Slug lowercases name, collapses every run of non [a-z0-9] into one '-' and trims
// dashes at both ends.
func Slug(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingDash := false
	for _, c := range strings.ToLower(name) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(c)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

func (r *Resolver) Resolve(ctx context.Context, name string) string {
	slug := Slug(name)
	if slug == "" {
		return r.placeholder
	}
	if v, ok := r.cache.Load(slug); ok {
		return v.(string)
	}

	// the lookup is shared with concurrent callers, so one caller leaving must not cancel it
	v, err, _ := r.group.Do(slug, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return r.lookup(lctx, slug)
	})
	if err != nil {
		r.log.Warn("artwork lookup failed", zap.String("name", name), zap.String("slug", slug), zap.Error(err))
		return r.placeholder
	}
	u := v.(string)
	if u == "" {
		return r.placeholder
	}
	r.cache.Store(slug, u)
	return u
}

type pokemon struct {
	Sprites struct {
		FrontDefault *string `json:"front_default"`
		Other        map[string]struct {
			FrontDefault *string `json:"front_default"`
		} `json:"other"`
	} `json:"sprites"`
}

// ArtworkURL prefers the high-resolution official artwork, then the default sprite.
func (p pokemon) ArtworkURL() string {
	if oa, ok := p.Sprites.Other["official-artwork"]; ok && oa.FrontDefault != nil && *oa.FrontDefault != "" {
		return *oa.FrontDefault
	}
	if p.Sprites.FrontDefault != nil {
		return *p.Sprites.FrontDefault
	}
	return ""
}

func (r *Resolver) lookup(ctx context.Context, slug string) (string, error) {
	endpoint := r.baseURL + "/pokemon/" + url.PathEscape(slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("pokeapi %d: %s", resp.StatusCode, strings.TrimSpace(string(x)))
	}
	var p pokemon
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return "", fmt.Errorf("pokeapi: bad JSON: %w", err)
	}
	return p.ArtworkURL(), nil
}
