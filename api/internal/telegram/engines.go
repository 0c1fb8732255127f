package telegram

import (
	"context"
	"errors"
	"sort"
	"strings"

	"pokiface/api/internal/match/types"
)

// chatMatcher resolves the chat's engine at call time, so /engine takes effect on the next photo.
type chatMatcher struct {
	r      *Router
	chatID int64
}

func (m chatMatcher) Match(ctx context.Context, cred string, image []byte, mime string) (types.Match, error) {
	if mt := m.r.Matchers[m.r.engineFor(m.chatID)]; mt != nil {
		return mt.Match(ctx, cred, image, mime)
	}
	if m.r.Matcher == nil {
		return types.Match{}, errors.New("no matcher configured")
	}
	return m.r.Matcher.Match(ctx, cred, image, mime)
}

func (r *Router) engineFor(chatID int64) string {
	if v, ok := r.engines.Load(chatID); ok {
		return v.(string)
	}
	return ""
}

func normalizeEngine(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "gpt", "openai":
		return "azure"
	}
	return name
}

func (r *Router) available() string {
	names := make([]string, 0, len(r.Matchers))
	for n := range r.Matchers {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, " | ")
}

// handleEngineCommand: "/engine" shows the current engine, "/engine <name>" switches.
func (r *Router) handleEngineCommand(chatID int64, args string) {
	if len(r.Matchers) == 0 {
		r.send(chatID, "Only one engine is configured.")
		return
	}
	name := normalizeEngine(args)
	if name == "" {
		cur := r.engineFor(chatID)
		if cur == "" {
			cur = "default"
		}
		r.send(chatID, "Current engine: "+cur+"\nUsage: /engine "+r.available())
		return
	}
	if r.Matchers[name] == nil {
		r.send(chatID, "Unknown engine. Available: "+r.available())
		return
	}
	r.engines.Store(chatID, name)
	r.send(chatID, "✅ Engine: "+name)
}
