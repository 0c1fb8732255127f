package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadSystemPrompt reads <dir>/<provider>/<name>.system.txt. Callers fall back to
// their embedded prompt on error.
func LoadSystemPrompt(dir, provider, name string) (string, error) {
	return loadPrompt(dir, provider, name, "system")
}

func loadPrompt(dir, provider, name, tp string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("prompt dir is empty")
	}
	if provider == "" {
		return "", fmt.Errorf("provider is empty")
	}
	p := filepath.Join(dir, strings.ToLower(provider), fmt.Sprintf("%s.%s.txt", name, tp))
	b, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("prompt %q: %w", p, err)
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "", fmt.Errorf("prompt %q is empty", p)
	}
	return s, nil
}
