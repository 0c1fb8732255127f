package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"pokiface/api/internal/match/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  types.AnalysisResult
	}{
		{
			name:  "fenced with surrounding whitespace",
			input: "  ```json\n{\"pokemon_name\":\"Snorlax\",\"description\":\"calm\"}\n```  ",
			want:  types.AnalysisResult{CreatureName: "Snorlax", Description: "calm"},
		},
		{
			name:  "commentary before and after",
			input: "Sure! Here's your match:\n{\"pokemon_name\": \"Gengar\", \"description\": \"You're like Gengar - playful.\"}\nHave fun!",
			want:  types.AnalysisResult{CreatureName: "Gengar", Description: "You're like Gengar - playful."},
		},
		{
			name:  "plain fence and nested data",
			input: "```\n{\"pokemon_name\":\"Mr. Mime\",\"description\":\"theatrical {really}\",\"extra\":{\"a\":1}}\n```",
			want:  types.AnalysisResult{CreatureName: "Mr. Mime", Description: "theatrical {really}"},
		},
		{
			name:  "name alias",
			input: `{"name":"Eevee","description":"adaptable"}`,
			want:  types.AnalysisResult{CreatureName: "Eevee", Description: "adaptable"},
		},
		{
			name:  "values are trimmed",
			input: `{"pokemon_name":"  Mew ","description":" rare "}`,
			want:  types.AnalysisResult{CreatureName: "Mew", Description: "rare"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{
		"Sorry, I cannot help.",
		"",
		"{",
		"}{",
		`{"pokemon_name":"Pikachu"}`,
		`{"description":"no name"}`,
		`{"pokemon_name":"","description":"empty name"}`,
		`{"pokemon_name":"Ditto","description":"   "}`,
		`{"pokemon_name": 42, "description": "wrong type"}`,
	} {
		_, ok := Parse(in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestNormalizeFallback(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	n := NewNormalizer(zap.New(core))

	got := n.Normalize("Sorry, I cannot help.")
	assert.True(t, got.Fallback)
	assert.True(t, IsFallback(got))
	assert.NotEmpty(t, got.CreatureName)
	assert.NotEmpty(t, got.Description)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Sorry, I cannot help.", entry.ContextMap()["raw"])
}

func TestNormalizeFallbackAlwaysMember(t *testing.T) {
	n := NewNormalizer(nil)
	for i := 0; i < 50; i++ {
		got := n.Normalize("no json here")
		assert.True(t, IsFallback(got))
	}
}

func TestNormalizePicker(t *testing.T) {
	n := NewNormalizer(nil).WithPicker(func(int) int { return 2 })
	got := n.Normalize("nope")
	assert.Equal(t, "Snorlax", got.CreatureName)
}

func TestNormalizeParsedIsNotFallback(t *testing.T) {
	got := NewNormalizer(nil).Normalize(`{"pokemon_name":"Pikachu","description":"zappy"}`)
	assert.False(t, got.Fallback)
	assert.Equal(t, "Pikachu", got.CreatureName)
	assert.Equal(t, "zappy", got.Description)
}

func TestFallbacksAreWellFormed(t *testing.T) {
	require.GreaterOrEqual(t, len(Fallbacks), 5)
	for _, fb := range Fallbacks {
		assert.NotEmpty(t, fb.CreatureName)
		assert.NotEmpty(t, fb.Description)
	}
}
