package match

import (
	"encoding/json"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"pokiface/api/internal/match/types"
	"pokiface/api/internal/util"
)

// Fallbacks are returned when the model's text cannot be turned into a result.
var Fallbacks = []types.AnalysisResult{
	{
		CreatureName: "Pikachu",
		Description:  "You're like Pikachu - energetic and friendly! Your bright eyes and cheerful expression show an electric personality that lights up any room.",
	},
	{
		CreatureName: "Eevee",
		Description:  "You're like Eevee - adaptable and charming! Your versatile features suggest someone who can fit into any situation with grace and style.",
	},
	{
		CreatureName: "Snorlax",
		Description:  "You're like Snorlax - calm and dependable! Your relaxed expression and gentle features show someone who brings peace and comfort to others.",
	},
	{
		CreatureName: "Psyduck",
		Description:  "You're like Psyduck - thoughtful and unique! Your expressive eyes suggest a deep thinker who sees the world in interesting ways.",
	},
	{
		CreatureName: "Jigglypuff",
		Description:  "You're like Jigglypuff - sweet and endearing! Your soft features and gentle expression show someone who brings joy and melody to life.",
	},
}

// Normalizer turns free-form provider text into an AnalysisResult. It never fails.
type Normalizer struct {
	log  *zap.Logger
	pick func(n int) int
}

func NewNormalizer(log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{log: log, pick: rand.IntN}
}

// WithPicker replaces the fallback selector; pick must return a value in [0, n).
func (n *Normalizer) WithPicker(pick func(n int) int) *Normalizer {
	if pick != nil {
		n.pick = pick
	}
	return n
}

func (n *Normalizer) Normalize(raw string) types.AnalysisResult {
	if r, ok := Parse(raw); ok {
		return r
	}
	fb := Fallbacks[n.pick(len(Fallbacks))]
	fb.Fallback = true
	n.log.Warn("unparsable model response, using fallback",
		zap.String("raw", util.Truncate(raw, 2000)),
		zap.String("fallback", fb.CreatureName))
	return fb
}

type rawResult struct {
	PokemonName  string `json:"pokemon_name"`
	Name         string `json:"name"`
	CreatureName string `json:"creature_name"`
	Description  string `json:"description"`
}

// Parse extracts name and description from raw model text. ok is false when either
// field is missing or empty, or when no JSON object can be found.
func Parse(raw string) (types.AnalysisResult, bool) {
	s := util.StripCodeFences(raw)
	if obj, found := util.FirstJSONObject(s); found {
		s = obj
	} else {
		return types.AnalysisResult{}, false
	}

	var rr rawResult
	if err := json.Unmarshal([]byte(s), &rr); err != nil {
		return types.AnalysisResult{}, false
	}
	name := firstNonEmpty(rr.PokemonName, rr.Name, rr.CreatureName)
	desc := strings.TrimSpace(rr.Description)
	if name == "" || desc == "" {
		return types.AnalysisResult{}, false
	}
	return types.AnalysisResult{CreatureName: name, Description: desc}, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// IsFallback reports whether r is one of the canned fallback entries.
func IsFallback(r types.AnalysisResult) bool {
	for _, fb := range Fallbacks {
		if fb.CreatureName == r.CreatureName && fb.Description == r.Description {
			return true
		}
	}
	return false
}
