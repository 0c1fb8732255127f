package types

// AnalysisRequest is built once per upload and handed to exactly one engine call.
type AnalysisRequest struct {
	Image    []byte
	MIMEType string
	Prompt   string
}

// AnalysisResult is what the normalizer produces: both fields are always non-empty.
type AnalysisResult struct {
	CreatureName string `json:"pokemon_name"`
	Description  string `json:"description"`

	// Fallback is set when the provider text could not be parsed and a canned entry was used.
	Fallback bool `json:"-"`
}

// Match is an analysis result paired with the artwork it will be shown with.
type Match struct {
	AnalysisResult
	ArtworkURL string `json:"artwork_url"`
}
