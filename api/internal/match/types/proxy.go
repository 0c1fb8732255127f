package types

// TwinRequest is the inbound body of the proxy function.
type TwinRequest struct {
	Image    string `json:"image"`    // base64, data: URL prefix tolerated
	MimeType string `json:"mimeType"` // image/jpeg | image/png
}

type ArtworkResponse struct {
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	ArtworkURL string `json:"artwork_url"`
}

type ValidateCredentialRequest struct {
	Key string `json:"key"`
}

type ValidateCredentialResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}
