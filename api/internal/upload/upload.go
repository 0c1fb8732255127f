package upload

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxSize is the upload ceiling in bytes.
const MaxSize = 10 * 1024 * 1024

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image too large")
	ErrEmpty           = errors.New("empty image")
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// Message renders an upload error for the person who made the upload.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedType):
		return "Please upload a JPG or PNG image file"
	case errors.Is(err, ErrTooLarge):
		return "Image size should be less than 10MB"
	case errors.Is(err, ErrEmpty):
		return "Please upload an image first"
	default:
		return "Failed to read the image. Please try again."
	}
}

// File is an uploaded photo as the front-end sees it.
type File struct {
	Name     string
	MIMEType string
	Size     int64
	Data     []byte
}

func normalizeMIME(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	return m
}

func Allowed(mime string) bool { return allowedTypes[normalizeMIME(mime)] }

// Accept checks type and size. It does not touch any state.
func Accept(f File) error {
	if !Allowed(f.MIMEType) {
		return fmt.Errorf("%w (got %q)", ErrUnsupportedType, f.MIMEType)
	}
	size := f.Size
	if size == 0 {
		size = int64(len(f.Data))
	}
	if size > MaxSize {
		return fmt.Errorf("%w (got %d bytes)", ErrTooLarge, size)
	}
	if size == 0 {
		return ErrEmpty
	}
	return nil
}

// ToBase64 returns the raw base64 payload of f with no data-URL prefix.
func ToBase64(f File) (string, error) {
	if len(f.Data) == 0 {
		return "", ErrEmpty
	}
	return base64.StdEncoding.EncodeToString(f.Data), nil
}

// DataURL wraps a base64 payload as data:<mime>;base64,<payload>.
func DataURL(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}

// DetectMIME sniffs the content type from the payload.
func DetectMIME(data []byte) string {
	return normalizeMIME(mimetype.Detect(data).String())
}

// FromBytes builds a File whose type is the declared one, or the sniffed one when the
// declaration is empty.
func FromBytes(name, declared string, data []byte) File {
	mime := normalizeMIME(declared)
	if mime == "" {
		mime = DetectMIME(data)
	}
	return File{Name: name, MIMEType: mime, Size: int64(len(data)), Data: data}
}

// Decode turns a base64 (or data: URL) payload into a File. declared wins over the
// data-URL MIME when both are present. URL-safe base64 is accepted too.
func Decode(payload, declared string) (File, error) {
	payload = strings.TrimSpace(payload)
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		meta, b64, found := strings.Cut(rest, ",")
		if found {
			payload = b64
			if strings.TrimSpace(declared) == "" {
				declared, _, _ = strings.Cut(meta, ";")
			}
		}
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		var urlErr error
		if data, urlErr = base64.URLEncoding.DecodeString(payload); urlErr != nil {
			return File{}, fmt.Errorf("bad image base64: %w", err)
		}
	}
	return FromBytes("", declared, data), nil
}
