package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"pokiface/api/internal/match/types"
	"pokiface/api/internal/presenter"
	"pokiface/api/internal/upload"
)

// UI prints the presenter screen to a writer. Nothing is ever erased, so hide calls are no-ops
// apart from loading, which ends the progress line.
type UI struct {
	mu      sync.Mutex
	w       io.Writer
	pending types.Match
	shared  string
}

var _ presenter.UI = (*UI)(nil)

func New(w io.Writer) *UI { return &UI{w: w} }

func (u *UI) println(s string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintln(u.w, s)
}

func (u *UI) ShowCredentialPrompt(saved string) {
	msg := "No API key. Set GEMINI_API_KEY or pass --key."
	if saved != "" {
		msg = "Saved API key ends in " + saved[max(0, len(saved)-4):]
	}
	u.println(mutedStyle.Render(msg))
}

func (u *UI) HideCredentialPrompt() {}

func (u *UI) ShowUserImage(f upload.File) {
	u.println(mutedStyle.Render(fmt.Sprintf("📷 %s (%s, %d KiB)", f.Name, f.MIMEType, f.Size/1024)))
}

func (u *UI) ShowLoading() {
	u.println(mutedStyle.Render("Analyzing your face…"))
}

func (u *UI) HideLoading() {}

func (u *UI) ShowMatch(m types.Match) {
	u.mu.Lock()
	u.pending = m
	u.mu.Unlock()
}

func (u *UI) RevealArtwork() {
	u.mu.Lock()
	m := u.pending
	u.mu.Unlock()
	u.println(titleStyle.Render("Your Pokémon twin: ") + nameStyle.Render(m.CreatureName))
	u.println(mutedStyle.Render(m.ArtworkURL))
}

func (u *UI) RevealDescription() {
	u.mu.Lock()
	m := u.pending
	u.mu.Unlock()
	u.println(cardStyle.Render(m.Description))
}

func (u *UI) ShowToast(kind presenter.ToastKind, msg string) {
	if kind == presenter.ToastError {
		u.println(errorStyle.Render("✗ " + msg))
		return
	}
	u.println(okStyle.Render("✓ " + msg))
}

func (u *UI) HideToast(presenter.ToastKind) {}

// Share prints the text unstyled so it can be copied as is.
func (u *UI) Share(text string) error {
	u.mu.Lock()
	u.shared = text
	u.mu.Unlock()
	u.println("\n" + strings.TrimSpace(text))
	return nil
}

func (u *UI) Clear() {
	u.mu.Lock()
	u.pending = types.Match{}
	u.mu.Unlock()
}
