package telegram

import (
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pokiface/api/internal/match/types"
	"pokiface/api/internal/presenter"
	"pokiface/api/internal/upload"
)

const (
	cbShare = "share"
	cbReset = "reset"
)

func makeResultKeyboard() tgbotapi.InlineKeyboardMarkup {
	share := tgbotapi.NewInlineKeyboardButtonData("Share", cbShare)
	again := tgbotapi.NewInlineKeyboardButtonData("Try another photo", cbReset)
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(share, again))
}

// chatUI renders the presenter screen as messages in one chat. Messages cannot be taken
// back, so the hide operations are no-ops.
type chatUI struct {
	bot    Sender
	chatID int64
	modes  *chatModes

	mu      sync.Mutex
	pending types.Match
}

var _ presenter.UI = (*chatUI)(nil)

func (u *chatUI) send(c tgbotapi.Chattable) error {
	_, err := u.bot.Send(c)
	return err
}

func (u *chatUI) text(s string) {
	_ = u.send(tgbotapi.NewMessage(u.chatID, s))
}

func (u *chatUI) ShowCredentialPrompt(saved string) {
	u.modes.set(u.chatID, modeAwaitKey)
	msg := "Send me your Gemini API key (or use /key <key>). You can get one at https://aistudio.google.com/apikey"
	if saved != "" {
		msg += fmt.Sprintf("\n\nA key ending in %q is already saved; send a new one to replace it.", lastN(saved, 4))
	}
	u.text(msg)
}

func (u *chatUI) HideCredentialPrompt() { u.modes.clear(u.chatID) }

func (u *chatUI) ShowUserImage(upload.File) {}

func (u *chatUI) ShowLoading() {
	_ = u.send(tgbotapi.NewChatAction(u.chatID, tgbotapi.ChatUploadPhoto))
	u.text("Looking for your Pokémon twin…")
}

func (u *chatUI) HideLoading() {}

func (u *chatUI) ShowMatch(m types.Match) {
	u.mu.Lock()
	u.pending = m
	u.mu.Unlock()
}

func (u *chatUI) RevealArtwork() {
	u.mu.Lock()
	m := u.pending
	u.mu.Unlock()

	ph := tgbotapi.NewPhoto(u.chatID, tgbotapi.FileURL(m.ArtworkURL))
	ph.Caption = m.CreatureName
	if err := u.send(ph); err != nil {
		// PokeAPI or the placeholder host may be unreachable for Telegram; the name still matters.
		u.text("🎭 " + m.CreatureName)
	}
}

func (u *chatUI) RevealDescription() {
	u.mu.Lock()
	m := u.pending
	u.mu.Unlock()

	msg := tgbotapi.NewMessage(u.chatID, m.Description)
	msg.ReplyMarkup = makeResultKeyboard()
	_ = u.send(msg)
}

func (u *chatUI) ShowToast(kind presenter.ToastKind, msg string) {
	prefix := "✅ "
	if kind == presenter.ToastError {
		prefix = "⚠️ "
	}
	u.text(prefix + msg)
}

func (u *chatUI) HideToast(presenter.ToastKind) {}

func (u *chatUI) Share(text string) error {
	return u.send(tgbotapi.NewMessage(u.chatID, text))
}

func (u *chatUI) Clear() {
	u.mu.Lock()
	u.pending = types.Match{}
	u.mu.Unlock()
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
