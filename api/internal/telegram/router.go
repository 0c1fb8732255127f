package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"pokiface/api/internal/presenter"
)

// Sender is the part of *tgbotapi.BotAPI the router uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Router owns one presenter.Controller per chat.
type Router struct {
	Bot         Sender
	Matcher     presenter.Matcher
	Credentials presenter.Credentials
	Options     presenter.Options
	Log         *zap.Logger
	HTTPClient  *http.Client

	// Matchers, keyed by engine name, are what /engine switches between. Matcher is used
	// for chats that never switched.
	Matchers map[string]presenter.Matcher

	chats   sync.Map // chatID -> *session
	engines sync.Map // chatID -> engine name
	modes   chatModes
	wg      sync.WaitGroup
}

type session struct {
	ui   *chatUI
	ctrl *presenter.Controller
}

const helpText = "Send me a selfie and I'll tell you which Pokémon you look like.\n\n" +
	"Commands:\n/key <gemini api key> - set your API key\n/again - analyze the last photo again\n" +
	"/share - get a shareable text of your result\n/engine [gemini|azure] - pick the vision model\n/reset - start over"

func (r *Router) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Router) session(chatID int64) *session {
	if v, ok := r.chats.Load(chatID); ok {
		return v.(*session)
	}
	ui := &chatUI{bot: r.Bot, chatID: chatID, modes: &r.modes}
	opts := r.Options
	if opts.ShareNotice == "" {
		opts.ShareNotice = "Forward the message above to share your twin!"
	}
	s := &session{
		ui:   ui,
		ctrl: presenter.New(fmt.Sprintf("chat:%d", chatID), ui, chatMatcher{r: r, chatID: chatID}, r.Credentials, opts, r.log().With(zap.Int64("chat_id", chatID))),
	}
	actual, loaded := r.chats.LoadOrStore(chatID, s)
	if loaded {
		s.ctrl.Close()
	}
	return actual.(*session)
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	if upd.Message == nil || upd.Message.Chat == nil {
		return
	}
	msg := upd.Message
	cid := msg.Chat.ID

	if msg.IsCommand() {
		r.HandleCommand(ctx, msg)
		return
	}

	if r.modes.get(cid) == modeAwaitKey && strings.TrimSpace(msg.Text) != "" {
		r.saveKey(ctx, cid, msg.Text)
		return
	}

	switch {
	case len(msg.Photo) > 0:
		ph := msg.Photo[len(msg.Photo)-1]
		r.goAnalyze(ctx, cid, ph.FileID, "photo.jpg", "")
	case msg.Document != nil:
		r.goAnalyze(ctx, cid, msg.Document.FileID, msg.Document.FileName, msg.Document.MimeType)
	case msg.Text != "":
		r.send(cid, helpText)
	}
}

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	s := r.session(cid)
	switch msg.Command() {
	case "start":
		r.send(cid, helpText)
		s.ctrl.Start(ctx)
	case "help":
		r.send(cid, helpText)
	case "key":
		if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
			r.saveKey(ctx, cid, arg)
			return
		}
		s.ctrl.OpenSettings(ctx)
	case "again":
		r.goRun(func() { _ = s.ctrl.Analyze(ctx) })
	case "share":
		if err := s.ctrl.Share(); errors.Is(err, presenter.ErrNoResult) {
			r.send(cid, "Nothing to share yet. Send a photo first.")
		}
	case "reset":
		r.reset(cid)
	case "engine":
		r.handleEngineCommand(cid, msg.CommandArguments())
	default:
		r.send(cid, "Unknown command. Try /help")
	}
}

func (r *Router) handleCallback(ctx context.Context, cb tgbotapi.CallbackQuery) {
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	cid := cb.Message.Chat.ID
	switch cb.Data {
	case cbShare:
		if err := r.session(cid).ctrl.Share(); errors.Is(err, presenter.ErrNoResult) {
			r.send(cid, "Nothing to share yet. Send a photo first.")
		}
	case cbReset:
		r.reset(cid)
	}
}

func (r *Router) reset(cid int64) {
	r.session(cid).ctrl.Reset()
	r.send(cid, "Cleared. Send me a new photo!")
}

func (r *Router) saveKey(ctx context.Context, cid int64, key string) {
	// errors are already shown as toasts
	_ = r.session(cid).ctrl.SaveCredential(ctx, key)
}

// Wait blocks until every analysis started by the router has finished.
func (r *Router) Wait() { r.wg.Wait() }

// Close stops the timers of every chat.
func (r *Router) Close() {
	r.chats.Range(func(_, v any) bool {
		v.(*session).ctrl.Close()
		return true
	})
}

func (r *Router) goRun(fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn()
	}()
}

func (r *Router) send(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log().Warn("telegram send", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
