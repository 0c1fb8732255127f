package telegram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokiface/api/internal/credential"
	"pokiface/api/internal/match"
	"pokiface/api/internal/match/azure"
	"pokiface/api/internal/match/types"
	"pokiface/api/internal/presenter"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	fileURL  string
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetFileDirectURL(fileID string) (string, error) {
	if b.fileURL == "" {
		return "", errors.New("no file")
	}
	return b.fileURL + "/" + fileID, nil
}

func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, c := range b.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (b *fakeBot) photos() []tgbotapi.PhotoConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []tgbotapi.PhotoConfig
	for _, c := range b.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

type fakeMatcher struct {
	mu    sync.Mutex
	calls int
	cred  string
	mime  string
}

func (f *fakeMatcher) Match(_ context.Context, cred string, _ []byte, mime string) (types.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.cred = cred
	f.mime = mime
	return types.Match{
		AnalysisResult: types.AnalysisResult{CreatureName: "Eevee", Description: "You're like Eevee - adaptable."},
		ArtworkURL:     "https://art/133.png",
	}, nil
}

type keyProber struct{ good string }

func (p keyProber) Probe(_ context.Context, key string) error {
	if key != p.good {
		return errors.New("status 401")
	}
	return nil
}

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}

func fileServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newRouter(bot *fakeBot, m presenter.Matcher, creds presenter.Credentials, requireKey bool) *Router {
	opts := presenter.DefaultOptions()
	opts.ImageDelay, opts.TextDelay = 0, 0
	opts.RequireCredential = requireKey
	return &Router{Bot: bot, Matcher: m, Credentials: creds, Options: opts}
}

func chat(id int64) *tgbotapi.Chat { return &tgbotapi.Chat{ID: id} }

func command(id int64, text string) tgbotapi.Update {
	name := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     chat(id),
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func photo(id int64) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  chat(id),
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big"}},
	}}
}

func TestPhotoToMatch(t *testing.T) {
	srv := fileServer(t, jpegBytes)
	bot := &fakeBot{fileURL: srv.URL}
	fm := &fakeMatcher{}
	r := newRouter(bot, fm, nil, false)
	defer r.Close()

	r.HandleUpdate(context.Background(), photo(1))
	r.Wait()

	assert.Equal(t, 1, fm.calls)
	assert.Equal(t, "image/jpeg", fm.mime, "photo type is sniffed")

	photos := bot.photos()
	require.Len(t, photos, 1)
	assert.Equal(t, tgbotapi.FileURL("https://art/133.png"), photos[0].File)
	assert.Equal(t, "Eevee", photos[0].Caption)
	assert.True(t, contains(bot.texts(), "You're like Eevee - adaptable."))
}

func TestDocumentWrongType(t *testing.T) {
	srv := fileServer(t, []byte("GIF89a......"))
	bot := &fakeBot{fileURL: srv.URL}
	fm := &fakeMatcher{}
	r := newRouter(bot, fm, nil, false)
	defer r.Close()

	r.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     chat(2),
		Document: &tgbotapi.Document{FileID: "doc", FileName: "me.gif", MimeType: "image/gif"},
	}})
	r.Wait()

	assert.Zero(t, fm.calls)
	assert.True(t, contains(bot.texts(), "Please upload a JPG or PNG image file"))
}

func TestKeyCommandFlow(t *testing.T) {
	srv := fileServer(t, jpegBytes)
	bot := &fakeBot{fileURL: srv.URL}
	fm := &fakeMatcher{}
	mgr := credential.NewManager(credential.NewMemoryStore(), keyProber{good: "AIza-good"}, nil)
	r := newRouter(bot, fm, mgr, true)
	defer r.Close()
	ctx := context.Background()

	r.HandleUpdate(ctx, photo(3))
	r.Wait()
	assert.Zero(t, fm.calls)
	assert.True(t, contains(bot.texts(), "Please set your API key first"))

	r.HandleUpdate(ctx, command(3, "/key AIza-bad"))
	assert.True(t, contains(bot.texts(), "Invalid API key. Please check and try again."))
	_, ok, err := mgr.Load(ctx, "chat:3")
	require.NoError(t, err)
	assert.False(t, ok, "rejected key is cleared")

	// the prompt is open, so plain text is taken as the key
	r.HandleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{Chat: chat(3), Text: "AIza-good"}})
	assert.True(t, contains(bot.texts(), "API key saved successfully!"))

	r.HandleUpdate(ctx, command(3, "/again"))
	r.Wait()
	assert.Equal(t, 1, fm.calls)
	assert.Equal(t, "AIza-good", fm.cred)
}

func TestShareAndResetCallbacks(t *testing.T) {
	srv := fileServer(t, jpegBytes)
	bot := &fakeBot{fileURL: srv.URL}
	r := newRouter(bot, &fakeMatcher{}, nil, false)
	defer r.Close()
	ctx := context.Background()

	r.HandleUpdate(ctx, command(4, "/share"))
	assert.True(t, contains(bot.texts(), "Nothing to share yet"))

	r.HandleUpdate(ctx, photo(4))
	r.Wait()

	cb := func(data string) tgbotapi.Update {
		return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID: "cb", Data: data, Message: &tgbotapi.Message{Chat: chat(4)},
		}}
	}
	r.HandleUpdate(ctx, cb(cbShare))
	assert.True(t, contains(bot.texts(), "I just discovered my Pokémon twin on PokiFace!"))
	assert.True(t, contains(bot.texts(), "Forward the message above to share your twin!"))

	r.HandleUpdate(ctx, cb(cbReset))
	assert.True(t, contains(bot.texts(), "Cleared."))
	assert.Equal(t, presenter.Idle, r.session(4).ctrl.State())
	assert.Len(t, bot.requests, 2, "callbacks are acknowledged")
}

func TestDownloadFailure(t *testing.T) {
	bot := &fakeBot{}
	fm := &fakeMatcher{}
	r := newRouter(bot, fm, nil, false)
	defer r.Close()

	r.HandleUpdate(context.Background(), photo(5))
	r.Wait()
	assert.Zero(t, fm.calls)
	assert.True(t, contains(bot.texts(), "Could not download the photo"))
}

func TestUnknownCommand(t *testing.T) {
	bot := &fakeBot{}
	r := newRouter(bot, &fakeMatcher{}, nil, false)
	defer r.Close()

	r.HandleUpdate(context.Background(), command(6, "/pokedex"))
	assert.Equal(t, []string{"Unknown command. Try /help"}, bot.texts())
}

type namedMatcher struct {
	name  string
	calls *[]string
	mu    *sync.Mutex
}

func (n namedMatcher) Match(context.Context, string, []byte, string) (types.Match, error) {
	n.mu.Lock()
	*n.calls = append(*n.calls, n.name)
	n.mu.Unlock()
	return types.Match{AnalysisResult: types.AnalysisResult{CreatureName: "Psyduck", Description: "d"}, ArtworkURL: "u"}, nil
}

func TestEngineSwitch(t *testing.T) {
	srv := fileServer(t, jpegBytes)
	bot := &fakeBot{fileURL: srv.URL}
	var calls []string
	var mu sync.Mutex
	r := newRouter(bot, namedMatcher{name: "default", calls: &calls, mu: &mu}, nil, false)
	r.Matchers = map[string]presenter.Matcher{
		"gemini": namedMatcher{name: "gemini", calls: &calls, mu: &mu},
		"azure":  namedMatcher{name: "azure", calls: &calls, mu: &mu},
	}
	defer r.Close()
	ctx := context.Background()

	r.HandleUpdate(ctx, photo(7))
	r.Wait()

	r.HandleUpdate(ctx, command(7, "/engine gpt"))
	assert.True(t, contains(bot.texts(), "✅ Engine: azure"))
	r.HandleUpdate(ctx, photo(7))
	r.Wait()

	r.HandleUpdate(ctx, command(7, "/engine yandex"))
	assert.True(t, contains(bot.texts(), "Unknown engine. Available: azure | gemini"))

	r.HandleUpdate(ctx, command(7, "/engine"))
	assert.True(t, contains(bot.texts(), "Current engine: azure"))

	assert.Equal(t, []string{"default", "azure"}, calls)
}

type staticArtwork struct{}

func (staticArtwork) Resolve(context.Context, string) string { return "https://art/94.png" }

func TestChatKeyNeverReachesAzure(t *testing.T) {
	files := fileServer(t, jpegBytes)
	var mu sync.Mutex
	var azureKeys []string
	az := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		azureKeys = append(azureKeys, r.Header.Get("Api-Key"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c","object":"chat.completion","created":1,"model":"gpt-4o-mini",`+
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"pokemon_name\":\"Gengar\",\"description\":\"sly\"}"}}]}`)
	}))
	defer az.Close()

	svc := match.NewService(azure.New(az.URL, "server-azure-key", "gpt-4o-mini", ""), staticArtwork{}, nil)
	bot := &fakeBot{fileURL: files.URL}
	mgr := credential.NewManager(credential.NewMemoryStore(), keyProber{good: "AIza-gemini"}, nil)
	r := newRouter(bot, &fakeMatcher{}, mgr, false)
	r.Matchers = map[string]presenter.Matcher{"azure": svc, "gemini": &fakeMatcher{}}
	defer r.Close()
	ctx := context.Background()

	r.HandleUpdate(ctx, command(8, "/key AIza-gemini"))
	r.HandleUpdate(ctx, command(8, "/engine azure"))
	r.HandleUpdate(ctx, photo(8))
	r.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"server-azure-key"}, azureKeys)
	assert.True(t, contains(bot.texts(), "sly"))
}
