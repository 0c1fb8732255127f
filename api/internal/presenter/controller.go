package presenter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"pokiface/api/internal/credential"
	"pokiface/api/internal/match/types"
	"pokiface/api/internal/upload"
)

var (
	ErrBusy         = errors.New("analysis already in progress")
	ErrNoImage      = errors.New("no image uploaded")
	ErrNoCredential = errors.New("no credential set")
	ErrNoResult     = errors.New("no result to share")
)

const (
	msgBusy          = "Please wait for the current analysis to finish"
	msgNoImage       = "Please upload an image first"
	msgNoCredential  = "Please set your API key first"
	msgAnalyzeFailed = "Failed to analyze image. Please try again."
	msgEmptyKey      = "Please enter your Gemini API key"
	msgInvalidKey    = "Invalid API key. Please check and try again."
	msgKeySaved      = "API key saved successfully!"
	msgCopied        = "Result copied to clipboard!"
	msgCopyFailed    = "Failed to copy result"
)

// Matcher produces a match for an image; the proxy client and match.Service both qualify.
type Matcher interface {
	Match(ctx context.Context, credential string, image []byte, mime string) (types.Match, error)
}

type Credentials interface {
	SaveAndValidate(ctx context.Context, owner, key string) error
	Load(ctx context.Context, owner string) (string, bool, error)
}

type Options struct {
	// RequireCredential makes Analyze refuse to run without a stored key.
	RequireCredential bool

	AnalyzeTimeout time.Duration
	ImageDelay     time.Duration
	TextDelay      time.Duration
	ToastTTL       time.Duration

	Placeholder string
	ShareLink   string
	// ShareNotice replaces the success toast shown after Share.
	ShareNotice string
}

func DefaultOptions() Options {
	return Options{
		AnalyzeTimeout: 30 * time.Second,
		ImageDelay:     500 * time.Millisecond,
		TextDelay:      100 * time.Millisecond,
		ToastTTL:       5 * time.Second,
		Placeholder:    "https://via.placeholder.com/200x200?text=Pokemon",
	}
}

// Controller owns one screen: its state, the current image and the current result.
type Controller struct {
	owner   string
	ui      UI
	matcher Matcher
	creds   Credentials
	opts    Options
	log     *zap.Logger

	mu      sync.Mutex
	state   State
	gen     uint64
	cancel  context.CancelFunc
	image   *upload.File
	current *types.Match
	toasts  map[ToastKind]*time.Timer
	reveal  []*time.Timer

	onTransition func(from, to State)
}

func New(owner string, ui UI, matcher Matcher, creds Credentials, opts Options, log *zap.Logger) *Controller {
	def := DefaultOptions()
	if opts.AnalyzeTimeout <= 0 {
		opts.AnalyzeTimeout = def.AnalyzeTimeout
	}
	if opts.ToastTTL <= 0 {
		opts.ToastTTL = def.ToastTTL
	}
	if opts.Placeholder == "" {
		opts.Placeholder = def.Placeholder
	}
	if opts.ShareNotice == "" {
		opts.ShareNotice = msgCopied
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		owner:   owner,
		ui:      ui,
		matcher: matcher,
		creds:   creds,
		opts:    opts,
		log:     log.With(zap.String("owner", owner)),
		toasts:  make(map[ToastKind]*time.Timer),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the displayed match, if any.
func (c *Controller) Current() (types.Match, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return types.Match{}, false
	}
	return *c.current, true
}

// Start opens the credential prompt when a key is required, pre-filled with the saved one.
func (c *Controller) Start(ctx context.Context) {
	if c.opts.RequireCredential {
		c.OpenSettings(ctx)
	}
}

func (c *Controller) OpenSettings(ctx context.Context) {
	saved := ""
	if c.creds != nil {
		if v, ok, err := c.creds.Load(ctx, c.owner); err == nil && ok {
			saved = v
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ui.ShowCredentialPrompt(saved)
}

// SaveCredential stores key and keeps it only if the provider accepts it.
func (c *Controller) SaveCredential(ctx context.Context, key string) error {
	if c.creds == nil {
		return errors.New("credentials are not configured")
	}
	err := c.creds.SaveAndValidate(ctx, c.owner, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case errors.Is(err, credential.ErrEmptyCredential):
		c.showToast(ToastError, msgEmptyKey)
	case err != nil:
		c.log.Info("credential not accepted", zap.Error(err))
		c.showToast(ToastError, msgInvalidKey)
	default:
		c.ui.HideCredentialPrompt()
		c.showToast(ToastSuccess, msgKeySaved)
	}
	return err
}

// Upload validates f and, when accepted, starts the analysis. A rejected file
// leaves the state untouched.
func (c *Controller) Upload(ctx context.Context, f upload.File) error {
	c.mu.Lock()
	if c.state == Analyzing {
		c.showToast(ToastError, msgBusy)
		c.mu.Unlock()
		return ErrBusy
	}
	if err := upload.Accept(f); err != nil {
		c.showToast(ToastError, upload.Message(err))
		c.mu.Unlock()
		return err
	}
	c.stopReveal()
	c.image = &f
	c.current = nil
	c.transition(Uploaded)
	c.ui.ShowUserImage(f)
	c.mu.Unlock()

	return c.Analyze(ctx)
}

// Analyze runs the current image through the matcher. On failure the screen goes back
// to Uploaded with an error toast.
func (c *Controller) Analyze(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Analyzing {
		c.showToast(ToastError, msgBusy)
		c.mu.Unlock()
		return ErrBusy
	}
	if c.image == nil {
		c.showToast(ToastError, msgNoImage)
		c.mu.Unlock()
		return ErrNoImage
	}
	c.mu.Unlock()

	key := ""
	if c.creds != nil {
		v, ok, err := c.creds.Load(ctx, c.owner)
		if err != nil {
			c.log.Warn("load credential", zap.Error(err))
		}
		if ok {
			key = v
		}
	}

	c.mu.Lock()
	if c.state == Analyzing {
		c.showToast(ToastError, msgBusy)
		c.mu.Unlock()
		return ErrBusy
	}
	if c.image == nil {
		c.showToast(ToastError, msgNoImage)
		c.mu.Unlock()
		return ErrNoImage
	}
	if c.opts.RequireCredential && key == "" {
		c.showToast(ToastError, msgNoCredential)
		c.ui.ShowCredentialPrompt("")
		c.mu.Unlock()
		return ErrNoCredential
	}
	img := *c.image
	c.stopReveal()
	c.current = nil
	c.transition(Analyzing)
	c.ui.ShowLoading()
	gen := c.gen
	actx, cancel := context.WithTimeout(ctx, c.opts.AnalyzeTimeout)
	defer cancel()
	c.cancel = cancel
	c.mu.Unlock()

	m, err := c.matcher.Match(actx, key, img.Data, img.MIMEType)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// reset while the request was in flight
		return context.Canceled
	}
	c.cancel = nil
	if err != nil {
		c.log.Error("analysis error", zap.Error(err))
		c.transition(Error)
		c.ui.HideLoading()
		c.showToast(ToastError, msgAnalyzeFailed)
		c.transition(Uploaded)
		return fmt.Errorf("analyze: %w", err)
	}
	if m.ArtworkURL == "" {
		m.ArtworkURL = c.opts.Placeholder
	}
	c.current = &m
	c.ui.HideLoading()
	c.ui.ShowMatch(m)
	c.transition(Result)
	c.scheduleReveal(gen)
	return nil
}

// Reset clears the image and result and returns to Idle. An in-flight analysis is
// cancelled and its result dropped.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.abort()
	c.stopReveal()
	c.image = nil
	c.current = nil
	c.ui.Clear()
	c.transition(Idle)
}

// Share hands the share text to the UI.
func (c *Controller) Share() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Result || c.current == nil {
		return ErrNoResult
	}
	if err := c.ui.Share(ShareText(*c.current, c.opts.ShareLink)); err != nil {
		c.log.Warn("share failed", zap.Error(err))
		c.showToast(ToastError, msgCopyFailed)
		return err
	}
	c.showToast(ToastSuccess, c.opts.ShareNotice)
	return nil
}

// Close stops pending timers and cancels an in-flight analysis.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abort()
	c.stopReveal()
	for k, t := range c.toasts {
		t.Stop()
		delete(c.toasts, k)
	}
}

func ShareText(m types.Match, link string) string {
	s := fmt.Sprintf("I just discovered my Pokémon twin on PokiFace! 🎭\n\nI'm %s! %s", m.CreatureName, m.Description)
	if link != "" {
		s += "\n\nFind your Pokémon twin at: " + link
	}
	return s
}

// scheduleReveal shows the artwork after ImageDelay and the description TextDelay later.
// Must be called with c.mu held.
func (c *Controller) scheduleReveal(gen uint64) {
	if c.opts.ImageDelay <= 0 && c.opts.TextDelay <= 0 {
		c.ui.RevealArtwork()
		c.ui.RevealDescription()
		return
	}
	t := time.AfterFunc(c.opts.ImageDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen || c.state != Result {
			return
		}
		c.ui.RevealArtwork()
		c.reveal = append(c.reveal, time.AfterFunc(c.opts.TextDelay, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if gen != c.gen || c.state != Result {
				return
			}
			c.ui.RevealDescription()
		}))
	})
	c.reveal = append(c.reveal, t)
}

func (c *Controller) abort() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) stopReveal() {
	for _, t := range c.reveal {
		t.Stop()
	}
	c.reveal = c.reveal[:0]
}

// showToast must be called with c.mu held.
func (c *Controller) showToast(kind ToastKind, msg string) {
	if t, ok := c.toasts[kind]; ok {
		t.Stop()
	}
	c.ui.ShowToast(kind, msg)
	var t *time.Timer
	t = time.AfterFunc(c.opts.ToastTTL, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.toasts[kind] != t {
			return
		}
		delete(c.toasts, kind)
		c.ui.HideToast(kind)
	})
	c.toasts[kind] = t
}

func (c *Controller) transition(to State) {
	from := c.state
	c.state = to
	c.log.Debug("state", zap.Stringer("from", from), zap.Stringer("to", to))
	if c.onTransition != nil {
		c.onTransition(from, to)
	}
}
