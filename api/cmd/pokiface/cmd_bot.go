package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pokiface/api/internal/config"
	"pokiface/api/internal/httpserver"
	"pokiface/api/internal/presenter"
	"pokiface/api/internal/telegram"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	Long: `Runs the Telegram front-end. With WEBHOOK_URL set the bot registers a webhook and serves
it next to the HTTP API; otherwise it long-polls. Without a server-side GEMINI_API_KEY every
chat must set its own key with /key.`,
	RunE: runBot,
}

func init() {
	rootCmd.AddCommand(botCmd)
}

func runBot(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, "")
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.TelegramBotToken == "" {
		return errors.New("missing required env TELEGRAM_BOT_TOKEN")
	}
	bot, err := tgbotapi.NewBotAPI(a.cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = false

	opts := presenter.DefaultOptions()
	opts.AnalyzeTimeout = a.cfg.AnalyzeTimeout
	opts.Placeholder = a.cfg.PlaceholderURL
	opts.ShareLink = a.cfg.ShareLink
	if err := a.cfg.Validate(); err != nil {
		if a.cfg.Provider != config.ProviderGemini {
			return fmt.Errorf("config: %w", err)
		}
		a.log.Info("no server-side key; chats bring their own", zap.Error(err))
		opts.RequireCredential = true
	}

	r := &telegram.Router{
		Bot:         bot,
		Matcher:     a.service,
		Credentials: a.creds,
		Options:     opts,
		Log:         a.log,
	}
	if len(a.byEngine) > 1 {
		r.Matchers = make(map[string]presenter.Matcher, len(a.byEngine))
		for name, svc := range a.byEngine {
			r.Matchers[name] = svc
		}
	}
	defer func() {
		r.Wait()
		r.Close()
	}()

	mux := http.NewServeMux()
	a.handler().Register(mux)
	addr := "0.0.0.0:" + a.cfg.Port

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpserver.Run(gctx, addr, mux, a.log) })
	g.Go(func() error { return a.purgeHistory(gctx) })

	if base := strings.TrimSpace(a.cfg.WebhookURL); base != "" {
		if err := startWebhook(gctx, bot, r, mux, base, a.log); err != nil {
			stop()
			_ = g.Wait()
			return err
		}
	} else {
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			a.log.Warn("delete webhook", zap.Error(err))
		}
		g.Go(func() error {
			runPolling(gctx, bot, a.log, func(upd tgbotapi.Update) { r.HandleUpdate(gctx, upd) })
			return nil
		})
	}
	return g.Wait()
}

// startWebhook registers the public URL with Telegram and mounts the update handler on mux.
func startWebhook(ctx context.Context, bot *tgbotapi.BotAPI, r *telegram.Router, mux *http.ServeMux, baseURL string, log *zap.Logger) error {
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return err
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	mux.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		upd, err := bot.HandleUpdate(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		r.HandleUpdate(ctx, *upd)
	})
	log.Info("webhook registered", zap.String("path", path))
	return nil
}

// pollBackoff picks the wait before the next getUpdates after err. Telegram's own
// retry_after wins; rate limits without one wait 3s, timeouts 2s, anything else 1s.
func pollBackoff(err error) time.Duration {
	if err == nil {
		return 0
	}
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		if tgErr.RetryAfter > 0 {
			return time.Duration(tgErr.RetryAfter) * time.Second
		}
		if tgErr.Code == http.StatusTooManyRequests {
			return 3 * time.Second
		}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return time.Second
}

func clampDelay(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// runPolling long-polls until ctx ends. Errors back off and never stop the loop.
func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, log *zap.Logger, handle func(tgbotapi.Update)) {
	offset := 0
	for {
		if ctx.Err() != nil {
			log.Info("polling stopped")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := clampDelay(pollBackoff(err), time.Second, 15*time.Second)
			log.Warn("polling error", zap.Error(err), zap.Duration("retry_in", d))
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}
		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])[:16]
}
