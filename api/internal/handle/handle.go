package handle

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pokiface/api/internal/credential"
	"pokiface/api/internal/match/types"
	"pokiface/api/internal/store"
)

type Matcher interface {
	Match(ctx context.Context, credential string, image []byte, mime string) (types.Match, error)
}

type ArtworkResolver interface {
	Resolve(ctx context.Context, name string) string
}

type History interface {
	Recent(ctx context.Context, limit int) ([]store.MatchRow, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handle struct {
	matcher Matcher
	artwork ArtworkResolver
	prober  credential.Prober
	history History
	db      Pinger
	timeout time.Duration
	log     *zap.Logger
}

type Option func(*Handle)

// WithHistory enables GET /api/matches.
func WithHistory(h History) Option { return func(x *Handle) { x.history = h } }

// WithDB makes /healthz ping the database.
func WithDB(db Pinger) Option { return func(x *Handle) { x.db = db } }

func WithTimeout(d time.Duration) Option {
	return func(x *Handle) {
		if d > 0 {
			x.timeout = d
		}
	}
}

func New(matcher Matcher, art ArtworkResolver, prober credential.Prober, log *zap.Logger, opts ...Option) *Handle {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handle{
		matcher: matcher,
		artwork: art,
		prober:  prober,
		timeout: 30 * time.Second,
		log:     log,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register mounts every endpoint on mux.
func (h *Handle) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.Healthz)
	mux.HandleFunc("/api/getPokemonTwin", h.withRequestID(h.GetPokemonTwin))
	mux.HandleFunc("/api/artwork", h.withRequestID(h.Artwork))
	mux.HandleFunc("/api/credential/validate", h.withRequestID(h.ValidateCredential))
	mux.HandleFunc("/api/matches", h.withRequestID(h.Matches))
}

func (h *Handle) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type ctxKey struct{}

func (h *Handle) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), ctxKey{}, h.log.With(zap.String("request_id", id)))
		next(w, r.WithContext(ctx))
	}
}

func (h *Handle) logger(r *http.Request) *zap.Logger {
	if l, ok := r.Context().Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return h.log
}

// deadline honours X-Request-Timeout, then ?timeoutSec=, both in seconds.
func (h *Handle) deadline(r *http.Request) time.Duration {
	d := h.timeout
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			d = time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			d = time.Duration(v) * time.Second
		}
	}
	return d
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
