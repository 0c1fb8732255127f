package match

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"pokiface/api/internal/match/types"
)

type ArtworkResolver interface {
	Resolve(ctx context.Context, name string) string
}

// Recorder persists finished matches. Failures are logged, never returned to the caller.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

type Record struct {
	ImageHash string
	Engine    string
	Model     string
	Match     types.Match
	Fallback  bool
	CreatedAt time.Time
}

// Service runs one engine, normalizes its text and attaches artwork.
type Service struct {
	engine  Engine
	norm    *Normalizer
	artwork ArtworkResolver
	rec     Recorder
	prompt  string
	log     *zap.Logger
}

type Option func(*Service)

func WithRecorder(r Recorder) Option { return func(s *Service) { s.rec = r } }

func WithPrompt(p string) Option {
	return func(s *Service) {
		if p != "" {
			s.prompt = p
		}
	}
}

func NewService(engine Engine, artwork ArtworkResolver, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		engine:  engine,
		artwork: artwork,
		prompt:  SystemPrompt,
		log:     log.With(zap.String("engine", engine.Name()), zap.String("model", engine.GetModel())),
	}
	for _, o := range opts {
		o(s)
	}
	if s.norm == nil {
		s.norm = NewNormalizer(s.log)
	}
	return s
}

// Analyze sends the image to the engine. Provider failures are returned; unparsable
// text becomes a fallback result.
func (s *Service) Analyze(ctx context.Context, credential string, image []byte, mime string) (types.AnalysisResult, error) {
	req := types.AnalysisRequest{Image: image, MIMEType: mime, Prompt: s.prompt}

	started := time.Now()
	raw, err := s.engine.Analyze(ctx, credential, req)
	if err != nil {
		s.log.Error("analysis failed", zap.Error(err), zap.Duration("took", time.Since(started)))
		return types.AnalysisResult{}, err
	}
	s.log.Debug("raw model response", zap.String("raw", raw), zap.Duration("took", time.Since(started)))
	return s.norm.Normalize(raw), nil
}

// Match is Analyze followed by artwork resolution. The returned ArtworkURL is never empty.
func (s *Service) Match(ctx context.Context, credential string, image []byte, mime string) (types.Match, error) {
	res, err := s.Analyze(ctx, credential, image, mime)
	if err != nil {
		return types.Match{}, err
	}
	m := types.Match{AnalysisResult: res, ArtworkURL: s.artwork.Resolve(ctx, res.CreatureName)}

	if s.rec != nil {
		rec := Record{
			ImageHash: ImageHash(image),
			Engine:    s.engine.Name(),
			Model:     s.engine.GetModel(),
			Match:     m,
			Fallback:  res.Fallback,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.rec.Record(ctx, rec); err != nil {
			s.log.Warn("record match", zap.Error(err))
		}
	}
	return m, nil
}

func ImageHash(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
