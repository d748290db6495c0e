package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zombor/warrantysafe/internal/extraction"
	"github.com/zombor/warrantysafe/internal/lifecycle"
	"github.com/zombor/warrantysafe/internal/record"
	"github.com/zombor/warrantysafe/internal/scanning"
)

// Recoverer produces text from a document without failing
type Recoverer interface {
	Recover(ctx context.Context, doc scanning.Document) scanning.ExtractedText
}

// Result is everything produced for one document
type Result struct {
	Document   string                 `json:"document"`
	Record     record.Record          `json:"record"`
	Assessment lifecycle.Assessment   `json:"assessment"`
	Text       scanning.ExtractedText `json:"text"`
}

// Engine turns documents into warranty records. It keeps no state between calls.
type Engine struct {
	recoverer Recoverer
	extractor *extraction.Extractor
	policy    record.Policy
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithClock sets the time source used for fallback dates and classification
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithPolicy sets the normalizer policy
func WithPolicy(p record.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithExtractor replaces the default field extractor
func WithExtractor(x *extraction.Extractor) Option {
	return func(e *Engine) { e.extractor = x }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine
func New(r Recoverer, opts ...Option) *Engine {
	e := &Engine{
		recoverer: r,
		extractor: extraction.New(extraction.DefaultBrands),
		policy:    record.DefaultPolicy,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process runs one document through recovery, extraction, normalization and classification.
// The only error is ctx's: when the caller abandons the request the result is discarded.
func (e *Engine) Process(ctx context.Context, doc scanning.Document) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	text := e.recoverer.Recover(ctx, doc)
	if err := ctx.Err(); err != nil {
		e.logger.Info("discarding abandoned extraction", "document", doc.Name)
		return Result{}, err
	}

	// the placeholder only names the file; the file name fallback covers it
	var partial extraction.Partial
	if text.Provenance != scanning.ProvenanceUnsupported {
		partial = e.extractor.Extract(text.Text)
	}

	now := e.now()
	rec := extraction.Normalize(partial, doc.Name, now, e.policy)
	res := Result{
		Document:   doc.Name,
		Record:     rec,
		Assessment: lifecycle.Classify(rec, now),
		Text:       text,
	}

	e.logger.Info("document processed",
		"document", doc.Name,
		"provenance", text.Provenance,
		"fallbacks", len(rec.Fallbacks),
		"status", res.Assessment.Status,
	)
	return res, nil
}

// ProcessAll processes docs concurrently, at most limit at a time (unbounded when limit <= 0).
// Results are in input order.
func (e *Engine) ProcessAll(ctx context.Context, docs []scanning.Document, limit int) ([]Result, error) {
	results := make([]Result, len(docs))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, doc := range docs {
		g.Go(func() error {
			res, err := e.Process(ctx, doc)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Classify assesses a stored record at the engine's current time
func (e *Engine) Classify(rec record.Record) lifecycle.Assessment {
	return lifecycle.Classify(rec, e.now())
}

// Now returns the engine's current time
func (e *Engine) Now() time.Time {
	return e.now()
}
