package classifier

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"strconv"

	"github.com/zeebo/blake3"

	"aigc_sentinel/internal/aidetect"
)

// ProbabilityStore is the persistence the cache needs; *db.Store satisfies it.
type ProbabilityStore interface {
	LookupProbability(key string) (float64, bool, error)
	StoreProbability(key, model string, p float64) error
}

// Cached memoizes an inner classifier by paragraph text. It is the one place
// raw classifier probabilities are written to disk, so it is only wired in
// when cache_enabled is set; scores and results are never stored. Store
// failures are logged and bypassed.
type Cached struct {
	inner       aidetect.Classifier
	store       ProbabilityStore
	model       string
	temperature float64
	logger      *slog.Logger
}

func NewCached(inner aidetect.Classifier, store ProbabilityStore, model string, temperature float64, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cached{inner: inner, store: store, model: model, temperature: temperature, logger: logger}
}

func (c *Cached) Load(ctx context.Context) error {
	if loader, ok := c.inner.(aidetect.Loader); ok {
		return loader.Load(ctx)
	}
	return nil
}

func (c *Cached) Classify(ctx context.Context, text string) (float64, error) {
	key := CacheKey(c.model, c.temperature, text)
	if p, ok, err := c.store.LookupProbability(key); err != nil {
		c.logger.Warn("classifier cache lookup failed", "stage", "SCORE", "error", err)
	} else if ok {
		return p, nil
	}

	p, err := c.inner.Classify(ctx, text)
	if err != nil {
		return 0, err
	}
	if err := c.store.StoreProbability(key, c.model, p); err != nil {
		c.logger.Warn("classifier cache write failed", "stage", "SCORE", "error", err)
	}
	return p, nil
}

// CacheKey hashes everything that changes a raw probability.
func CacheKey(model string, temperature float64, text string) string {
	h := blake3.New()
	_, _ = h.Write([]byte(model))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strconv.FormatFloat(temperature, 'g', -1, 64)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
