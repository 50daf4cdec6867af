package aidetect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"aigc_sentinel/internal/chunk"
)

// Config holds the scoring knobs of the core. Temperature is not here: it is
// applied where logits become probabilities, in the classifier.
type Config struct {
	MinValidChars int
	PowerFactor   float64
	LengthPolicy  string
}

func DefaultConfig() Config {
	return Config{
		MinValidChars: 10,
		PowerFactor:   3.5,
		LengthPolicy:  LengthPolicyStripped,
	}
}

const (
	percentLoading = 10
	percentReady   = 30
	percentScoring = 65
	percentDone    = 100
)

// Engine scores documents. It holds configuration only; every Run builds its
// own aggregator and validity policy, so one Engine may serve concurrent runs.
type Engine struct {
	cfg    Config
	length LengthFunc
	logger *slog.Logger
}

func NewEngine(cfg Config, logger *slog.Logger) (*Engine, error) {
	length, err := LengthFuncFor(cfg.LengthPolicy)
	if err != nil {
		return nil, err
	}
	if cfg.PowerFactor <= 0 {
		return nil, fmt.Errorf("power factor must be positive, got %v", cfg.PowerFactor)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{cfg: cfg, length: length, logger: logger}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Run scores text paragraph by paragraph with c and returns the aggregate.
//
// A nil classifier or a failing Loader yields a ModelPathInvalid failure
// before any paragraph is touched. A classifier error wrapping
// ErrEnvironmentConflict aborts the run. Any other classifier error drops that
// paragraph from both the output and the total; the caller only sees the
// count in Result.Dropped. Cancellation of ctx is checked before each
// classifier call and returns an error wrapping ErrCancelled with no partial
// result.
//
// onProgress is invoked from the calling goroutine; use a Worker to receive
// events asynchronously.
func (e *Engine) Run(ctx context.Context, text string, c Classifier, onProgress ProgressFn) (Result, error) {
	runID := uuid.NewString()
	log := e.logger.With("run_id", runID)
	emit := func(ev Event) {
		if onProgress != nil {
			ev.Kind = EventProgress
			onProgress(ev)
		}
	}
	started := time.Now()

	if c == nil {
		log.Error("classifier unavailable", "stage", "LOAD")
		return Result{}, &ScoringFailure{Kind: ModelPathInvalid, Message: "no classifier configured", Err: ErrModelPathInvalid}
	}

	emit(Event{State: StateLoading, Percent: percentLoading})
	if loader, ok := c.(Loader); ok {
		if err := loader.Load(ctx); err != nil {
			if ctx.Err() != nil {
				return Result{}, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
			}
			log.Error("classifier load failed", "stage", "LOAD", "error", err)
			return Result{}, loadFailure(err)
		}
	}
	emit(Event{State: StateScoring, Percent: percentReady})

	paragraphs := chunk.Paragraphs(text)
	result := Result{RunID: runID, Paragraphs: []ScoredParagraph{}}
	if len(paragraphs) == 0 {
		log.Info("nothing to score", "stage", "SCORE")
		return result, nil
	}
	log.Info("scoring run started", "stage", "SCORE", "paragraphs", len(paragraphs))

	policy := NewValidityPolicy(e.cfg.MinValidChars, e.length)
	var agg Aggregator
	total := len(paragraphs)
	for i, p := range paragraphs {
		if err := ctx.Err(); err != nil {
			log.Info("scoring run cancelled", "stage", "SCORE", "index", i, "total", total)
			return Result{}, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		raw, err := c.Classify(ctx, p.Text)
		switch {
		case err == nil:
			scored := e.score(p, raw, policy)
			result.Paragraphs = append(result.Paragraphs, scored)
			if !scored.IsIgnored {
				agg.Add(scored.AIScore, scored.Weight)
			}
		case IsEnvironmentConflict(err):
			log.Error("classifier environment conflict", "stage", "SCORE", "index", i, "error", err)
			return Result{}, environmentFailure(err)
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			return Result{}, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		default:
			failure := &ScoringFailure{Kind: InferenceError, Message: fmt.Sprintf("paragraph %d dropped", i), Err: err}
			log.Warn("paragraph classification failed", "stage", "SCORE", "index", i, "error", failure)
			result.Dropped++
		}

		emit(Event{
			State:   StateScoring,
			Index:   i,
			Total:   total,
			Percent: percentReady + int(float64(i+1)/float64(total)*percentScoring),
		})
	}

	result.TotalAIRate = agg.Finalize()
	log.Info("scoring run completed", "stage", "AGGREGATE",
		"paragraphs", len(result.Paragraphs),
		"dropped", result.Dropped,
		"total_ai_rate", result.TotalAIRate,
		"duration_ms", time.Since(started).Milliseconds())
	return result, nil
}

func (e *Engine) score(p chunk.Paragraph, raw float64, policy *ValidityPolicy) ScoredParagraph {
	bonus := HumanBonus(p.Text)
	score := Calibrate(raw, bonus, e.cfg.PowerFactor)
	validity := policy.Evaluate(p.Text)
	return ScoredParagraph{
		Index:     p.Index,
		Content:   p.Text,
		AIScore:   score,
		Weight:    validity.Weight,
		IsIgnored: validity.IsIgnored,
		Band:      BandFor(score),
	}
}
