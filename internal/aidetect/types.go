package aidetect

import "context"

// Classifier is the opaque model boundary. Classify returns the probability of
// the machine-generated class for one paragraph, already computed as a softmax
// over temperature-scaled logits. Errors wrapping ErrEnvironmentConflict abort
// the whole run; any other error only drops the paragraph.
type Classifier interface {
	Classify(ctx context.Context, text string) (float64, error)
}

// Loader is implemented by classifiers that need a readiness step before the
// first paragraph, such as resolving a model directory.
type Loader interface {
	Load(ctx context.Context) error
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(ctx context.Context, text string) (float64, error)

func (f ClassifierFunc) Classify(ctx context.Context, text string) (float64, error) {
	return f(ctx, text)
}

type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// BandFor buckets a calibrated score the way results are coloured for users.
func BandFor(score float64) Band {
	switch {
	case score < 30:
		return BandLow
	case score < 60:
		return BandMedium
	default:
		return BandHigh
	}
}

type ScoredParagraph struct {
	Index     int     `json:"index"`
	Content   string  `json:"content"`
	AIScore   float64 `json:"ai_score"`
	Weight    float64 `json:"weight"`
	IsIgnored bool    `json:"is_ignored"`
	Band      Band    `json:"band"`
}

// Result is the terminal artifact of a completed run. Paragraphs whose
// classification failed are absent from Paragraphs; Dropped counts them.
type Result struct {
	RunID       string            `json:"run_id"`
	TotalAIRate float64           `json:"total_ai_rate"`
	Paragraphs  []ScoredParagraph `json:"paragraphs"`
	Dropped     int               `json:"dropped"`
}

type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateScoring   State = "scoring"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

type EventKind string

const (
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
)

// Event is one entry of a run's progress stream. Index is the ordinal of the
// paragraph just processed and Total the paragraph count; both are zero while
// loading.
type Event struct {
	Kind    EventKind `json:"kind"`
	State   State     `json:"state"`
	Index   int       `json:"index"`
	Total   int       `json:"total"`
	Percent int       `json:"percent"`
	Result  *Result   `json:"result,omitempty"`
	Err     error     `json:"-"`
}

type ProgressFn func(Event)
