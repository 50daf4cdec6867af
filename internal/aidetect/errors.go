package aidetect

import (
	"errors"
	"fmt"
)

var (
	// ErrEnvironmentConflict marks classifier failures caused by an
	// incompatible runtime or library version on the inference side.
	ErrEnvironmentConflict = errors.New("environment version conflict")
	// ErrModelPathInvalid marks a classifier that cannot be used at all.
	ErrModelPathInvalid = errors.New("model path invalid")
	ErrCancelled        = errors.New("scoring cancelled")
	ErrBusy             = errors.New("a scoring run is already in progress")
)

const environmentRemedy = "upgrade the inference runtime (pip install --upgrade torch torchvision torchaudio)"

type FailureKind string

const (
	EnvironmentConflict FailureKind = "environment_conflict"
	ModelPathInvalid    FailureKind = "model_path_invalid"
	InferenceError      FailureKind = "inference_error"
)

// ScoringFailure is returned instead of a Result when a run cannot complete.
// InferenceError failures are recovered per paragraph and only ever reach logs.
type ScoringFailure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *ScoringFailure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Kind, f.Message)
	}
	return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
}

func (f *ScoringFailure) Unwrap() error {
	return f.Err
}

func IsEnvironmentConflict(err error) bool {
	return errors.Is(err, ErrEnvironmentConflict)
}

// FailureKindOf reports the kind of a run error, or "" when err is not a
// ScoringFailure.
func FailureKindOf(err error) FailureKind {
	var f *ScoringFailure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

func environmentFailure(err error) *ScoringFailure {
	return &ScoringFailure{
		Kind:    EnvironmentConflict,
		Message: "classifier runtime version conflict; " + environmentRemedy,
		Err:     err,
	}
}

func loadFailure(err error) *ScoringFailure {
	if IsEnvironmentConflict(err) {
		return environmentFailure(err)
	}
	if !errors.Is(err, ErrModelPathInvalid) {
		err = fmt.Errorf("%w: %w", ErrModelPathInvalid, err)
	}
	return &ScoringFailure{
		Kind:    ModelPathInvalid,
		Message: "classifier could not be loaded",
		Err:     err,
	}
}
