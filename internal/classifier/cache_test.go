package classifier

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"aigc_sentinel/internal/aidetect"
	"aigc_sentinel/internal/db"
)

type countingClassifier struct {
	calls  int
	loads  int
	result float64
	err    error
}

func (c *countingClassifier) Load(context.Context) error {
	c.loads++
	return nil
}

func (c *countingClassifier) Classify(context.Context, string) (float64, error) {
	c.calls++
	return c.result, c.err
}

type brokenStore struct{}

func (brokenStore) LookupProbability(string) (float64, bool, error) {
	return 0, false, errors.New("disk gone")
}

func (brokenStore) StoreProbability(string, string, float64) error {
	return errors.New("disk gone")
}

func TestCachedMemoizesProbabilities(t *testing.T) {
	store, err := db.OpenStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	inner := &countingClassifier{result: 0.82}
	cached := NewCached(inner, store, "detector", 2.0, nil)

	for i := 0; i < 3; i++ {
		p, err := cached.Classify(context.Background(), "same paragraph")
		if err != nil {
			t.Fatalf("classify: %v", err)
		}
		if p != 0.82 {
			t.Fatalf("expected 0.82, got %v", p)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.calls)
	}

	if _, err := cached.Classify(context.Background(), "another paragraph"); err != nil {
		t.Fatalf("classify: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected a miss for new text, got %d inner calls", inner.calls)
	}

	if err := cached.Load(context.Background()); err != nil || inner.loads != 1 {
		t.Fatalf("expected Load to forward, err=%v loads=%d", err, inner.loads)
	}
	var _ aidetect.Loader = cached
}

func TestCachedBypassesBrokenStore(t *testing.T) {
	inner := &countingClassifier{result: 0.4}
	cached := NewCached(inner, brokenStore{}, "detector", 2.0, nil)
	for i := 0; i < 2; i++ {
		if p, err := cached.Classify(context.Background(), "text"); err != nil || p != 0.4 {
			t.Fatalf("expected bypass to inner, got p=%v err=%v", p, err)
		}
	}
	if inner.calls != 2 {
		t.Fatalf("expected every call to reach the classifier, got %d", inner.calls)
	}
}

func TestCachedDoesNotStoreErrors(t *testing.T) {
	store, err := db.OpenStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	inner := &countingClassifier{err: errors.New("boom")}
	cached := NewCached(inner, store, "detector", 2.0, nil)
	if _, err := cached.Classify(context.Background(), "text"); err == nil {
		t.Fatalf("expected inner error")
	}
	n, err := store.CountRows("classifier_cache")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no cached rows after an error, got %d", n)
	}
}

func TestCacheKeySeparatesInputs(t *testing.T) {
	base := CacheKey("m", 2, "text")
	if base != CacheKey("m", 2, "text") {
		t.Fatalf("expected stable key")
	}
	for _, other := range []string{CacheKey("m2", 2, "text"), CacheKey("m", 1.5, "text"), CacheKey("m", 2, "text2")} {
		if other == base {
			t.Fatalf("expected distinct keys")
		}
	}
	if len(base) != 64 {
		t.Fatalf("expected 32-byte hex key, got %d chars", len(base))
	}
}
