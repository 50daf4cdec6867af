package offline

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"aigc_sentinel/internal/aidetect"
	"aigc_sentinel/internal/chunk"
	"aigc_sentinel/internal/classifier"
)

type failTransport struct{}

func (f failTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("network disabled for offline test")
}

func disableNetwork(t *testing.T) {
	t.Helper()
	original := http.DefaultTransport
	http.DefaultTransport = failTransport{}
	t.Cleanup(func() { http.DefaultTransport = original })
}

func TestOfflineScoring(t *testing.T) {
	disableNetwork(t)

	text := strings.Repeat("This is a sentence. It has a few words in it. Short one. ", 20) + "\n" + strings.Repeat("第一句话。第二句话很长很长很长。", 5)
	if len(chunk.Paragraphs(text)) != 2 {
		t.Fatal("expected segmentation to work offline")
	}
	bursty := "Sure. This sentence is much much longer than the one before it, by far. Fine then. Another long and winding sentence follows right here for contrast."
	if aidetect.HumanBonus(bursty) == 0 {
		t.Fatal("expected the style heuristic to work offline")
	}

	engine, err := aidetect.NewEngine(aidetect.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	local := aidetect.ClassifierFunc(func(context.Context, string) (float64, error) { return 0.7, nil })
	res, err := engine.Run(context.Background(), text, local, nil)
	if err != nil {
		t.Fatalf("expected scoring with a local classifier to work offline: %v", err)
	}
	if res.TotalAIRate <= 0 || res.TotalAIRate > 100 {
		t.Fatalf("unexpected total %v", res.TotalAIRate)
	}
}

func TestOfflineHTTPClassifierFailsFast(t *testing.T) {
	disableNetwork(t)

	cfg := classifier.DefaultHTTPConfig()
	cfg.RetryBase = time.Millisecond
	c := classifier.NewHTTP(cfg, nil, nil)

	engine, err := aidetect.NewEngine(aidetect.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	_, err = engine.Run(context.Background(), "A paragraph that cannot reach the classifier.", c, nil)
	if aidetect.FailureKindOf(err) != aidetect.ModelPathInvalid {
		t.Fatalf("expected unreachable classifier to fail as model path invalid, got %v", err)
	}
}
