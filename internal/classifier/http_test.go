package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"aigc_sentinel/internal/aidetect"
)

type fakeServer struct {
	modelCalls  atomic.Int32
	logitsCalls atomic.Int32
	failFirst   int32
	modelErr    string
	logitsErr   string
	id2label    map[string]string
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/model", func(w http.ResponseWriter, r *http.Request) {
		f.modelCalls.Add(1)
		if f.modelErr != "" {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: f.modelErr})
			return
		}
		if r.URL.Query().Get("path") != "/models/detector" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: "no such model"})
			return
		}
		_ = json.NewEncoder(w).Encode(modelResponse{ID2Label: f.id2label, MaxLength: 512})
	})
	mux.HandleFunc("/v1/logits", func(w http.ResponseWriter, r *http.Request) {
		n := f.logitsCalls.Add(1)
		if n <= f.failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if f.logitsErr != "" {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: f.logitsErr})
			return
		}
		var req logitsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode logits request: %v", err)
		}
		if req.MaxLength != 512 {
			t.Errorf("expected max_length 512, got %d", req.MaxLength)
		}
		_ = json.NewEncoder(w).Encode(logitsResponse{Logits: []float64{0, 3}})
	})
	return mux
}

func newTestHTTP(url string) *HTTPClassifier {
	cfg := DefaultHTTPConfig()
	cfg.Endpoint = url + "/"
	cfg.ModelPath = "/models/detector"
	cfg.RetryBase = time.Millisecond
	cfg.Timeout = 5 * time.Second
	return NewHTTP(cfg, nil, nil)
}

func TestHTTPClassifierScoresWithTemperature(t *testing.T) {
	fake := &fakeServer{id2label: map[string]string{"0": "Human", "1": "ChatGPT"}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newTestHTTP(srv.URL)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	p, err := c.Classify(context.Background(), "some paragraph")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	want := 1 / (1 + math.Exp(-1.5))
	if math.Abs(p-want) > 1e-12 {
		t.Fatalf("expected %v, got %v", want, p)
	}
	if _, err := c.Classify(context.Background(), "again"); err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got := fake.modelCalls.Load(); got != 1 {
		t.Fatalf("expected model to load once, got %d calls", got)
	}
}

func TestHTTPClassifierUsesResolvedLabel(t *testing.T) {
	fake := &fakeServer{id2label: map[string]string{"0": "AI", "1": "Human"}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	p, err := newTestHTTP(srv.URL).Classify(context.Background(), "text")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	want := 1 - 1/(1+math.Exp(-1.5))
	if math.Abs(p-want) > 1e-12 {
		t.Fatalf("expected label 0 probability %v, got %v", want, p)
	}
}

func TestHTTPClassifierRetriesUnavailable(t *testing.T) {
	fake := &fakeServer{failFirst: 2, id2label: map[string]string{"1": "fake"}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	if _, err := newTestHTTP(srv.URL).Classify(context.Background(), "text"); err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if got := fake.logitsCalls.Load(); got != 3 {
		t.Fatalf("expected 3 logits calls, got %d", got)
	}
}

func TestHTTPClassifierGivesUpAfterRetries(t *testing.T) {
	fake := &fakeServer{failFirst: 100, id2label: map[string]string{"1": "fake"}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	_, err := newTestHTTP(srv.URL).Classify(context.Background(), "text")
	if err == nil {
		t.Fatalf("expected error after retries")
	}
	if aidetect.IsEnvironmentConflict(err) {
		t.Fatalf("plain outage must not be an environment conflict: %v", err)
	}
	if got := fake.logitsCalls.Load(); got != 4 {
		t.Fatalf("expected 1 call plus 3 retries, got %d", got)
	}
}

func TestHTTPClassifierVersionConflict(t *testing.T) {
	msg := "Due to a serious vulnerability issue in torch.load, we now require users to upgrade torch to at least v2.6"
	fake := &fakeServer{logitsErr: msg, id2label: map[string]string{"1": "fake"}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	_, err := newTestHTTP(srv.URL).Classify(context.Background(), "text")
	if !errors.Is(err, aidetect.ErrEnvironmentConflict) {
		t.Fatalf("expected environment conflict, got %v", err)
	}
	if got := fake.logitsCalls.Load(); got != 1 {
		t.Fatalf("conflicts must not be retried, got %d calls", got)
	}
}

func TestHTTPClassifierLoadFailures(t *testing.T) {
	fake := &fakeServer{id2label: map[string]string{"1": "fake"}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.Endpoint = srv.URL
	cfg.ModelPath = "/models/missing"
	cfg.RetryBase = time.Millisecond
	err := NewHTTP(cfg, nil, nil).Load(context.Background())
	if !errors.Is(err, aidetect.ErrModelPathInvalid) {
		t.Fatalf("expected model path invalid, got %v", err)
	}

	cfg.Endpoint = ""
	if err := NewHTTP(cfg, nil, nil).Load(context.Background()); !errors.Is(err, aidetect.ErrModelPathInvalid) {
		t.Fatalf("expected model path invalid for empty endpoint, got %v", err)
	}

	cfg.Endpoint = srv.URL
	cfg.CheckLocalModel = true
	cfg.ModelPath = t.TempDir()
	if err := NewHTTP(cfg, nil, nil).Load(context.Background()); !errors.Is(err, aidetect.ErrModelPathInvalid) {
		t.Fatalf("expected local check to reject empty dir, got %v", err)
	}
}

func TestHTTPClassifierLoadConflict(t *testing.T) {
	fake := &fakeServer{modelErr: "please upgrade torch to v2.6 or later"}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	err := newTestHTTP(srv.URL).Load(context.Background())
	if !aidetect.IsEnvironmentConflict(err) {
		t.Fatalf("expected environment conflict, got %v", err)
	}
	if errors.Is(err, aidetect.ErrModelPathInvalid) {
		t.Fatalf("conflict must not be reported as an invalid path: %v", err)
	}
}

func TestIsVersionConflictMessage(t *testing.T) {
	cases := map[string]bool{
		"upgrade torch to at least v2.6": true,
		"Upgrade Torch (v2.6 required)":  true,
		"upgrade torch":                  false,
		"CUDA out of memory":             false,
		"":                               false,
	}
	for msg, want := range cases {
		if got := IsVersionConflictMessage(msg); got != want {
			t.Fatalf("IsVersionConflictMessage(%q) = %v, want %v", msg, got, want)
		}
	}
}
