package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"aigc_sentinel/internal/aidetect"
)

type HTTPConfig struct {
	Endpoint    string
	ModelPath   string
	Temperature float64
	MaxLength   int
	Timeout     time.Duration
	MaxRetries  uint64
	RetryBase   time.Duration
	// CheckLocalModel makes Load verify ModelPath on this machine before
	// asking the inference server about it.
	CheckLocalModel bool
}

func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Endpoint:    "http://localhost:8800",
		Temperature: 2.0,
		MaxLength:   512,
		Timeout:     60 * time.Second,
		MaxRetries:  3,
		RetryBase:   200 * time.Millisecond,
	}
}

// HTTPClassifier talks to a local inference server that returns raw logits
// for a text. Temperature scaling and softmax happen here, on the client side
// of the boundary, so the probabilities handed to the engine are already
// scaled.
type HTTPClassifier struct {
	cfg    HTTPConfig
	client *http.Client
	logger *slog.Logger

	mu        sync.Mutex
	loaded    bool
	aiLabel   int
	maxLength int
}

func NewHTTP(cfg HTTPConfig, client *http.Client, logger *slog.Logger) *HTTPClassifier {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	return &HTTPClassifier{cfg: cfg, client: client, logger: logger, aiLabel: defaultAILabel, maxLength: cfg.MaxLength}
}

type modelResponse struct {
	ID2Label  map[string]string `json:"id2label"`
	MaxLength int               `json:"max_length"`
}

type logitsRequest struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length,omitempty"`
}

type logitsResponse struct {
	Logits []float64 `json:"logits"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ModelKey identifies the model for cache keys.
func (c *HTTPClassifier) ModelKey() string {
	return c.cfg.Endpoint + "|" + c.cfg.ModelPath
}

func (c *HTTPClassifier) Temperature() float64 {
	return c.cfg.Temperature
}

// Load resolves the model on the server and the id of its AI label. Any
// failure other than a version conflict is reported as an invalid model path.
func (c *HTTPClassifier) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	if c.cfg.Endpoint == "" {
		return fmt.Errorf("%w: classifier endpoint not configured", aidetect.ErrModelPathInvalid)
	}
	if c.cfg.CheckLocalModel {
		if _, err := CheckModelDir(c.cfg.ModelPath); err != nil {
			return err
		}
	}

	u := c.cfg.Endpoint + "/v1/model"
	if c.cfg.ModelPath != "" {
		u += "?" + url.Values{"path": {c.cfg.ModelPath}}.Encode()
	}
	var info modelResponse
	if err := c.do(ctx, http.MethodGet, u, nil, &info); err != nil {
		if aidetect.IsEnvironmentConflict(err) || errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %w", aidetect.ErrModelPathInvalid, err)
	}
	c.aiLabel = AILabelID(info.ID2Label)
	if c.maxLength <= 0 {
		c.maxLength = info.MaxLength
	}
	c.loaded = true
	c.logger.Info("classifier ready", "stage", "LOAD", "endpoint", c.cfg.Endpoint, "model_path", c.cfg.ModelPath, "ai_label", c.aiLabel)
	return nil
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (float64, error) {
	if err := c.Load(ctx); err != nil {
		return 0, err
	}
	c.mu.Lock()
	aiLabel, maxLength := c.aiLabel, c.maxLength
	c.mu.Unlock()

	body, err := json.Marshal(logitsRequest{Text: text, MaxLength: maxLength})
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}
	var out logitsResponse
	if err := c.do(ctx, http.MethodPost, c.cfg.Endpoint+"/v1/logits", body, &out); err != nil {
		return 0, err
	}
	probs := Softmax(out.Logits, c.cfg.Temperature)
	if aiLabel < 0 || aiLabel >= len(probs) {
		return 0, fmt.Errorf("ai label %d out of range for %d logits", aiLabel, len(probs))
	}
	return probs[aiLabel], nil
}

func (c *HTTPClassifier) do(ctx context.Context, method, u string, body []byte, out any) error {
	backoff := retry.WithMaxRetries(c.cfg.MaxRetries, retry.NewFibonacci(c.retryBase()))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(fmt.Errorf("call classifier: %w", err))
		}
		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return retry.RetryableError(fmt.Errorf("read classifier response: %w", readErr))
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := statusError(resp.StatusCode, raw)
			if aidetect.IsEnvironmentConflict(err) {
				return err
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				c.logger.Debug("retrying classifier call", "stage", "SCORE", "status", resp.StatusCode)
				return retry.RetryableError(err)
			}
			return err
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode classifier response: %w", err)
		}
		return nil
	})
}

func (c *HTTPClassifier) retryBase() time.Duration {
	if c.cfg.RetryBase > 0 {
		return c.cfg.RetryBase
	}
	return 200 * time.Millisecond
}

func statusError(status int, raw []byte) error {
	msg := strings.TrimSpace(string(raw))
	var parsed errorResponse
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error != "" {
		msg = parsed.Error
	}
	if IsVersionConflictMessage(msg) {
		return fmt.Errorf("%w: %s", aidetect.ErrEnvironmentConflict, msg)
	}
	return fmt.Errorf("classifier status %d: %s", status, msg)
}

// IsVersionConflictMessage recognizes the runtime error emitted when the
// model needs a newer torch than the server has installed.
func IsVersionConflictMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "upgrade torch") && strings.Contains(lower, "v2.6")
}
