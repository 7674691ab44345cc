package taskqueue

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/securemed/mednotes/internal/platform/metrics"
)

const (
	HeaderSignature = "X-Task-Signature"
	HeaderTaskID    = "X-Task-ID"
	HeaderTimestamp = "X-Task-Timestamp"

	signaturePrefix = "sha256="
)

// SignPayload computes the hex-encoded HMAC-SHA256 of payload.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPayload reports whether signature ("sha256=<hex>" or bare hex)
// matches payload under secret.
func VerifyPayload(payload []byte, secret, signature string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(signature, signaturePrefix)))
}

// HTTPOption configures an HTTPDispatcher.
type HTTPOption func(*HTTPDispatcher)

// WithHTTPClient overrides the default HTTP client used for deliveries.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(d *HTTPDispatcher) { d.client = c }
}

// WithRetryDelays sets the waits between attempts; attempts = len+1.
func WithRetryDelays(delays ...time.Duration) HTTPOption {
	return func(d *HTTPDispatcher) { d.retryDelays = delays }
}

// HTTPDispatcher delivers each task as a signed POST to baseURL+endpoint
// in the background, retrying failed deliveries.
type HTTPDispatcher struct {
	baseURL     string
	secret      string
	client      *http.Client
	retryDelays []time.Duration
	logger      zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHTTPDispatcher(baseURL, secret string, logger zerolog.Logger, opts ...HTTPOption) *HTTPDispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &HTTPDispatcher{
		baseURL:     strings.TrimRight(baseURL, "/"),
		secret:      secret,
		client:      &http.Client{Timeout: 10 * time.Minute},
		retryDelays: []time.Duration{2 * time.Second, 10 * time.Second},
		logger:      logger.With().Str("component", "taskqueue").Str("mode", "http").Logger(),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *HTTPDispatcher) Enqueue(_ context.Context, task Task) (string, error) {
	if !strings.HasPrefix(task.Endpoint, "/") {
		return "", fmt.Errorf("taskqueue: endpoint %q must be an absolute path", task.Endpoint)
	}
	task.prepare()

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return "", ErrClosed
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		err := d.deliver(d.ctx, task)
		metrics.RecordTaskCompleted(task.Endpoint, err)
		if err != nil {
			d.logger.Error().Err(err).Str("task_id", task.ID).Str("endpoint", task.Endpoint).Msg("task delivery failed")
		}
	}()
	metrics.RecordTaskEnqueued(task.Endpoint, "http")
	return task.ID, nil
}

func (d *HTTPDispatcher) deliver(ctx context.Context, task Task) error {
	var lastErr error
	for attempt := 0; attempt <= len(d.retryDelays); attempt++ {
		if attempt > 0 {
			t := time.NewTimer(d.retryDelays[attempt-1])
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		status, err := d.post(ctx, task)
		if err == nil {
			return nil
		}
		lastErr = err
		d.logger.Warn().Err(err).
			Str("task_id", task.ID).
			Int("attempt", attempt+1).
			Int("status", status).
			Msg("task delivery attempt failed")
		// Client errors other than 408/429 will not succeed on retry.
		if status >= 400 && status < 500 && status != http.StatusRequestTimeout && status != http.StatusTooManyRequests {
			break
		}
	}
	return lastErr
}

func (d *HTTPDispatcher) post(ctx context.Context, task Task) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+task.Endpoint, bytes.NewReader(task.Payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, signaturePrefix+SignPayload(task.Payload, d.secret))
	req.Header.Set(HeaderTaskID, task.ID)
	req.Header.Set(HeaderTimestamp, task.EnqueuedAt.Format(time.RFC3339))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("non-2xx response: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp.StatusCode, nil
}

// Close stops accepting tasks and waits for in-flight deliveries. If ctx
// expires first, pending retries are abandoned.
func (d *HTTPDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
