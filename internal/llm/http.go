package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// SendJSON sends a JSON request to a full URL with optional headers and
// returns the raw response body. 429 and 5xx responses are retried with
// exponential backoff plus jitter, up to maxRetries attempts beyond the
// first. Callers decide the URL and headers; no provider is assumed.
func SendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, maxRetries int, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		logger.Error("llm.http.encode_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	var raw []byte
	var status int
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			backoff += time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
			logger.Warn("llm.http.retry",
				"req_id", reqID, "attempt", attempt, "backoff_ms", backoff.Milliseconds())
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			}
		}

		raw, status, lastErr = sendOnce(ctx, client, url, bs, headers, reqID, logger)
		if lastErr == nil {
			logger.Info("llm.http.response",
				"req_id", reqID, "status", status, "bytes", len(raw),
				"attempt", attempt, "elapsed_ms", time.Since(start).Milliseconds())
			return raw, status, nil
		}
		if !retryable(status, lastErr) {
			break
		}
	}

	logger.Error("llm.http.failed",
		"req_id", reqID, "status", status, "error", lastErr,
		"elapsed_ms", time.Since(start).Milliseconds())
	return raw, status, lastErr
}

func sendOnce(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string, reqID string, logger *slog.Logger) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("llm.http.response_body_close_error", "req_id", reqID, "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}

func retryable(status int, err error) bool {
	if status == 0 {
		// transport error, worth another try
		return err != nil
	}
	return status == http.StatusTooManyRequests || status/100 == 5
}
