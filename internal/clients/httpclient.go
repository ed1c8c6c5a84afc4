package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dialer_sync_backend/platform/apperr"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultTimeout  = 15 * time.Second
	maxRetryElapsed = 45 * time.Second
)

// restClient is the shared HTTP plumbing for both adapters: per-call
// timeouts, transient-error retry with exponential backoff, and status-code
// classification into typed apperr kinds.
type restClient struct {
	base    string
	apiKey  string
	httpc   *http.Client
	authHdr string
}

func newRESTClient(base, apiKey, authHeader string) *restClient {
	return &restClient{
		base:    base,
		apiKey:  apiKey,
		authHdr: authHeader,
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
}

// doJSON performs one request, retrying transient failures. The response body
// is decoded into out when out is non-nil.
func (c *restClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return apperr.Permanent("encode request body", err)
		}
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(apperr.Permanent("build request", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(c.authHdr, c.apiKey)

		resp, err := c.httpc.Do(req)
		if err != nil {
			// Network failure or timeout: retryable.
			return apperr.Transient("request failed", err)
		}
		defer resp.Body.Close()

		if err := classifyStatus(resp.StatusCode, resp.Body); err != nil {
			if apperr.Retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(apperr.Permanent("decode response body", err))
			}
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxRetryElapsed
	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

// classifyStatus maps an HTTP status to a typed outcome. 404 means the
// resource is absent, 409/422-duplicate means a concurrent writer won, 5xx
// and 429 are retryable, remaining 4xx are permanent.
func classifyStatus(status int, body io.Reader) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return apperr.NotFound("resource not found")
	case status == http.StatusConflict:
		return apperr.Conflict("duplicate resource")
	case status == http.StatusTooManyRequests || status >= 500:
		return apperr.Transient(fmt.Sprintf("upstream returned %d", status), nil)
	default:
		detail, _ := io.ReadAll(io.LimitReader(body, 512))
		return apperr.Permanent(fmt.Sprintf("upstream rejected request with %d: %s", status, detail), nil)
	}
}
