package integration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// NewSandboxedFetch builds the Fetch implementation injected into every pack
// handler. Timeout, TLS verification, and redirect policy are fixed here so
// that no pack can override them (spec.md §4.E step 4).
func NewSandboxedFetch(timeout time.Duration) Fetch {
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			return nil
		},
	}

	return func(ctx context.Context, method, url string, headers map[string]string, body []byte) (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, url, bytesReader(body))
		if err != nil {
			return 0, nil, fmt.Errorf("build request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return 0, nil, fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
		}
		return resp.StatusCode, data, nil
	}
}

// maxResponseBytes caps how much of an integration response the executor
// will buffer in memory.
const maxResponseBytes = 8 << 20

func bytesReader(b []byte) io.Reader {
	if b == nil {
		return nil
	}
	return bytes.NewReader(b)
}
