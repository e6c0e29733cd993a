package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPDispatcher posts jobs to the two automation webhooks. Any transport
// error or non-2xx response is returned with the response body so the UI can
// show the worker's own message.
type HTTPDispatcher struct {
	client      *http.Client
	generateURL string
	optimizeURL string
}

func NewHTTPDispatcher(generateURL, optimizeURL string) *HTTPDispatcher {
	return &HTTPDispatcher{
		client:      &http.Client{Timeout: 30 * time.Second},
		generateURL: generateURL,
		optimizeURL: optimizeURL,
	}
}

func (d *HTTPDispatcher) DispatchGenerate(ctx context.Context, req GenerateRequest) error {
	return d.post(ctx, d.generateURL, req)
}

func (d *HTTPDispatcher) DispatchOptimize(ctx context.Context, req OptimizeRequest) error {
	return d.post(ctx, d.optimizeURL, req)
}

func (d *HTTPDispatcher) post(ctx context.Context, url string, payload any) error {
	if url == "" {
		return fmt.Errorf("worker webhook URL is not configured")
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("worker rejected request: %s", msg)
	}
	return nil
}
