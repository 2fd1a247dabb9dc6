package upstream

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

// HTTPInvoker calls backends over JSON HTTP: POST {base}/{service}/{method}
// with the payload as body, expecting a JSON result.
type HTTPInvoker struct {
	base   string
	client *http.Client
}

type HTTPOption func(*HTTPInvoker)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(i *HTTPInvoker) { i.client = c }
}

func WithTimeout(d time.Duration) HTTPOption {
	return func(i *HTTPInvoker) { i.client.Timeout = d }
}

func NewHTTPInvoker(base string, opts ...HTTPOption) *HTTPInvoker {
	i := &HTTPInvoker{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *HTTPInvoker) Invoke(ctx context.Context, service, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Service: service, Method: method, Err: err}
	}

	url := i.base + "/" + service + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Service: service, Method: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, &Error{Service: service, Method: method, Err: fmt.Errorf("%w: %v", ErrUnavailable, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, &Error{Service: service, Method: method, Status: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrUnavailable, err)}
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &Error{Service: service, Method: method, Status: resp.StatusCode,
			Err: fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &Error{Service: service, Method: method, Status: resp.StatusCode,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))}
	}

	return json.RawMessage(data), nil
}
