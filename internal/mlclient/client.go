// Package mlclient is the boundary between the web layer and the inference
// service. The service may run in-process or behind HTTP.
package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/signcheck/internal/inference"
)

// DefaultTimeout bounds a remote prediction call.
const DefaultTimeout = 5 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// ErrUnavailable marks a predictor that could not be reached or answered
// with a server error.
var ErrUnavailable = errors.New("predictor unavailable")

// Predictor turns a request body carrying landmarks into a prediction.
type Predictor interface {
	Predict(ctx context.Context, body []byte) (inference.Prediction, error)
}

// UnavailableError carries the reason a remote predictor failed.
type UnavailableError struct {
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("predictor unavailable (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("predictor unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUnavailable) hold for every UnavailableError.
func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Client calls a remote inference service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client, keeping its own timeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a Client for the service at baseURL. A baseURL ending in
// /predict is used as is.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/predict"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type predictResponse struct {
	Letter     string   `json:"letter"`
	Confidence *float64 `json:"confidence"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// Predict posts body to the remote /predict endpoint.
func (c *Client) Predict(ctx context.Context, body []byte) (inference.Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return inference.Prediction{}, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return inference.Prediction{}, &UnavailableError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return inference.Prediction{}, &UnavailableError{StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var out predictResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return inference.Prediction{}, &UnavailableError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		if out.Letter == "" {
			return inference.Prediction{}, &UnavailableError{StatusCode: resp.StatusCode, Err: errors.New("no prediction returned")}
		}
		var conf float64
		if out.Confidence != nil {
			conf = *out.Confidence
		}
		return inference.Prediction{Label: out.Letter, Confidence: conf}, nil

	case resp.StatusCode == http.StatusBadRequest:
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		reason := inference.Reason(e.Reason)
		if reason == "" {
			reason = inference.ReasonMalformedRequest
		}
		verr := inference.NewValidationError(reason)
		if e.Error != "" {
			verr.Msg = e.Error
		}
		return inference.Prediction{}, verr

	default:
		return inference.Prediction{}, &UnavailableError{
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(raw))),
		}
	}
}

// Local adapts an in-process inference service to Predictor.
type Local struct {
	svc *inference.Service
}

// NewLocal wraps svc.
func NewLocal(svc *inference.Service) *Local {
	return &Local{svc: svc}
}

// Predict runs the service directly. The context is only checked for
// cancellation since local inference does not block.
func (l *Local) Predict(ctx context.Context, body []byte) (inference.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return inference.Prediction{}, err
	}
	return l.svc.Predict(body)
}
