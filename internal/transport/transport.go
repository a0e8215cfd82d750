// Package transport issues single, bounded HTTP requests on behalf of a
// workflow run. Each Send is exactly one attempt; retry policy belongs to the
// caller. Every call observes a cancellation token and resolves to Aborted
// promptly once the token fires.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Backland-Labs/docflow/internal/cancel"
	"github.com/Backland-Labs/docflow/internal/logger"
)

const (
	// DefaultMaxResponseBytes bounds how much of a response body is read
	DefaultMaxResponseBytes = 32 << 20
)

// ErrResponseTooLarge is returned when a body exceeds the response limit
var ErrResponseTooLarge = errors.New("response too large")

// Kind classifies the outcome of a single Send
type Kind int

const (
	// KindResponse means the server answered; Status and Body are set
	KindResponse Kind = iota
	// KindAborted means the token fired before or during the call
	KindAborted
	// KindTransportError means the call failed for a reason other than cancellation
	KindTransportError
)

func (k Kind) String() string {
	switch k {
	case KindResponse:
		return "response"
	case KindAborted:
		return "aborted"
	case KindTransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Request describes one HTTP call
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Outcome is the result of a Send
type Outcome struct {
	Kind     Kind
	Status   int
	Header   http.Header
	Body     []byte
	Err      error
	Duration time.Duration
}

// OK reports whether the outcome is a response with a 2xx status
func (o Outcome) OK() bool {
	return o.Kind == KindResponse && o.Status >= 200 && o.Status < 300
}

// Sender sends a request bound to a cancellation token
type Sender interface {
	Send(ctx context.Context, req Request, token *cancel.Token) Outcome
}

// Doer is the subset of *http.Client used by the Adapter
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Adapter is the net/http backed Sender
type Adapter struct {
	client           Doer
	maxResponseBytes int64
}

// Option configures an Adapter
type Option func(*Adapter)

// WithClient overrides the HTTP client
func WithClient(client Doer) Option {
	return func(a *Adapter) {
		a.client = client
	}
}

// WithMaxResponseBytes overrides the response body limit
func WithMaxResponseBytes(n int64) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxResponseBytes = n
		}
	}
}

// NewAdapter creates an Adapter. The default client has no overall timeout:
// the run's cancellation token is the only deadline.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		client:           &http.Client{},
		maxResponseBytes: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Send performs a single request. It never retries.
func (a *Adapter) Send(ctx context.Context, req Request, token *cancel.Token) Outcome {
	start := time.Now()
	log := logger.WithFields(map[string]interface{}{
		"method": req.Method,
		"url":    req.URL,
	})

	if token != nil && token.Fired() {
		log.Debug("Token already fired, request not sent")
		return Outcome{Kind: KindAborted, Err: cancel.ErrFired}
	}

	if token != nil {
		var release context.CancelFunc
		ctx, release = token.Bind(ctx)
		defer release()
	}

	out := a.do(ctx, req, token)
	out.Duration = time.Since(start)

	log.WithFields(map[string]interface{}{
		"outcome":     out.Kind.String(),
		"status":      out.Status,
		"duration_ms": float64(out.Duration.Nanoseconds()) / 1e6,
	}).Debug("Request finished")

	return out
}

func (a *Adapter) do(ctx context.Context, req Request, token *cancel.Token) Outcome {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Outcome{Kind: KindTransportError, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return a.failure(ctx, token, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, a.maxResponseBytes+1))
	if err != nil {
		return a.failure(ctx, token, fmt.Errorf("failed to read response: %w", err))
	}
	if int64(len(data)) > a.maxResponseBytes {
		return Outcome{
			Kind:   KindTransportError,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%w: response exceeds %d bytes", ErrResponseTooLarge, a.maxResponseBytes),
		}
	}

	return Outcome{
		Kind:   KindResponse,
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
	}
}

// failure distinguishes a token abort from a genuine transport error
func (a *Adapter) failure(ctx context.Context, token *cancel.Token, err error) Outcome {
	if token != nil && (token.Fired() || errors.Is(context.Cause(ctx), cancel.ErrFired)) {
		return Outcome{Kind: KindAborted, Err: err}
	}
	return Outcome{Kind: KindTransportError, Err: err}
}
