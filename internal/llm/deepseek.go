package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	app_errors "portfolio-ai/backend/internal/errors"
)

// ErrIdleTimeout is the cancellation cause when the upstream stops sending
// bytes for longer than the configured idle timeout.
var ErrIdleTimeout = errors.New("upstream idle timeout")

// Provider opens completion requests against the upstream chat-completion API.
type Provider interface {
	// Configured reports whether an upstream credential is available.
	Configured() bool
	Open(ctx context.Context, body []byte) (*Completion, error)
}

// Completion is a successful upstream response whose body has not been read yet.
// The caller must Close it.
type Completion struct {
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
}

type deepSeekProvider struct {
	client      *http.Client
	url         string
	apiKey      string
	idleTimeout time.Duration
}

func NewDeepSeekProvider(url, apiKey string, idleTimeout time.Duration) Provider {
	return &deepSeekProvider{
		client:      &http.Client{},
		url:         url,
		apiKey:      apiKey,
		idleTimeout: idleTimeout,
	}
}

func (p *deepSeekProvider) Configured() bool { return p.apiKey != "" }

func (p *deepSeekProvider) Open(ctx context.Context, body []byte) (*Completion, error) {
	if !p.Configured() {
		return nil, app_errors.ErrConfiguration
	}

	ctx, cancel := context.WithCancelCause(ctx)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		cancel(nil)
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	// The idle timer also covers the wait for response headers.
	guard := newIdleGuard(p.idleTimeout, cancel)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		guard.stop()
		cancel(nil)
		if cause := context.Cause(ctx); errors.Is(cause, ErrIdleTimeout) {
			return nil, fmt.Errorf("request failed: %w", cause)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel(nil)
		defer guard.stop()
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &app_errors.UpstreamError{Status: resp.StatusCode, Details: decodeDetails(bodyBytes)}
	}

	return &Completion{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        &guardedBody{body: resp.Body, guard: guard, cancel: cancel, ctx: ctx},
	}, nil
}

// decodeDetails keeps a JSON error body as a JSON value and anything else as text.
func decodeDetails(body []byte) any {
	var details any
	if err := json.Unmarshal(body, &details); err == nil {
		return details
	}
	return string(bytes.TrimSpace(body))
}

// idleGuard cancels the upstream request when no progress is reported within
// the timeout. A zero timeout disables it.
type idleGuard struct {
	mu      sync.Mutex
	timer   *time.Timer
	timeout time.Duration
}

func newIdleGuard(timeout time.Duration, cancel context.CancelCauseFunc) *idleGuard {
	g := &idleGuard{timeout: timeout}
	if timeout > 0 {
		g.timer = time.AfterFunc(timeout, func() { cancel(ErrIdleTimeout) })
	}
	return g
}

func (g *idleGuard) touch() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer != nil {
		g.timer.Reset(g.timeout)
	}
}

func (g *idleGuard) stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

type guardedBody struct {
	body   io.ReadCloser
	guard  *idleGuard
	cancel context.CancelCauseFunc
	ctx    context.Context
}

func (b *guardedBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if n > 0 {
		b.guard.touch()
	}
	if err != nil && err != io.EOF {
		if cause := context.Cause(b.ctx); errors.Is(cause, ErrIdleTimeout) {
			return n, fmt.Errorf("%w: %w", cause, err)
		}
	}
	return n, err
}

func (b *guardedBody) Close() error {
	b.guard.stop()
	err := b.body.Close()
	b.cancel(nil)
	return err
}
