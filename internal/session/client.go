package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	app_errors "portfolio-ai/backend/internal/errors"
	"portfolio-ai/backend/internal/model"
)

// maxErrorBody caps how much of a failed relay response is read.
const maxErrorBody = 64 << 10

// Transport opens one streaming exchange. The returned body yields SSE bytes
// and must stop promptly once ctx is cancelled.
type Transport interface {
	Stream(ctx context.Context, profile model.Profile, messages []model.Message) (io.ReadCloser, error)
}

// HTTPClient talks to the relay route over HTTP.
type HTTPClient struct {
	url        string
	httpClient *http.Client
}

// NewHTTPClient returns a Transport posting to url. A nil httpClient means
// http.DefaultClient; it must not set a total Timeout since streams are long lived.
func NewHTTPClient(url string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{url: url, httpClient: httpClient}
}

type relayRequest struct {
	Model    string `json:"model"`
	Messages any    `json:"messages"`
	Stream   bool   `json:"stream"`
}

// wrappedMessages is the object shape the reasoner profile sends as `messages`.
type wrappedMessages struct {
	Messages       []model.Message                     `json:"messages"`
	ResponseFormat openai.ChatCompletionResponseFormat `json:"response_format"`
}

func buildRelayRequest(profile model.Profile, messages []model.Message) relayRequest {
	req := relayRequest{Model: profile.Model, Messages: messages, Stream: true}
	if profile.Wrapped {
		req.Messages = wrappedMessages{
			Messages:       messages,
			ResponseFormat: openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeText},
		}
	}
	return req
}

func (c *HTTPClient) Stream(ctx context.Context, profile model.Profile, messages []model.Message) (io.ReadCloser, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(buildRelayRequest(profile, messages)); err != nil {
		return nil, fmt.Errorf("could not marshal relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return nil, fmt.Errorf("could not create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not reach relay: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, &app_errors.UpstreamError{Status: resp.StatusCode, Details: readErrorBody(resp.Body)}
	}
	return resp.Body, nil
}

// readErrorBody returns the relay's {error, details} object when it parses,
// the trimmed text otherwise.
func readErrorBody(r io.Reader) any {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var body struct {
		Error   string `json:"error"`
		Details any    `json:"details,omitempty"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return body
	}
	return strings.TrimSpace(string(data))
}
