package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	app_errors "portfolio-ai/backend/internal/errors"
	"portfolio-ai/backend/internal/llm"
	"portfolio-ai/backend/internal/model"
)

// RelayRequest is the body accepted by the relay route. Messages is forwarded
// byte for byte: a flat array for the chat profile, an object wrapping
// {messages, response_format} for the reasoner profile. Callers pick the
// shape.
type RelayRequest struct {
	Messages json.RawMessage `json:"messages" validate:"required,jsoncontainer"`
	Model    string          `json:"model" validate:"max=128"`
	Stream   bool            `json:"stream"`
}

type upstreamRequest struct {
	Model    string          `json:"model"`
	Messages json.RawMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type RelayService struct {
	llm llm.Provider
}

func NewRelayService(provider llm.Provider) *RelayService {
	return &RelayService{llm: provider}
}

// Relay forwards req upstream and returns the open completion. The caller owns
// the returned body. Cancelling ctx tears down the upstream request.
func (s *RelayService) Relay(ctx context.Context, req *RelayRequest) (*llm.Completion, error) {
	if !s.llm.Configured() {
		return nil, app_errors.ErrConfiguration
	}

	modelName := req.Model
	if modelName == "" {
		modelName = model.DefaultModel
	}
	if err := checkMessagesShape(modelName, req.Messages); err != nil {
		return nil, err
	}

	body, err := marshalUpstream(upstreamRequest{Model: modelName, Messages: req.Messages, Stream: req.Stream})
	if err != nil {
		return nil, fmt.Errorf("could not marshal upstream request: %w", err)
	}

	slog.Debug("Relaying completion request", "model", modelName, "stream", req.Stream)
	completion, err := s.llm.Open(ctx, body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", app_errors.ErrCancelled, err)
		}
		return nil, err
	}
	return completion, nil
}

// marshalUpstream encodes without HTML escaping so message text reaches the
// upstream unchanged.
func marshalUpstream(req upstreamRequest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(req); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// checkMessagesShape enforces the per-profile request shape. Unknown model
// ids accept either shape.
func checkMessagesShape(modelName string, messages json.RawMessage) error {
	trimmed := bytes.TrimSpace(messages)
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: messages is required", app_errors.ErrValidation)
	}

	isArray, isObject := trimmed[0] == '[', trimmed[0] == '{'
	if !isArray && !isObject {
		return fmt.Errorf("%w: messages must be an array or an object", app_errors.ErrValidation)
	}

	profile, known := model.ProfileForModel(modelName)
	switch {
	case !known:
		return nil
	case profile.Wrapped && !isObject:
		return fmt.Errorf("%w: model %s expects messages wrapped in an object", app_errors.ErrValidation, modelName)
	case !profile.Wrapped && !isArray:
		return fmt.Errorf("%w: model %s expects messages as an array", app_errors.ErrValidation, modelName)
	}
	return nil
}
