package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	app_errors "portfolio-ai/backend/internal/errors"
	"portfolio-ai/backend/internal/llm"
	mock_llm "portfolio-ai/backend/internal/llm/mocks"
	"portfolio-ai/backend/internal/service"
)

func setupRelayService(t *testing.T) (*service.RelayService, *mock_llm.MockProvider) {
	provider := mock_llm.NewMockProvider(t)
	return service.NewRelayService(provider), provider
}

func okCompletion() *llm.Completion {
	return &llm.Completion{StatusCode: 200, Body: io.NopCloser(strings.NewReader(`{}`))}
}

func TestRelayService_Relay(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing credential fails before upstream", func(t *testing.T) {
		relayService, provider := setupRelayService(t)
		provider.On("Configured").Return(false).Once()

		completion, err := relayService.Relay(ctx, &service.RelayRequest{Messages: json.RawMessage(`[]`)})

		assert.Nil(t, completion)
		assert.ErrorIs(t, err, app_errors.ErrConfiguration)
		provider.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
	})

	t.Run("Chat messages are forwarded verbatim with default model", func(t *testing.T) {
		relayService, provider := setupRelayService(t)
		messages := `[{"role":"system","content":"sys"},{"role":"user","content":"hi"}]`

		provider.On("Configured").Return(true).Once()
		provider.On("Open", ctx, mock.MatchedBy(func(body []byte) bool {
			var got map[string]json.RawMessage
			if err := json.Unmarshal(body, &got); err != nil {
				return false
			}
			return string(got["model"]) == `"deepseek-chat"` &&
				string(got["messages"]) == messages &&
				string(got["stream"]) == "true"
		})).Return(okCompletion(), nil).Once()

		completion, err := relayService.Relay(ctx, &service.RelayRequest{Messages: json.RawMessage(messages), Stream: true})
		require.NoError(t, err)
		assert.NotNil(t, completion)
	})

	t.Run("Reasoner wrapper is forwarded as an object", func(t *testing.T) {
		relayService, provider := setupRelayService(t)
		messages := `{"messages":[{"role":"user","content":"hi"}],"response_format":{"type":"text"}}`

		provider.On("Configured").Return(true).Once()
		provider.On("Open", ctx, mock.MatchedBy(func(body []byte) bool {
			return strings.Contains(string(body), `"messages":`+messages) &&
				strings.Contains(string(body), `"model":"deepseek-reasoner"`)
		})).Return(okCompletion(), nil).Once()

		_, err := relayService.Relay(ctx, &service.RelayRequest{Model: "deepseek-reasoner", Messages: json.RawMessage(messages)})
		require.NoError(t, err)
	})

	t.Run("Shape mismatches are validation errors", func(t *testing.T) {
		testCases := []struct {
			name     string
			model    string
			messages string
		}{
			{name: "Reasoner with flat array", model: "deepseek-reasoner", messages: `[]`},
			{name: "Chat with wrapper", model: "deepseek-chat", messages: `{"messages":[]}`},
			{name: "Scalar", model: "deepseek-chat", messages: `"hello"`},
			{name: "Null", model: "", messages: `null`},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				relayService, provider := setupRelayService(t)
				provider.On("Configured").Return(true).Once()

				_, err := relayService.Relay(ctx, &service.RelayRequest{Model: tc.model, Messages: json.RawMessage(tc.messages)})
				assert.ErrorIs(t, err, app_errors.ErrValidation)
			})
		}
	})

	t.Run("Unknown models accept either shape", func(t *testing.T) {
		relayService, provider := setupRelayService(t)
		provider.On("Configured").Return(true).Once()
		provider.On("Open", ctx, mock.Anything).Return(okCompletion(), nil).Once()

		_, err := relayService.Relay(ctx, &service.RelayRequest{Model: "other-model", Messages: json.RawMessage(`{"messages":[]}`)})
		require.NoError(t, err)
	})

	t.Run("Upstream errors pass through", func(t *testing.T) {
		relayService, provider := setupRelayService(t)
		upstreamErr := &app_errors.UpstreamError{Status: 401, Details: "bad key"}
		provider.On("Configured").Return(true).Once()
		provider.On("Open", ctx, mock.Anything).Return(nil, upstreamErr).Once()

		_, err := relayService.Relay(ctx, &service.RelayRequest{Messages: json.RawMessage(`[]`)})

		var got *app_errors.UpstreamError
		require.True(t, errors.As(err, &got))
		assert.Equal(t, 401, got.Status)
	})

	t.Run("Cancelled caller maps to ErrCancelled", func(t *testing.T) {
		relayService, provider := setupRelayService(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		provider.On("Configured").Return(true).Once()
		provider.On("Open", cancelled, mock.Anything).Return(nil, context.Canceled).Once()

		_, err := relayService.Relay(cancelled, &service.RelayRequest{Messages: json.RawMessage(`[]`)})
		assert.ErrorIs(t, err, app_errors.ErrCancelled)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
