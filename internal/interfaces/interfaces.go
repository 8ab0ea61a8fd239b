package interfaces

import (
	"context"

	"portfolio-ai/backend/internal/llm"
	"portfolio-ai/backend/internal/model"
	"portfolio-ai/backend/internal/service"
)

// This file defines the interfaces for our core services.
// The API layer depends on these instead of the concrete services so handlers
// can be tested against mocks.

// RelayService defines the contract for forwarding chat completions upstream.
type RelayService interface {
	Relay(ctx context.Context, req *service.RelayRequest) (*llm.Completion, error)
}

// ModelService defines the contract for model profile lookup.
type ModelService interface {
	List(ctx context.Context) ([]model.Profile, error)
	Get(ctx context.Context, kind model.ProfileKind) (*model.Profile, error)
}
