package service

import (
	"context"
	"fmt"

	app_errors "portfolio-ai/backend/internal/errors"
	"portfolio-ai/backend/internal/model"
)

// ModelService exposes the fixed model profiles offered to the chat UI.
type ModelService struct{}

// NewModelService creates a new ModelService.
func NewModelService() *ModelService {
	return &ModelService{}
}

// List returns every model profile, chat first.
func (s *ModelService) List(ctx context.Context) ([]model.Profile, error) {
	return model.Profiles(), nil
}

// Get returns a single profile by kind.
func (s *ModelService) Get(ctx context.Context, kind model.ProfileKind) (*model.Profile, error) {
	profile, err := model.LookupProfile(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", app_errors.ErrNotFound, err)
	}
	return &profile, nil
}
