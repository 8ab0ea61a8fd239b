package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"portfolio-ai/backend/internal/api"
	app_errors "portfolio-ai/backend/internal/errors"
	"portfolio-ai/backend/internal/interfaces/mocks"
	"portfolio-ai/backend/internal/model"
)

func setupModelHandler(t *testing.T) (*api.ModelHandler, *mocks.MockModelService) {
	mockModelSvc := mocks.NewMockModelService(t)
	handler := api.NewModelHandler(mockModelSvc)
	return handler, mockModelSvc
}

// withURLParam attaches a chi route context so chi.URLParam works without a router.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestModelHandler_HandleListModels(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockSvc := setupModelHandler(t)
		mockSvc.On("List", mock.Anything).Return(model.Profiles(), nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
		rr := httptest.NewRecorder()

		handler.HandleListModels(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp []model.Profile
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp, 2)
		assert.Equal(t, "deepseek-chat", resp[0].Model)
		assert.True(t, resp[1].Wrapped)
	})

	t.Run("Failure", func(t *testing.T) {
		handler, mockSvc := setupModelHandler(t)
		mockSvc.On("List", mock.Anything).Return(nil, errors.New("internal error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
		rr := httptest.NewRecorder()

		handler.HandleListModels(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestModelHandler_HandleGetModel(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockSvc := setupModelHandler(t)
		profile, err := model.LookupProfile(model.ProfileReasoner)
		require.NoError(t, err)
		mockSvc.On("Get", mock.Anything, model.ProfileReasoner).Return(&profile, nil).Once()

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/models/reasoner", nil), "kind", "reasoner")
		rr := httptest.NewRecorder()

		handler.HandleGetModel(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp model.Profile
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "deepseek-reasoner", resp.Model)
	})

	t.Run("Failure - Unknown kind", func(t *testing.T) {
		handler, mockSvc := setupModelHandler(t)
		mockSvc.On("Get", mock.Anything, model.ProfileKind("vision")).
			Return(nil, fmt.Errorf("%w: unknown profile", app_errors.ErrNotFound)).Once()

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/models/vision", nil), "kind", "vision")
		rr := httptest.NewRecorder()

		handler.HandleGetModel(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
