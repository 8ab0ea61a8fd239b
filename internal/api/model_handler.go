package api

import (
	"net/http"

	"portfolio-ai/backend/internal/interfaces"
	"portfolio-ai/backend/internal/model"

	"github.com/go-chi/chi/v5"
)

// ModelHandler exposes the model profiles offered by the chat client.
type ModelHandler struct {
	service interfaces.ModelService
}

func NewModelHandler(svc interfaces.ModelService) *ModelHandler {
	return &ModelHandler{service: svc}
}

// HandleListModels returns every model profile.
func (h *ModelHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.List(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, profiles)
}

// HandleGetModel returns a single profile by kind.
func (h *ModelHandler) HandleGetModel(w http.ResponseWriter, r *http.Request) {
	kind := model.ProfileKind(chi.URLParam(r, "kind"))
	profile, err := h.service.Get(r.Context(), kind)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}
