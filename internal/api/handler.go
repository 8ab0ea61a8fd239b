package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	app_errors "portfolio-ai/backend/internal/errors"
	"portfolio-ai/backend/internal/interfaces"
	"portfolio-ai/backend/internal/llm"
	"portfolio-ai/backend/internal/service"
)

// abortedEvent is appended to a relayed stream when the caller cancels it.
var abortedEvent = []byte("data: [ABORTED]\n\n")

// RelayHandler serves the chat completion relay route.
type RelayHandler struct {
	service         interfaces.RelayService
	maxRequestBytes int64
}

func NewRelayHandler(svc interfaces.RelayService, maxRequestBytes int64) *RelayHandler {
	return &RelayHandler{service: svc, maxRequestBytes: maxRequestBytes}
}

// HandleChatCompletions forwards a completion request upstream. With stream
// set the upstream event stream is passed through unchanged; otherwise the
// upstream JSON body is returned as is.
func (h *RelayHandler) HandleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if h.maxRequestBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBytes)
	}

	var req service.RelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request payload: %s", app_errors.ErrValidation, err.Error()))
		return
	}
	if err := validateRequest(&req); err != nil {
		respondWithError(w, err)
		return
	}

	completion, err := h.service.Relay(r.Context(), &req)
	if err != nil {
		respondWithError(w, err)
		return
	}
	defer completion.Body.Close()

	if !req.Stream {
		h.relayJSON(w, r, completion)
		return
	}
	h.relayStream(w, r, completion)
}

func (h *RelayHandler) relayJSON(w http.ResponseWriter, r *http.Request, completion *llm.Completion) {
	data, err := io.ReadAll(completion.Body)
	if err != nil {
		if r.Context().Err() != nil {
			err = fmt.Errorf("%w: %w", app_errors.ErrCancelled, err)
		}
		respondWithError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("Failed to write completion, client might have disconnected", "error", err)
	}
}

// relayStream copies upstream bytes to the caller as they arrive. Framing is
// left to the upstream; the only bytes the relay adds are the abort sentinel.
func (h *RelayHandler) relayStream(w http.ResponseWriter, r *http.Request, completion *llm.Completion) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}
	flush()

	var relayed int64
	buf := make([]byte, 32*1024)
	for {
		n, err := completion.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				slog.Info("Client closed request mid-stream", "relayed_bytes", relayed, "error", werr)
				return
			}
			relayed += int64(n)
			flush()
		}
		if err == io.EOF {
			slog.Debug("Finished relaying stream", "relayed_bytes", relayed)
			return
		}
		if err != nil {
			switch {
			case r.Context().Err() != nil:
				slog.Info("Client closed request mid-stream", "relayed_bytes", relayed)
				if _, werr := w.Write(abortedEvent); werr == nil {
					flush()
				}
			case errors.Is(err, llm.ErrIdleTimeout):
				slog.Warn("Upstream stream went idle", "relayed_bytes", relayed, "error", err)
			default:
				slog.Error("Upstream stream failed", "relayed_bytes", relayed, "error", err)
			}
			return
		}
	}
}
