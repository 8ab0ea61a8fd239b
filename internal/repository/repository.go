package repository

import (
	"context"

	"portfolio-ai/backend/internal/model"
)

// TranscriptStore persists conversation transcripts for the chat client.
// Implementations are interchangeable; the session only sees this interface.
type TranscriptStore interface {
	// SaveTranscript creates or fully replaces the transcript with t.ID.
	SaveTranscript(ctx context.Context, t *model.Transcript) error
	GetTranscript(ctx context.Context, id string) (*model.Transcript, error)
	// ListTranscripts returns summaries, most recently updated first.
	ListTranscripts(ctx context.Context) ([]model.TranscriptSummary, error)
	DeleteTranscript(ctx context.Context, id string) error
}
