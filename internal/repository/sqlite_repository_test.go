package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-ai/backend/internal/database"
	"portfolio-ai/backend/internal/model"
	"portfolio-ai/backend/internal/repository"
)

func newTranscript(id string, updatedAt time.Time, contents ...string) *model.Transcript {
	t := &model.Transcript{
		ID:        id,
		Profile:   "chat",
		CreatedAt: updatedAt.Add(-time.Minute),
		UpdatedAt: updatedAt,
		Messages:  []model.Message{{Role: model.RoleSystem, Content: "You are a helpful assistant."}},
	}
	for i, c := range contents {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		t.Messages = append(t.Messages, model.Message{Role: role, Content: c})
	}
	return t
}

func setupSQLMockRepository(t *testing.T) (repository.TranscriptStore, sqlmock.Sqlmock) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewSQLiteRepository(db), mockDB
}

func TestSQLiteRepository_SaveTranscript_SQL(t *testing.T) {
	ctx := context.Background()
	transcript := newTranscript("t1", time.Now(), "hi", "hello")

	t.Run("Success - Header and messages in one transaction", func(t *testing.T) {
		repo, mockDB := setupSQLMockRepository(t)

		mockDB.ExpectBegin()
		mockDB.ExpectExec("INSERT INTO transcripts").
			WithArgs("t1", "chat", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mockDB.ExpectExec("DELETE FROM transcript_messages").WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 0))
		prep := mockDB.ExpectPrepare("INSERT INTO transcript_messages")
		prep.ExpectExec().WithArgs("t1", 0, "system", "You are a helpful assistant.").WillReturnResult(sqlmock.NewResult(1, 1))
		prep.ExpectExec().WithArgs("t1", 1, "user", "hi").WillReturnResult(sqlmock.NewResult(1, 1))
		prep.ExpectExec().WithArgs("t1", 2, "assistant", "hello").WillReturnResult(sqlmock.NewResult(1, 1))
		mockDB.ExpectCommit()

		require.NoError(t, repo.SaveTranscript(ctx, transcript))
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("Failure - Message insert rolls back", func(t *testing.T) {
		repo, mockDB := setupSQLMockRepository(t)

		mockDB.ExpectBegin()
		mockDB.ExpectExec("INSERT INTO transcripts").WillReturnResult(sqlmock.NewResult(1, 1))
		mockDB.ExpectExec("DELETE FROM transcript_messages").WillReturnResult(sqlmock.NewResult(0, 0))
		prep := mockDB.ExpectPrepare("INSERT INTO transcript_messages")
		prep.ExpectExec().WillReturnError(errors.New("disk full"))
		mockDB.ExpectRollback()

		err := repo.SaveTranscript(ctx, transcript)
		assert.ErrorContains(t, err, "disk full")
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})
}

func TestSQLiteRepository_GetTranscript_SQL(t *testing.T) {
	repo, mockDB := setupSQLMockRepository(t)
	mockDB.ExpectQuery("SELECT id, profile, created_at, updated_at FROM transcripts").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetTranscript(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestSQLiteRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := repository.NewSQLiteRepository(db)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	older := newTranscript("older", base, "first question")
	newer := newTranscript("newer", base.Add(time.Hour), "q", "a", "q2")
	require.NoError(t, repo.SaveTranscript(ctx, older))
	require.NoError(t, repo.SaveTranscript(ctx, newer))

	t.Run("Get returns messages in order", func(t *testing.T) {
		got, err := repo.GetTranscript(ctx, "newer")
		require.NoError(t, err)
		assert.Equal(t, "chat", got.Profile)
		assert.True(t, newer.UpdatedAt.Equal(got.UpdatedAt))
		require.Len(t, got.Messages, 4)
		assert.Equal(t, model.RoleAssistant, got.Messages[2].Role)
		assert.Equal(t, "q2", got.Messages[3].Content)
	})

	t.Run("Save replaces messages", func(t *testing.T) {
		shorter := newTranscript("older", base.Add(2*time.Hour))
		require.NoError(t, repo.SaveTranscript(ctx, shorter))

		got, err := repo.GetTranscript(ctx, "older")
		require.NoError(t, err)
		assert.Len(t, got.Messages, 1)
	})

	t.Run("List is newest first with counts", func(t *testing.T) {
		summaries, err := repo.ListTranscripts(ctx)
		require.NoError(t, err)
		require.Len(t, summaries, 2)
		assert.Equal(t, "older", summaries[0].ID)
		assert.Equal(t, 1, summaries[0].MessageCount)
		assert.Equal(t, "newer", summaries[1].ID)
		assert.Equal(t, 4, summaries[1].MessageCount)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteTranscript(ctx, "newer"))

		_, err := repo.GetTranscript(ctx, "newer")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.ErrorIs(t, repo.DeleteTranscript(ctx, "newer"), repository.ErrNotFound)
	})
}
