package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"portfolio-ai/backend/internal/model"
)

type sqliteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a TranscriptStore backed by the schema created
// by database.InitDB.
func NewSQLiteRepository(db *sql.DB) TranscriptStore {
	return &sqliteRepository{db: db}
}

// SaveTranscript upserts the header and rewrites the message rows in one
// transaction, so a reader never sees a half-written transcript.
func (r *sqliteRepository) SaveTranscript(ctx context.Context, t *model.Transcript) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsertQuery := `
		INSERT INTO transcripts (id, profile, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET profile = excluded.profile, updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, upsertQuery, t.ID, t.Profile, t.CreatedAt.UTC(), t.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("could not upsert transcript: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM transcript_messages WHERE transcript_id = ?", t.ID); err != nil {
		return fmt.Errorf("could not clear transcript messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO transcript_messages (transcript_id, position, role, content) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("could not prepare message insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range t.Messages {
		if _, err := stmt.ExecContext(ctx, t.ID, i, string(msg.Role), msg.Content); err != nil {
			return fmt.Errorf("could not insert message %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (r *sqliteRepository) GetTranscript(ctx context.Context, id string) (*model.Transcript, error) {
	query := "SELECT id, profile, created_at, updated_at FROM transcripts WHERE id = ?"
	var t model.Transcript
	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Profile, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, "SELECT role, content FROM transcript_messages WHERE transcript_id = ? ORDER BY position ASC", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	t.Messages = []model.Message{}
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, err
		}
		t.Messages = append(t.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *sqliteRepository) ListTranscripts(ctx context.Context) ([]model.TranscriptSummary, error) {
	query := `
		SELECT t.id, t.profile, t.updated_at, COUNT(m.position)
		FROM transcripts t
		LEFT JOIN transcript_messages m ON m.transcript_id = t.id
		GROUP BY t.id, t.profile, t.updated_at
		ORDER BY t.updated_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []model.TranscriptSummary{}
	for rows.Next() {
		var s model.TranscriptSummary
		if err := rows.Scan(&s.ID, &s.Profile, &s.UpdatedAt, &s.MessageCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *sqliteRepository) DeleteTranscript(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM transcript_messages WHERE transcript_id = ?", id); err != nil {
		return fmt.Errorf("could not delete transcript messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM transcripts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("could not delete transcript: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}
