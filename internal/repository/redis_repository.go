package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"portfolio-ai/backend/internal/model"
)

type redisRepository struct {
	rdb *redis.Client
}

// NewRedisRepository returns a TranscriptStore that keeps each transcript as
// one JSON value plus an index sorted by update time.
func NewRedisRepository(rdb *redis.Client) TranscriptStore {
	return &redisRepository{rdb: rdb}
}

// Key Generation Helpers
func (r *redisRepository) transcriptKey(id string) string { return fmt.Sprintf("transcript:%s", id) }
func (r *redisRepository) indexKey() string               { return "transcripts" }

func (r *redisRepository) SaveTranscript(ctx context.Context, t *model.Transcript) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("could not marshal transcript: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.transcriptKey(t.ID), data, 0)
	pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(t.UpdatedAt.UnixNano()), Member: t.ID})
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepository) GetTranscript(ctx context.Context, id string) (*model.Transcript, error) {
	data, err := r.rdb.Get(ctx, r.transcriptKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var t model.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("could not unmarshal transcript %s: %w", id, err)
	}
	return &t, nil
}

func (r *redisRepository) ListTranscripts(ctx context.Context) ([]model.TranscriptSummary, error) {
	ids, err := r.rdb.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	summaries := make([]model.TranscriptSummary, 0, len(ids))
	for _, id := range ids {
		t, err := r.GetTranscript(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Index entry outlived its value; skip it.
			continue
		}
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, model.TranscriptSummary{
			ID:           t.ID,
			Profile:      t.Profile,
			MessageCount: len(t.Messages),
			UpdatedAt:    t.UpdatedAt,
		})
	}
	return summaries, nil
}

func (r *redisRepository) DeleteTranscript(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	del := pipe.Del(ctx, r.transcriptKey(id))
	pipe.ZRem(ctx, r.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}
