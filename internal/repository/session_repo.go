package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pdfchat-backend/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

const maxUpdateRetries = 5

// SessionRepo stores per-browser sessions (document and chat history) in Redis.
type SessionRepo struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewSessionRepo(redisClient *redis.Client, ttl time.Duration) *SessionRepo {
	return &SessionRepo{redis: redisClient, ttl: ttl}
}

func sessionKey(id uuid.UUID) string {
	return "session:" + id.String()
}

// Create stores a fresh session with an empty history.
func (r *SessionRepo) Create(ctx context.Context) (*models.Session, error) {
	s := &models.Session{ID: uuid.New(), History: &models.ChatHistory{}}
	if err := r.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SessionRepo) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	data, err := r.redis.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeSession(id, data)
}

func (r *SessionRepo) Save(ctx context.Context, s *models.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.redis.Set(ctx, sessionKey(s.ID), data, r.ttl).Err()
}

// Update applies fn to the stored session inside a WATCH transaction and
// retries when another request changed the session concurrently.
func (r *SessionRepo) Update(ctx context.Context, id uuid.UUID, fn func(*models.Session) error) (*models.Session, error) {
	key := sessionKey(id)
	var updated *models.Session

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		s, err := decodeSession(id, data)
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
		out, err := json.Marshal(s)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, r.ttl)
			return nil
		})
		if err == nil {
			updated = s
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := r.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("session %s: too many concurrent updates", id)
}

func (r *SessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.redis.Del(ctx, sessionKey(id)).Err()
}

func decodeSession(id uuid.UUID, data []byte) (*models.Session, error) {
	s := &models.Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	if s.History == nil {
		s.History = &models.ChatHistory{}
	}
	return s, nil
}
