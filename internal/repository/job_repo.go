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

var ErrJobNotFound = errors.New("job not found")

const jobTTL = 24 * time.Hour

// JobRepo keeps ingestion job records in Redis next to the queue.
type JobRepo struct {
	redis *redis.Client
}

func NewJobRepo(redisClient *redis.Client) *JobRepo {
	return &JobRepo{redis: redisClient}
}

func jobKey(id uuid.UUID) string {
	return "job:" + id.String()
}

func (r *JobRepo) Create(ctx context.Context, j *models.Job) error {
	j.ID = uuid.New()
	j.Status = models.JobStatusPending
	j.RetryCount = 0
	j.MaxRetries = 3
	j.CreatedAt = time.Now().UTC()
	return r.save(ctx, j)
}

func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	data, err := r.redis.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	j := &models.Job{}
	if err := json.Unmarshal(data, j); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return j, nil
}

func (r *JobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.update(ctx, id, func(j *models.Job) {
		j.Status = status
		if status == models.JobStatusCompleted || status == models.JobStatusFailed {
			now := time.Now().UTC()
			j.CompletedAt = &now
		}
	})
}

func (r *JobRepo) UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error {
	return r.update(ctx, id, func(j *models.Job) {
		j.ErrorMessage = &errMsg
		j.RetryCount = retryCount
	})
}

func (r *JobRepo) update(ctx context.Context, id uuid.UUID, fn func(*models.Job)) error {
	j, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	fn(j)
	return r.save(ctx, j)
}

func (r *JobRepo) save(ctx context.Context, j *models.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return r.redis.Set(ctx, jobKey(j.ID), data, jobTTL).Err()
}
