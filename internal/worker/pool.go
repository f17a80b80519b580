package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pdfchat-backend/internal/models"
)

// IngestQueue is the Redis list holding document-ingest jobs.
const IngestQueue = "queue:document-ingest"

const (
	popTimeout  = 5 * time.Second
	lockTimeout = 10 * time.Minute
)

type Indexer interface {
	Index(ctx context.Context, documentID, text string) (int, error)
}

type SessionStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Update(ctx context.Context, id uuid.UUID, fn func(*models.Session) error) (*models.Session, error)
}

type JobStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
}

type Publisher interface {
	PublishUpdate(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage)
}

// Pool embeds uploaded documents in the background so the first question
// does not pay for indexing.
type Pool struct {
	redis       *redis.Client
	indexer     Indexer
	sessions    SessionStore
	jobs        JobStore
	notifier    Publisher
	workerCount int
	backoffUnit time.Duration
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

func NewPool(redisClient *redis.Client, indexer Indexer, sessions SessionStore, jobs JobStore, notifier Publisher, workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		redis:       redisClient,
		indexer:     indexer,
		sessions:    sessions,
		jobs:        jobs,
		notifier:    notifier,
		workerCount: workerCount,
		backoffUnit: time.Second,
		stopChan:    make(chan struct{}),
	}
}

// Enqueue pushes a job onto the ingest queue.
func Enqueue(ctx context.Context, redisClient *redis.Client, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return redisClient.RPush(ctx, IngestQueue, data).Err()
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	slog.Info("started worker goroutines", "count", p.workerCount)
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	select {
	case <-p.stopChan:
		return
	default:
		close(p.stopChan)
	}
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			slog.Debug("worker shutting down", "worker", id)
			return
		default:
		}

		ctx := context.Background()

		result, err := p.redis.BLPop(ctx, popTimeout, IngestQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				slog.Warn("queue pop failed", "worker", id, "error", err)
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			slog.Error("failed to parse job", "worker", id, "error", err)
			continue
		}

		p.handle(ctx, id, &job)
	}
}

func (p *Pool) handle(ctx context.Context, workerID int, job *models.Job) {
	lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
	locked, err := p.redis.SetNX(ctx, lockKey, "1", lockTimeout).Result()
	if err != nil || !locked {
		return // Another worker has this job
	}
	defer p.redis.Del(ctx, lockKey)

	slog.Info("processing job", "worker", workerID, "job_id", job.ID, "type", job.Type)
	p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusProcessing)

	var processErr error
	switch job.Type {
	case models.JobTypeDocumentIngest:
		processErr = p.processIngest(ctx, job)
	default:
		processErr = fmt.Errorf("unknown job type: %s", job.Type)
	}

	if processErr != nil {
		p.handleFailure(ctx, job, processErr)
	}
}

func (p *Pool) processIngest(ctx context.Context, job *models.Job) error {
	session, err := p.sessions.Get(ctx, job.SessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	doc := session.Document
	if doc == nil || doc.ID != job.DocumentID {
		// Replaced or cleared since upload; nothing left to index
		slog.Info("skipping stale ingest job", "job_id", job.ID, "document_id", job.DocumentID)
		p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusCompleted)
		return nil
	}

	p.setDocumentStatus(ctx, job, models.DocumentStatusProcessing, 0)
	p.notifier.PublishUpdate(ctx, job.SessionID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID:    job.ID,
			Step:     1,
			StepName: "Embedding document",
		},
	})

	chunks, err := p.indexer.Index(ctx, doc.ID, doc.Text)
	if err != nil {
		return err
	}

	p.setDocumentStatus(ctx, job, models.DocumentStatusIndexed, chunks)
	p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusCompleted)
	p.notifier.PublishUpdate(ctx, job.SessionID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:      job.ID,
			DocumentID: doc.ID,
			Chunks:     chunks,
		},
	})

	slog.Info("job completed", "job_id", job.ID, "document_id", doc.ID, "chunks", chunks)
	return nil
}

func (p *Pool) setDocumentStatus(ctx context.Context, job *models.Job, status string, chunks int) {
	_, err := p.sessions.Update(ctx, job.SessionID, func(s *models.Session) error {
		if s.Document == nil || s.Document.ID != job.DocumentID {
			return nil
		}
		s.Document.Status = status
		if chunks > 0 {
			s.Document.Chunks = chunks
		}
		return nil
	})
	if err != nil {
		slog.Warn("failed to update document status", "session_id", job.SessionID, "error", err)
	}
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < 3 {
		slog.Warn("job failed, retrying", "job_id", job.ID, "attempt", job.RetryCount, "error", errMsg)
		p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusPending)
		p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		// Re-queue after backoff
		retry := *job
		backoff := time.Duration(1<<uint(job.RetryCount)) * p.backoffUnit
		time.AfterFunc(backoff, func() {
			if err := Enqueue(context.Background(), p.redis, &retry); err != nil {
				slog.Error("failed to requeue job", "job_id", retry.ID, "error", err)
			}
		})
		return
	}

	slog.Error("job failed permanently", "job_id", job.ID, "error", errMsg)
	p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusFailed)
	p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)
	p.setDocumentStatus(ctx, job, models.DocumentStatusFailed, 0)

	p.notifier.PublishUpdate(ctx, job.SessionID, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: errMsg,
		},
	})
}
