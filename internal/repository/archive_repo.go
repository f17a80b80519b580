package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pdfchat-backend/internal/models"
)

var ErrArchiveNotFound = errors.New("archive not found")

// ArchiveRepo keeps a copy of every finished conversation in Postgres.
type ArchiveRepo struct {
	pool *pgxpool.Pool
}

func NewArchiveRepo(pool *pgxpool.Pool) *ArchiveRepo {
	return &ArchiveRepo{pool: pool}
}

func (r *ArchiveRepo) Create(ctx context.Context, a *models.HistoryArchive) error {
	a.ID = uuid.New()

	query := `INSERT INTO history_archives (id, session_id, document, history_json, turns)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		a.ID, a.SessionID, a.Document, a.HistoryJSON, a.Turns,
	).Scan(&a.CreatedAt)
}

func (r *ArchiveRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.HistoryArchive, error) {
	a := &models.HistoryArchive{}
	query := `SELECT id, session_id, document, history_json, turns, created_at
		FROM history_archives WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.SessionID, &a.Document, &a.HistoryJSON, &a.Turns, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrArchiveNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *ArchiveRepo) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.HistoryArchive, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `SELECT id, session_id, document, turns, created_at
		FROM history_archives WHERE session_id = $1
		ORDER BY created_at DESC LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var archives []models.HistoryArchive
	for rows.Next() {
		var a models.HistoryArchive
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Document, &a.Turns, &a.CreatedAt); err != nil {
			return nil, err
		}
		archives = append(archives, a)
	}
	return archives, rows.Err()
}
