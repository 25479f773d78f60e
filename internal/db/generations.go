package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bobarin/reze/internal/animate"
	"github.com/bobarin/reze/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (db *DB) CreateGeneration(ctx context.Context, g *models.Generation) error {
	query := `
		INSERT INTO generations (
			id, session_id, mode, status, prompt_length, poll_count,
			error_message, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := db.ExecContext(
		ctx, query,
		g.ID, g.SessionID, g.Mode, g.Status, g.PromptLength, g.PollCount,
		g.ErrorMessage, g.StartedAt, g.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}
	return nil
}

func (db *DB) FinishGeneration(ctx context.Context, id uuid.UUID, status string, pollCount int, errorMessage *string, finishedAt time.Time) error {
	query := `
		UPDATE generations
		SET status = $1, poll_count = $2, error_message = $3, finished_at = $4
		WHERE id = $5
	`
	_, err := db.ExecContext(ctx, query, status, pollCount, errorMessage, finishedAt, id)
	if err != nil {
		return fmt.Errorf("failed to finish generation: %w", err)
	}
	return nil
}

func (db *DB) GetGeneration(ctx context.Context, id uuid.UUID) (*models.Generation, error) {
	query := `
		SELECT
			id, session_id, mode, status, prompt_length, poll_count,
			error_message, started_at, finished_at
		FROM generations
		WHERE id = $1
	`

	g := &models.Generation{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.SessionID, &g.Mode, &g.Status, &g.PromptLength, &g.PollCount,
		&g.ErrorMessage, &g.StartedAt, &g.FinishedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("generation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}

	return g, nil
}

func (db *DB) ListSessionGenerations(ctx context.Context, sessionID uuid.UUID) ([]models.Generation, error) {
	query := `
		SELECT
			id, session_id, mode, status, prompt_length, poll_count,
			error_message, started_at, finished_at
		FROM generations
		WHERE session_id = $1
		ORDER BY started_at
	`

	rows, err := db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var gens []models.Generation
	for rows.Next() {
		var g models.Generation
		err := rows.Scan(
			&g.ID, &g.SessionID, &g.Mode, &g.Status, &g.PromptLength, &g.PollCount,
			&g.ErrorMessage, &g.StartedAt, &g.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		gens = append(gens, g)
	}

	return gens, rows.Err()
}

// RecordGeneration stores a completed one-shot call (image generate, edit,
// assistant reply).
func (db *DB) RecordGeneration(ctx context.Context, g *models.Generation) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return db.CreateGeneration(ctx, g)
}

// VideoRecorder logs video submissions as they move through the job states.
// It implements animate.Observer.
type VideoRecorder struct {
	db  *DB
	log *zap.Logger
}

func NewVideoRecorder(db *DB, log *zap.Logger) *VideoRecorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &VideoRecorder{db: db, log: log.Named("db")}
}

func (r *VideoRecorder) JobChanged(ctx context.Context, snap animate.Snapshot) {
	if snap.SubmissionID == nil {
		return
	}
	var err error
	switch snap.State {
	case animate.StateGenerating:
		err = r.db.CreateGeneration(ctx, videoGeneration(snap))
	case animate.StateDone, animate.StateError:
		status, msg := finishStatus(snap)
		finished := time.Now()
		if snap.FinishedAt != nil {
			finished = *snap.FinishedAt
		}
		err = r.db.FinishGeneration(ctx, *snap.SubmissionID, status, snap.PollCount, msg, finished)
	}
	if err != nil {
		r.log.Warn("failed to record video generation",
			zap.String("submission_id", snap.SubmissionID.String()),
			zap.Error(err),
		)
	}
}

func videoGeneration(snap animate.Snapshot) *models.Generation {
	session := snap.SessionID
	started := time.Now()
	if snap.SubmittedAt != nil {
		started = *snap.SubmittedAt
	}
	return &models.Generation{
		ID:           *snap.SubmissionID,
		SessionID:    &session,
		Mode:         models.ModeAnimate,
		Status:       models.GenerationRunning,
		PromptLength: snap.PromptLength,
		StartedAt:    started,
	}
}

func finishStatus(snap animate.Snapshot) (string, *string) {
	if snap.State == animate.StateDone {
		return models.GenerationSucceeded, nil
	}
	msg := snap.Error
	if snap.Closed {
		return models.GenerationCancelled, &msg
	}
	return models.GenerationFailed, &msg
}
