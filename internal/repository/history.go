package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/glizzus/cobot/internal/generator"
	"github.com/glizzus/cobot/internal/playback"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutcomePlayed marks a request that reached playback.
const OutcomePlayed = "played"

type PlayRecord struct {
	ID          string
	GuildID     string
	RequesterID string
	Query       string
	Sound       string
	Outcome     string
	CreatedAt   time.Time
}

type SoundCount struct {
	Sound string
	Plays int64
}

type PlayRepository interface {
	Save(ctx context.Context, record PlayRecord) error
	TopSounds(ctx context.Context, guildID string, limit int) ([]SoundCount, error)
}

type PostgresPlayRepository struct {
	db *pgxpool.Pool
}

func NewPostgresPlayRepository(db *pgxpool.Pool) *PostgresPlayRepository {
	return &PostgresPlayRepository{db: db}
}

func PlayRecordToRowParams(record PlayRecord) []any {
	return []any{
		record.ID,
		record.GuildID,
		record.RequesterID,
		record.Query,
		record.Sound,
		record.Outcome,
		record.CreatedAt,
	}
}

func (r *PostgresPlayRepository) Save(ctx context.Context, record PlayRecord) error {
	const query = `
	INSERT INTO play_history (id, guild_id, requester_id, query, sound, outcome, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO NOTHING
	`

	if _, err := r.db.Exec(ctx, query, PlayRecordToRowParams(record)...); err != nil {
		return fmt.Errorf("failed to insert play record: %w", err)
	}
	return nil
}

func (r *PostgresPlayRepository) TopSounds(ctx context.Context, guildID string, limit int) ([]SoundCount, error) {
	const query = `
	SELECT sound, COUNT(*) AS plays
	FROM play_history
	WHERE guild_id = $1 AND outcome = $2
	GROUP BY sound
	ORDER BY plays DESC, sound ASC
	LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, guildID, OutcomePlayed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top sounds: %w", err)
	}

	counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SoundCount, error) {
		var c SoundCount
		err := row.Scan(&c.Sound, &c.Plays)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan top sounds: %w", err)
	}
	return counts, nil
}

var _ PlayRepository = (*PostgresPlayRepository)(nil)

// NopPlayRepository is used when history is disabled.
type NopPlayRepository struct{}

func (NopPlayRepository) Save(context.Context, PlayRecord) error { return nil }

func (NopPlayRepository) TopSounds(context.Context, string, int) ([]SoundCount, error) {
	return nil, nil
}

var _ PlayRepository = NopPlayRepository{}

// HistoryRecorder persists every playback outcome.
type HistoryRecorder struct {
	Repo PlayRepository
	IDs  generator.Generator[string]
	Now  func() time.Time
}

var _ playback.Recorder = (*HistoryRecorder)(nil)

func (h *HistoryRecorder) Record(ctx context.Context, req playback.Request, out playback.Outcome) {
	record, err := h.toRecord(req, out)
	if err != nil {
		slog.Error("Failed to build play record", "guildID", req.GuildID, "error", err)
		return
	}
	if err := h.Repo.Save(ctx, record); err != nil {
		slog.Error("Failed to save play record", "guildID", req.GuildID, "error", err)
	}
}

func (h *HistoryRecorder) toRecord(req playback.Request, out playback.Outcome) (PlayRecord, error) {
	id, err := h.IDs.Next()
	if err != nil {
		return PlayRecord{}, fmt.Errorf("failed to generate record ID: %w", err)
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	return PlayRecord{
		ID:          id,
		GuildID:     req.GuildID,
		RequesterID: req.RequesterID,
		Query:       req.Query,
		Sound:       out.Entry.DisplayName,
		Outcome:     out.Label(),
		CreatedAt:   now().UTC(),
	}, nil
}
