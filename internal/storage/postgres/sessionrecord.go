package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gametablehq/gametable/internal/game/session"
)

// ErrSessionRecordNotFound is returned when a session record lookup yields
// no results.
var ErrSessionRecordNotFound = errors.New("session record not found")

// SessionRecord is the durable trace of a live session: inserted when the
// session is created and closed when it ends, so ended sessions remain
// queryable after their room is evicted.
type SessionRecord struct {
	ID         string
	CampaignID string
	Name       string
	CreatorID  string
	Mode       string
	RulesetID  string
	Status     string
	StartedAt  time.Time
	EndedAt    *time.Time
}

// SessionRecordRepository provides session record persistence operations.
type SessionRecordRepository struct {
	db *pgxpool.Pool
}

// NewSessionRecordRepository creates a SessionRecordRepository backed by the
// given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSessionRecordRepository(db *pgxpool.Pool) *SessionRecordRepository {
	return &SessionRecordRepository{db: db}
}

// RecordSessionStart inserts the record for a freshly created session.
//
// Precondition: info.ID must be non-empty and not yet recorded.
func (r *SessionRecordRepository) RecordSessionStart(ctx context.Context, info session.Info) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO session_records (id, campaign_id, name, creator_id, mode, ruleset, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		info.ID, info.CampaignID, info.Name, info.CreatorID,
		string(info.Mode), info.RulesetID, string(info.Status),
	)
	if err != nil {
		return fmt.Errorf("inserting session record: %w", err)
	}
	return nil
}

// RecordSessionEnd closes the record for an ended session. Idempotent: a
// record already marked ended keeps its original end time.
//
// Postcondition: Returns ErrSessionRecordNotFound when no record exists.
func (r *SessionRecordRepository) RecordSessionEnd(ctx context.Context, sessionID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE session_records SET status = 'ended', ended_at = COALESCE(ended_at, NOW())
		WHERE id = $1`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("closing session record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionRecordNotFound
	}
	return nil
}

// GetByID retrieves a session record by session id.
//
// Postcondition: Returns the SessionRecord or ErrSessionRecordNotFound.
func (r *SessionRecordRepository) GetByID(ctx context.Context, id string) (SessionRecord, error) {
	var rec SessionRecord
	err := r.db.QueryRow(ctx, `
		SELECT id, campaign_id, name, creator_id, mode, ruleset, status, started_at, ended_at
		FROM session_records WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.CampaignID, &rec.Name, &rec.CreatorID, &rec.Mode,
		&rec.RulesetID, &rec.Status, &rec.StartedAt, &rec.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SessionRecord{}, ErrSessionRecordNotFound
		}
		return SessionRecord{}, fmt.Errorf("querying session record: %w", err)
	}
	return rec, nil
}

// ListByCampaign returns all session records for a campaign, newest first.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *SessionRecordRepository) ListByCampaign(ctx context.Context, campaignID string) ([]SessionRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, campaign_id, name, creator_id, mode, ruleset, status, started_at, ended_at
		FROM session_records WHERE campaign_id = $1 ORDER BY started_at DESC`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing session records: %w", err)
	}
	defer rows.Close()

	records := make([]SessionRecord, 0)
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.CampaignID, &rec.Name, &rec.CreatorID,
			&rec.Mode, &rec.RulesetID, &rec.Status, &rec.StartedAt, &rec.EndedAt); err != nil {
			return nil, fmt.Errorf("scanning session record row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
