package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCharacterNotFound is returned when a character lookup yields no results.
var ErrCharacterNotFound = errors.New("character not found")

// Character is a player character sheet. Sheet carries the system-specific
// attributes as JSON; the server treats it as opaque.
type Character struct {
	ID         string
	OwnerID    string
	CampaignID string
	Name       string
	Class      string
	Level      int
	Sheet      json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CharacterRepository provides character persistence operations.
type CharacterRepository struct {
	db *pgxpool.Pool
}

// NewCharacterRepository creates a CharacterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCharacterRepository(db *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{db: db}
}

// Create inserts a new character and returns it with ID and timestamps set.
//
// Precondition: c.OwnerID and c.Name must be non-empty.
func (r *CharacterRepository) Create(ctx context.Context, c Character) (Character, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Level < 1 {
		c.Level = 1
	}
	if c.Sheet == nil {
		c.Sheet = json.RawMessage(`{}`)
	}

	var out Character
	err := r.db.QueryRow(ctx, `
		INSERT INTO characters (id, owner_id, campaign_id, name, class, level, sheet)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, owner_id, campaign_id, name, class, level, sheet, created_at, updated_at`,
		c.ID, c.OwnerID, c.CampaignID, c.Name, c.Class, c.Level, c.Sheet,
	).Scan(&out.ID, &out.OwnerID, &out.CampaignID, &out.Name, &out.Class,
		&out.Level, &out.Sheet, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return Character{}, fmt.Errorf("inserting character: %w", err)
	}
	return out, nil
}

// GetByID retrieves a character by its primary key.
//
// Postcondition: Returns the Character or ErrCharacterNotFound.
func (r *CharacterRepository) GetByID(ctx context.Context, id string) (Character, error) {
	var c Character
	err := r.db.QueryRow(ctx, `
		SELECT id, owner_id, campaign_id, name, class, level, sheet, created_at, updated_at
		FROM characters WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.OwnerID, &c.CampaignID, &c.Name, &c.Class,
		&c.Level, &c.Sheet, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Character{}, ErrCharacterNotFound
		}
		return Character{}, fmt.Errorf("querying character: %w", err)
	}
	return c, nil
}

// CharacterExists reports whether a character row exists for id.
// This is the membership check the join path runs when a character binding
// is supplied.
func (r *CharacterRepository) CharacterExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM characters WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking character: %w", err)
	}
	return exists, nil
}

// ListByOwner returns all characters for the given owner, oldest first.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *CharacterRepository) ListByOwner(ctx context.Context, ownerID string) ([]Character, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, owner_id, campaign_id, name, class, level, sheet, created_at, updated_at
		FROM characters WHERE owner_id = $1 ORDER BY created_at ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	defer rows.Close()

	chars := make([]Character, 0)
	for rows.Next() {
		var c Character
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.CampaignID, &c.Name, &c.Class,
			&c.Level, &c.Sheet, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning character row: %w", err)
		}
		chars = append(chars, c)
	}
	return chars, rows.Err()
}

// Update rewrites the mutable character fields including the sheet.
//
// Postcondition: Returns nil on success, ErrCharacterNotFound if no row updated.
func (r *CharacterRepository) Update(ctx context.Context, c Character) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE characters SET name = $2, class = $3, level = $4, sheet = $5, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.Name, c.Class, c.Level, c.Sheet,
	)
	if err != nil {
		return fmt.Errorf("updating character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCharacterNotFound
	}
	return nil
}

// Delete removes a character.
//
// Postcondition: Returns nil on success, ErrCharacterNotFound if no row deleted.
func (r *CharacterRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM characters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCharacterNotFound
	}
	return nil
}
