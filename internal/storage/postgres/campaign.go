package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCampaignNotFound is returned when a campaign lookup yields no results.
var ErrCampaignNotFound = errors.New("campaign not found")

// ErrCampaignNameTaken is returned when creating a campaign with a name the
// owner already uses.
var ErrCampaignNameTaken = errors.New("campaign name already taken")

// Campaign is a long-running game an owner hosts sessions under.
type Campaign struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	RulesetID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CampaignRepository provides campaign persistence operations.
type CampaignRepository struct {
	db *pgxpool.Pool
}

// NewCampaignRepository creates a CampaignRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCampaignRepository(db *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create inserts a new campaign and returns it with ID and timestamps set.
//
// Precondition: c.OwnerID and c.Name must be non-empty.
// Postcondition: Returns the created campaign with ID set, or
// ErrCampaignNameTaken when the owner already has a campaign of that name.
func (r *CampaignRepository) Create(ctx context.Context, c Campaign) (Campaign, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	var out Campaign
	err := r.db.QueryRow(ctx, `
		INSERT INTO campaigns (id, owner_id, name, description, ruleset)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, owner_id, name, description, ruleset, created_at, updated_at`,
		c.ID, c.OwnerID, c.Name, c.Description, c.RulesetID,
	).Scan(&out.ID, &out.OwnerID, &out.Name, &out.Description, &out.RulesetID,
		&out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return Campaign{}, ErrCampaignNameTaken
		}
		return Campaign{}, fmt.Errorf("inserting campaign: %w", err)
	}
	return out, nil
}

// GetByID retrieves a campaign by its primary key.
//
// Postcondition: Returns the Campaign or ErrCampaignNotFound.
func (r *CampaignRepository) GetByID(ctx context.Context, id string) (Campaign, error) {
	var c Campaign
	err := r.db.QueryRow(ctx, `
		SELECT id, owner_id, name, description, ruleset, created_at, updated_at
		FROM campaigns WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &c.RulesetID,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Campaign{}, ErrCampaignNotFound
		}
		return Campaign{}, fmt.Errorf("querying campaign: %w", err)
	}
	return c, nil
}

// CampaignExists reports whether a campaign row exists for id.
// This is the check create_session runs when a campaign binding is
// supplied.
func (r *CampaignRepository) CampaignExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking campaign: %w", err)
	}
	return exists, nil
}

// ListByOwner returns all campaigns for the given owner, oldest first.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *CampaignRepository) ListByOwner(ctx context.Context, ownerID string) ([]Campaign, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, owner_id, name, description, ruleset, created_at, updated_at
		FROM campaigns WHERE owner_id = $1 ORDER BY created_at ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := make([]Campaign, 0)
	for rows.Next() {
		var c Campaign
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &c.RulesetID,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning campaign row: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// Update rewrites the mutable campaign fields.
//
// Postcondition: Returns nil on success, ErrCampaignNotFound if no row updated.
func (r *CampaignRepository) Update(ctx context.Context, c Campaign) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE campaigns SET name = $2, description = $3, ruleset = $4, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.Name, c.Description, c.RulesetID,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrCampaignNameTaken
		}
		return fmt.Errorf("updating campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// Delete removes a campaign.
//
// Postcondition: Returns nil on success, ErrCampaignNotFound if no row deleted.
func (r *CampaignRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}
