package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/speechbox/server/internal/model"
)

// BoxRepo defines the interface for box repository operations
type BoxRepo interface {
	GetByID(ctx context.Context, id model.BoxID) (model.Box, error)
	SetLastSeen(ctx context.Context, id model.BoxID, at time.Time) error
	Upsert(ctx context.Context, box model.Box) error
}

type boxRepo struct {
	db Querier
}

// NewBoxRepo creates a new BoxRepo instance
func NewBoxRepo(db Querier) BoxRepo {
	return &boxRepo{db: db}
}

// GetByID retrieves a box by ID
func (r *boxRepo) GetByID(ctx context.Context, id model.BoxID) (model.Box, error) {
	query := `
		SELECT id, description, country_code, timezone, latitude, longitude, photo, last_seen, deployed_at
		FROM boxes
		WHERE id = $1
	`
	var box model.Box
	var boxID int
	var photo sql.NullString
	err := r.db.QueryRowContext(ctx, query, int(id)).Scan(
		&boxID,
		&box.Description,
		&box.CountryCode,
		&box.Timezone,
		&box.Latitude,
		&box.Longitude,
		&photo,
		&box.LastSeen,
		&box.DeployedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Box{}, fmt.Errorf("box not found: %w", err)
		}
		return model.Box{}, fmt.Errorf("failed to query box: %w", err)
	}
	box.ID = model.BoxID(boxID)
	box.Photo = nullString(photo)
	return box, nil
}

// SetLastSeen stamps last_seen; returns sql.ErrNoRows (wrapped) for an unknown box.
func (r *boxRepo) SetLastSeen(ctx context.Context, id model.BoxID, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE boxes SET last_seen = $2 WHERE id = $1
	`, int(id), at)
	if err != nil {
		return fmt.Errorf("set last seen: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("box not found: %w", sql.ErrNoRows)
	}
	return nil
}

// Upsert inserts a box or updates its descriptive fields. last_seen is left untouched.
func (r *boxRepo) Upsert(ctx context.Context, box model.Box) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO boxes (id, description, country_code, timezone, latitude, longitude, photo, deployed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			description = EXCLUDED.description,
			country_code = EXCLUDED.country_code,
			timezone = EXCLUDED.timezone,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			photo = EXCLUDED.photo,
			deployed_at = EXCLUDED.deployed_at
	`, int(box.ID), box.Description, box.CountryCode, box.Timezone,
		box.Latitude, box.Longitude, box.Photo, box.DeployedAt)
	if err != nil {
		return fmt.Errorf("upsert box %d: %w", box.ID, err)
	}
	return nil
}
