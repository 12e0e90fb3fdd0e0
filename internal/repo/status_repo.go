package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/speechbox/server/internal/model"
)

// StatusRepo answers the read-only dashboard queries
type StatusRepo interface {
	ListBoxes(ctx context.Context) ([]model.BoxInfo, error)
	CountDuplicateMobiles(ctx context.Context) (int, error)
	CountUnpaidMobiles(ctx context.Context) (int, error)
	CountAvailableTokens(ctx context.Context) (int, error)
	StoriesByDate(ctx context.Context) ([]model.StoriesByDate, error)
}

type statusRepo struct {
	db *sqlx.DB
}

// NewStatusRepo creates a new StatusRepo instance
func NewStatusRepo(db *sql.DB) StatusRepo {
	return &statusRepo{db: sqlx.NewDb(db, "postgres")}
}

type boxInfoRow struct {
	ID          int            `db:"id"`
	Description string         `db:"description"`
	CountryCode string         `db:"country_code"`
	Timezone    string         `db:"timezone"`
	Latitude    *float64       `db:"latitude"`
	Longitude   *float64       `db:"longitude"`
	Photo       sql.NullString `db:"photo"`
	LastSeen    *time.Time     `db:"last_seen"`
	DeployedAt  *time.Time     `db:"deployed_at"`
	NumStories  int            `db:"num_stories"`
	LatestStory *time.Time     `db:"latest_story"`
}

type storiesByDateRow struct {
	Day        time.Time `db:"day"`
	NumStories int       `db:"num_stories"`
}

// ListBoxes returns every box with its story count and the updated_at of its latest story.
func (r *statusRepo) ListBoxes(ctx context.Context) ([]model.BoxInfo, error) {
	var rows []boxInfoRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT b.id, b.description, b.country_code, b.timezone, b.latitude, b.longitude,
		       b.photo, b.last_seen, b.deployed_at,
		       COUNT(s.id) AS num_stories,
		       MAX(s.updated_at) AS latest_story
		FROM boxes b
		LEFT JOIN stories s ON s.box_id = b.id
		GROUP BY b.id
		ORDER BY b.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list boxes: %w", err)
	}

	result := make([]model.BoxInfo, 0, len(rows))
	for _, row := range rows {
		result = append(result, model.BoxInfo{
			Box: model.Box{
				ID:          model.BoxID(row.ID),
				Description: row.Description,
				CountryCode: row.CountryCode,
				Timezone:    row.Timezone,
				Latitude:    row.Latitude,
				Longitude:   row.Longitude,
				Photo:       nullString(row.Photo),
				LastSeen:    row.LastSeen,
				DeployedAt:  row.DeployedAt,
			},
			NumStories:  row.NumStories,
			LatestStory: row.LatestStory,
		})
	}
	return result, nil
}

// CountDuplicateMobiles counts submissions flagged as repeats of an earlier number.
func (r *statusRepo) CountDuplicateMobiles(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM mobiles WHERE duplicate`); err != nil {
		return 0, fmt.Errorf("count duplicate mobiles: %w", err)
	}
	return n, nil
}

// CountUnpaidMobiles counts submissions still awaiting payment.
func (r *statusRepo) CountUnpaidMobiles(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM mobiles WHERE payment = 0`); err != nil {
		return 0, fmt.Errorf("count unpaid mobiles: %w", err)
	}
	return n, nil
}

// CountAvailableTokens counts tokens that can still be issued.
func (r *statusRepo) CountAvailableTokens(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM tokens WHERE issued_at IS NULL`); err != nil {
		return 0, fmt.Errorf("count available tokens: %w", err)
	}
	return n, nil
}

// StoriesByDate groups stories by the UTC calendar day they were created.
func (r *statusRepo) StoriesByDate(ctx context.Context) ([]model.StoriesByDate, error) {
	var rows []storiesByDateRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day, COUNT(*) AS num_stories
		FROM stories
		GROUP BY day
		ORDER BY day
	`)
	if err != nil {
		return nil, fmt.Errorf("stories by date: %w", err)
	}

	result := make([]model.StoriesByDate, 0, len(rows))
	for _, row := range rows {
		d := row.Day
		result = append(result, model.StoriesByDate{
			Date:       time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
			NumStories: row.NumStories,
		})
	}
	return result, nil
}
