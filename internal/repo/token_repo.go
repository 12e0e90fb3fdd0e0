package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/speechbox/server/internal/model"
)

// TokenRepo defines the interface for token pool operations
type TokenRepo interface {
	ClaimNext(ctx context.Context, now time.Time) (model.ParticipationToken, error)
	Import(ctx context.Context, tokens []model.ParticipationToken) (int, error)
}

type tokenRepo struct {
	db Querier
}

// NewTokenRepo creates a new TokenRepo instance
func NewTokenRepo(db Querier) TokenRepo {
	return &tokenRepo{db: db}
}

// ClaimNext atomically takes one unissued token and stamps issued_at.
// Rows locked by a concurrent claimer are skipped, so no two callers get the same token.
// Returns sql.ErrNoRows (wrapped) when the pool is exhausted.
func (r *tokenRepo) ClaimNext(ctx context.Context, now time.Time) (model.ParticipationToken, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		UPDATE tokens SET issued_at = $1
		WHERE id = (
			SELECT id FROM tokens
			WHERE issued_at IS NULL
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id
	`, now).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("no unissued token: %w", err)
		}
		return "", fmt.Errorf("claim token: %w", err)
	}
	return model.ParticipationToken(id), nil
}

// Import adds pre-generated tokens to the pool; ids already present are skipped.
// Returns the number of tokens actually inserted.
func (r *tokenRepo) Import(ctx context.Context, tokens []model.ParticipationToken) (int, error) {
	inserted := 0
	for _, t := range tokens {
		result, err := r.db.ExecContext(ctx, `
			INSERT INTO tokens (id) VALUES ($1)
			ON CONFLICT (id) DO NOTHING
		`, string(t))
		if err != nil {
			return inserted, fmt.Errorf("import token: %w", err)
		}
		n, _ := result.RowsAffected()
		inserted += int(n)
	}
	return inserted, nil
}
