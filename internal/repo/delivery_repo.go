package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/speechbox/server/internal/model"
)

// DeliveryRepo defines the interface for the token notification outbox
type DeliveryRepo interface {
	Create(ctx context.Context, token model.ParticipationToken, recipient model.MobileNumber, now time.Time) error
	RecordAttempt(ctx context.Context, token model.ParticipationToken, at time.Time, sendErr error) error
	MarkSent(ctx context.Context, token model.ParticipationToken, at time.Time) error
	Pending(ctx context.Context, createdBefore time.Time, maxAttempts int) ([]model.Delivery, error)
}

type deliveryRepo struct {
	db Querier
}

// NewDeliveryRepo creates a new DeliveryRepo instance
func NewDeliveryRepo(db Querier) DeliveryRepo {
	return &deliveryRepo{db: db}
}

// Create writes the outbox row for a freshly issued token.
func (r *deliveryRepo) Create(ctx context.Context, token model.ParticipationToken, recipient model.MobileNumber, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO token_deliveries (token_id, recipient, created_at)
		VALUES ($1, $2, $3)
	`, string(token), string(recipient), now)
	if err != nil {
		return fmt.Errorf("create delivery: %w", err)
	}
	return nil
}

// RecordAttempt appends one attempt to the log; a nil sendErr marks success.
func (r *deliveryRepo) RecordAttempt(ctx context.Context, token model.ParticipationToken, at time.Time, sendErr error) error {
	var errText *string
	if sendErr != nil {
		msg := sendErr.Error()
		errText = &msg
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO delivery_attempts (token_id, attempted_at, error)
		VALUES ($1, $2, $3)
	`, string(token), at, errText)
	if err != nil {
		return fmt.Errorf("record delivery attempt: %w", err)
	}
	return nil
}

// MarkSent stamps sent_at on the token.
func (r *deliveryRepo) MarkSent(ctx context.Context, token model.ParticipationToken, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tokens SET sent_at = $2 WHERE id = $1 AND sent_at IS NULL
	`, string(token), at)
	if err != nil {
		return fmt.Errorf("mark token sent: %w", err)
	}
	return nil
}

// Pending lists deliveries whose token was never marked sent, created before createdBefore
// and attempted fewer than maxAttempts times.
func (r *deliveryRepo) Pending(ctx context.Context, createdBefore time.Time, maxAttempts int) ([]model.Delivery, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.token_id, d.recipient, d.created_at, COUNT(a.id)
		FROM token_deliveries d
		JOIN tokens t ON t.id = d.token_id
		LEFT JOIN delivery_attempts a ON a.token_id = d.token_id
		WHERE t.sent_at IS NULL AND d.created_at < $1
		GROUP BY d.token_id, d.recipient, d.created_at
		HAVING COUNT(a.id) < $2
		ORDER BY d.created_at
	`, createdBefore, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("query pending deliveries: %w", err)
	}
	defer rows.Close()

	var result []model.Delivery
	for rows.Next() {
		var d model.Delivery
		var token, recipient string
		if err := rows.Scan(&token, &recipient, &d.CreatedAt, &d.Attempts); err != nil {
			return nil, fmt.Errorf("scan pending delivery: %w", err)
		}
		d.Token = model.ParticipationToken(token)
		d.Recipient = model.MobileNumber(recipient)
		result = append(result, d)
	}
	return result, rows.Err()
}
