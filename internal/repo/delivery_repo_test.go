package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/speechbox/server/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAttempt(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO delivery_attempts`).
		WithArgs("TOK1", fixedAt, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO delivery_attempts`).
		WithArgs("TOK1", fixedAt, "gateway timeout").
		WillReturnResult(sqlmock.NewResult(2, 1))

	r := NewDeliveryRepo(db)
	require.NoError(t, r.RecordAttempt(context.Background(), "TOK1", fixedAt, nil))
	require.NoError(t, r.RecordAttempt(context.Background(), "TOK1", fixedAt, errors.New("gateway timeout")))
}

func TestMarkSentOnlyOnce(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE tokens SET sent_at = \$2 WHERE id = \$1 AND sent_at IS NULL`).
		WithArgs("TOK1", fixedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewDeliveryRepo(db).MarkSent(context.Background(), "TOK1", fixedAt))
}

func TestPending(t *testing.T) {
	db, mock := newMock(t)
	cutoff := fixedAt.Add(-time.Minute)
	mock.ExpectQuery(`SELECT d.token_id, d.recipient, d.created_at, COUNT\(a.id\)`).
		WithArgs(cutoff, 5).
		WillReturnRows(sqlmock.NewRows([]string{"token_id", "recipient", "created_at", "count"}).
			AddRow("TOK1", "+61412345678", fixedAt.Add(-time.Hour), 0).
			AddRow("TOK2", "+61400000001", fixedAt.Add(-30*time.Minute), 3))

	pending, err := NewDeliveryRepo(db).Pending(context.Background(), cutoff, 5)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, model.ParticipationToken("TOK1"), pending[0].Token)
	assert.Equal(t, model.MobileNumber("+61412345678"), pending[0].Recipient)
	assert.Equal(t, 3, pending[1].Attempts)
}
