// Package tests holds integration tests that run against a real PostgreSQL
// database. They are skipped unless DATABASE_URL is set.
package tests

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/speechbox/server/internal/db"
	"github.com/speechbox/server/internal/model"
	"github.com/speechbox/server/internal/speechbox"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// speechboxTables lists every table written by the service, children first.
const speechboxTables = "delivery_attempts, token_deliveries, mobiles, stories, sessions, tokens, boxes"

// OpenTestDB connects to DATABASE_URL and applies migrations, or skips the test.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	database, err := db.Open(context.Background(), url, db.Options{MaxOpenConns: 20}, zap.NewNop())
	require.NoError(t, err, "database open must succeed; check DATABASE_URL and that test DB exists")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.Migrate(database, zap.NewNop()), "migrations must run successfully")
	require.NoError(t, TruncateTables(context.Background(), database))
	return database
}

// TruncateTables empties all speechbox tables for a clean test state.
func TruncateTables(ctx context.Context, database *sql.DB) error {
	_, err := database.ExecContext(ctx, "TRUNCATE TABLE "+speechboxTables+" RESTART IDENTITY CASCADE")
	if err != nil {
		return fmt.Errorf("truncate speechbox tables: %w", err)
	}
	return nil
}

// recordingDispatcher collects deliveries handed over after commit.
type recordingDispatcher struct {
	mu         sync.Mutex
	deliveries []model.Delivery
}

func (d *recordingDispatcher) Enqueue(delivery model.Delivery) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, delivery)
}

func (d *recordingDispatcher) Deliveries() []model.Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.Delivery(nil), d.deliveries...)
}

type fixture struct {
	DB         *sql.DB
	Service    *speechbox.Service
	Dispatcher *recordingDispatcher
}

// newFixture opens the test database and seeds one box per id and the given tokens.
func newFixture(t *testing.T, boxIDs []model.BoxID, tokens []model.ParticipationToken) *fixture {
	t.Helper()
	database := OpenTestDB(t)

	dispatcher := &recordingDispatcher{}
	svc := speechbox.NewService(database, dispatcher, zaptest.NewLogger(t))

	ctx := context.Background()
	boxes := make([]model.Box, 0, len(boxIDs))
	for _, id := range boxIDs {
		boxes = append(boxes, model.Box{ID: id, Description: "box " + id.String(), CountryCode: "61", Timezone: "UTC"})
	}
	require.NoError(t, svc.ProvisionBoxes(ctx, boxes))
	if len(tokens) > 0 {
		n, err := svc.ImportTokens(ctx, tokens)
		require.NoError(t, err)
		require.Equal(t, len(tokens), n)
	}

	return &fixture{DB: database, Service: svc, Dispatcher: dispatcher}
}
