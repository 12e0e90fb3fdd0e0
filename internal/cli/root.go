// Package cli implements speechboxctl, the operator tool for schema migrations,
// box provisioning, token pool imports and device token minting.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/speechbox/server/internal/db"
	"github.com/speechbox/server/internal/logging"
	"github.com/speechbox/server/internal/speechbox"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DatabaseURL string
	Verbose     bool
}

// NewRootCommand creates the root command for speechboxctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "speechboxctl",
		Short: "SpeechBox administration",
		Long:  "Administer the SpeechBox server: migrate the database, provision boxes and tokens, mint device tokens.",
	}

	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL (default $DATABASE_URL)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewBoxesCommand(opts))
	cmd.AddCommand(NewTokensCommand(opts))
	cmd.AddCommand(NewBoxTokenCommand(opts))

	return cmd
}

// env bundles what database-backed commands need.
type env struct {
	db     *sql.DB
	logger *zap.Logger
}

func (e *env) Close() {
	e.db.Close()
	_ = e.logger.Sync()
}

// service builds a Service for administrative writes. It never issues tokens,
// so it needs no notification dispatcher.
func (e *env) service() *speechbox.Service {
	return speechbox.NewService(e.db, nil, e.logger)
}

func openEnv(ctx context.Context, opts *RootOptions) (*env, error) {
	if opts.DatabaseURL == "" {
		return nil, fmt.Errorf("--database-url or DATABASE_URL is required")
	}
	logger, err := logging.New(opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	if !opts.Verbose {
		logger = zap.NewNop()
	}
	database, err := db.Open(ctx, opts.DatabaseURL, db.Options{MaxOpenConns: 2}, logger)
	if err != nil {
		return nil, err
	}
	return &env{db: database, logger: logger}, nil
}
