package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/speechbox/server/internal/auth"
	"github.com/speechbox/server/internal/model"
	"github.com/spf13/cobra"
)

// NewTokensCommand creates the tokens command group.
func NewTokensCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Manage the participation token pool",
	}
	cmd.AddCommand(&cobra.Command{
		Use:          "import <file>",
		Short:        "Add pre-generated tokens, one per line, to the pool",
		Long:         "Add pre-generated tokens to the pool. Blank lines and lines starting with # are ignored; tokens already in the pool are skipped.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			tokens, err := parseTokens(f)
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			inserted, err := e.service().ImportTokens(cmd.Context(), tokens)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d tokens imported, %d already present\n", inserted, len(tokens)-inserted)
			return nil
		},
	})
	return cmd
}

func parseTokens(r io.Reader) ([]model.ParticipationToken, error) {
	var tokens []model.ParticipationToken
	seen := make(map[model.ParticipationToken]bool)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		token, err := model.ParseParticipationToken(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tokens: %w", err)
	}
	return tokens, nil
}

// NewBoxTokenCommand creates the box-token command.
func NewBoxTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:          "box-token <boxId>",
		Short:        "Mint a bearer token for a box",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			boxID, err := model.ParseBoxID(args[0])
			if err != nil {
				return err
			}
			if secret == "" {
				return fmt.Errorf("--secret or BOX_JWT_SECRET is required")
			}
			token, err := auth.NewJWTService(secret).SignBoxToken(boxID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("BOX_JWT_SECRET"), "signing secret (default $BOX_JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultBoxTokenExpiry, "token lifetime")
	return cmd
}
