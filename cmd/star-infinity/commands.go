package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/starinfinity/star-infinity-api/internal/auth"
	"github.com/starinfinity/star-infinity-api/internal/logging"
)

// newMigrateCmd creates the schema and applies the seed file, then exits.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and apply --seed-file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logCloser := logging.Setup(logging.Options{Format: cfg.LogFormat, Production: cfg.Production(), File: cfg.LogFile})
			defer logCloser.Close()

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			slog.Info("database ready", "driver", cfg.DBDriver, "seed_file", cfg.SeedFile)
			return nil
		},
	}
}

// newHashPasswordCmd prints a bcrypt hash suitable for a seed file. The
// password is read from the first argument or, if absent, from stdin.
func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash of a password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password must not be empty")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// newIssueTokenCmd mints an access token in jwt mode, for local testing and
// service accounts.
func newIssueTokenCmd() *cobra.Command {
	var id, email string
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Issue an access token signed with --jwt-signing-key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.AuthMode != "jwt" {
				return fmt.Errorf("issue-token requires auth-mode=jwt, got %q", cfg.AuthMode)
			}
			p, err := auth.NewJWTProvider(auth.JWTConfig{
				SigningKey: cfg.JWTSigningKey,
				Issuer:     cfg.JWTIssuer,
				Audience:   cfg.JWTAudience,
				EmailClaim: cfg.JWTEmailClaim,
			})
			if err != nil {
				return err
			}
			token, err := p.Issue(auth.Identity{ID: id, Email: strings.ToLower(email)}, cfg.TokenTTL)
			if errors.Is(err, auth.ErrUnsupported) {
				return errors.New("issue-token needs an HMAC jwt-signing-key, not a public key")
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "subject (user id) of the token")
	cmd.Flags().StringVar(&email, "email", "", "email claim of the token")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
