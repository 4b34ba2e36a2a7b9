package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/riskbook-dev/riskbook/internal/config"
	"github.com/riskbook-dev/riskbook/internal/store"
)

func newInitCommand() *cobra.Command {
	var engine string
	var dsn string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a riskbook.yaml and initialize the database schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			return runInit(cmd.Context(), absDir, engine, dsn)
		},
	}

	cmd.Flags().StringVar(&engine, "engine", "sqlite", "database engine (sqlite or postgres)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "database DSN (defaults to riskbook.db in the target directory)")

	return cmd
}

func runInit(ctx context.Context, dir, engine, dsn string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	cfg := config.Default()
	cfg.Database.Engine = engine
	if dsn != "" {
		cfg.Database.DSN = dsn
	} else if engine == "sqlite" {
		cfg.Database.DSN = filepath.Join(dir, "riskbook.db")
	} else {
		return fmt.Errorf("--dsn is required for engine %q", engine)
	}

	secret, err := randomSecret()
	if err != nil {
		return fmt.Errorf("generating auth secret: %w", err)
	}
	cfg.Auth.Secret = secret

	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}

	// Opening the store creates the schema.
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	if err := st.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}

	fmt.Printf("Initialized riskbook at %s (%s database: %s)\n", dir, engine, cfg.Database.DSN)
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
