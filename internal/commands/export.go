package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/riskbook-dev/riskbook/internal/config"
	"github.com/riskbook-dev/riskbook/internal/journal"
	"github.com/riskbook-dev/riskbook/internal/store"
)

func newExportCommand() *cobra.Command {
	var configPath string
	var accountID string
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an account's journal as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, configPath, accountID, output)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.FileName, "path to riskbook.yaml")
	cmd.Flags().StringVar(&accountID, "account", "", "account id (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (defaults to stdout)")

	return cmd
}

func runExport(cmd *cobra.Command, configPath, accountID, output string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.Account(ctx, accountID); err != nil {
		return err
	}
	trades, err := st.TradesByAccount(ctx, accountID, store.TradeFilter{})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}
	if err := journal.WriteTrades(w, trades); err != nil {
		return err
	}
	if output != "" {
		cmd.Printf("Exported %d trades to %s\n", len(trades), output)
	}
	return nil
}
