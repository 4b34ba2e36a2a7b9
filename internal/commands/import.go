package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/riskbook-dev/riskbook/internal/audit"
	"github.com/riskbook-dev/riskbook/internal/config"
	"github.com/riskbook-dev/riskbook/internal/importer"
	"github.com/riskbook-dev/riskbook/internal/store"
)

func newImportCommand() *cobra.Command {
	var configPath string
	var accountID string
	var platform string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a platform trade export into an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, configPath, args[0], accountID, platform, dryRun)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.FileName, "path to riskbook.yaml")
	cmd.Flags().StringVar(&accountID, "account", "", "target account id (required unless --dry-run)")
	cmd.Flags().StringVar(&platform, "platform", "", "source platform (auto-detected when omitted)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and print the preview without saving")

	return cmd
}

func runImport(cmd *cobra.Command, configPath, file, accountID, platform string, dryRun bool) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("opening %s: %w", file, err)
	}
	defer f.Close()

	if dryRun {
		svc := importer.NewService(nil, audit.NewRecorder(nil, nil), nil)
		p, err := svc.Preview(f, platform, nil)
		if err != nil {
			return err
		}
		printPreview(cmd, p)
		return nil
	}

	if accountID == "" {
		return fmt.Errorf("--account is required")
	}

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

	account, err := st.Account(ctx, accountID)
	if err != nil {
		return err
	}

	svc := importer.NewService(st, audit.NewRecorder(st, nil), nil)
	batch, err := svc.Commit(ctx, account.UserID, account.ID, platform, filepath.Base(file), f, nil)
	if err != nil {
		return err
	}

	cmd.Printf("Imported %d trades into %s (%d duplicates, %d skipped)\n",
		batch.RowsImported, account.Number, batch.RowsDuplicate, batch.RowsSkipped)
	return nil
}

func printPreview(cmd *cobra.Command, p importer.Preview) {
	cmd.Printf("Platform: %s\n", p.Platform)
	cmd.Printf("Rows: %d parsed, %d skipped\n\n", len(p.Trades), len(p.RowErrors))

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLOSE TIME\tINSTRUMENT\tSIDE\tPNL\tCOMMISSION\tSWAP")
	for _, t := range p.Trades {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.CloseTime.Format("2006-01-02 15:04"), t.Instrument, t.Side,
			t.PnL.StringFixed(2), t.Commission.StringFixed(2), t.Swap.StringFixed(2))
	}
	w.Flush()

	if len(p.RowErrors) > 0 {
		cmd.Println()
		for _, re := range p.RowErrors {
			cmd.Printf("row %d: %s\n", re.Row, re.Msg)
		}
	}
}
