package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/riskbook-dev/riskbook/internal/importer"
	"github.com/riskbook-dev/riskbook/internal/ledger"
	"github.com/riskbook-dev/riskbook/internal/model"
	"github.com/riskbook-dev/riskbook/internal/risk"
)

func newAnalyzeCommand() *cobra.Command {
	var balance string
	var dailyPct float64
	var maxPct float64
	var mode string
	var platform string

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Check a trade export against prop-firm drawdown rules",
		Long: `Analyze evaluates a platform export offline, without a database:
it replays the trades day by day and reports whether the daily and maximum
drawdown limits would have been breached. Exits non-zero on a violation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], balance, dailyPct, maxPct, mode, platform)
		},
	}

	cmd.Flags().StringVar(&balance, "balance", "", "starting balance (required)")
	_ = cmd.MarkFlagRequired("balance")
	cmd.Flags().Float64Var(&dailyPct, "daily-pct", 4, "daily drawdown limit, percent of starting balance")
	cmd.Flags().Float64Var(&maxPct, "max-pct", 8, "maximum drawdown limit, percent of starting balance")
	cmd.Flags().StringVar(&mode, "mode", "static", "drawdown mode (static or trailing)")
	cmd.Flags().StringVar(&platform, "platform", "", "source platform (auto-detected when omitted)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, file, balance string, dailyPct, maxPct float64, mode, platform string) error {
	start, err := decimal.NewFromString(balance)
	if err != nil || !start.IsPositive() {
		return fmt.Errorf("--balance must be a positive decimal")
	}
	ddMode, ok := model.ParseDrawdownMode(mode)
	if !ok {
		return fmt.Errorf("--mode must be 'static' or 'trailing'")
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("opening %s: %w", file, err)
	}
	defer f.Close()

	svc := importer.NewService(nil, nil, nil)
	p, err := svc.Preview(f, platform, nil)
	if err != nil {
		return err
	}
	if len(p.Trades) == 0 {
		return fmt.Errorf("no parseable trades in %s", file)
	}

	phase := model.Phase{
		Type:         model.PhaseOne,
		DailyLimit:   model.Limit{Kind: model.LimitPercent, Value: decimal.NewFromFloat(dailyPct)},
		MaxLimit:     model.Limit{Kind: model.LimitPercent, Value: decimal.NewFromFloat(maxPct)},
		DrawdownMode: ddMode,
	}
	h := ledger.Build(start, p.Trades, nil)

	dailyLimit := risk.ResolveLimit(start, phase.DailyLimit)
	maxLimit := risk.ResolveLimit(start, phase.MaxLimit)
	cmd.Printf("Platform: %s, %d trades over %d days\n", p.Platform, len(p.Trades), len(h.Days))
	cmd.Printf("Rules: daily loss limit %s, max drawdown %s (%s)\n\n",
		dailyLimit.StringFixed(2), maxLimit.StringFixed(2), ddMode)

	violations := h.Scan(phase)
	byDay := make(map[string][]risk.Violation)
	for _, v := range violations {
		byDay[v.Day] = append(byDay[v.Day], v)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTRADES\tNET PNL\tEND BALANCE\tDAY LOSS\tVERDICT")
	for _, d := range h.Days {
		verdict := "ok"
		if vs := byDay[d.Date]; len(vs) > 0 {
			verdict = vs[0].Code
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			d.Date, d.Trades, d.NetPnL.StringFixed(2), d.EndBalance.StringFixed(2),
			d.NetLoss().StringFixed(2), verdict)
	}
	w.Flush()

	cmd.Printf("\nFinal balance: %s (%s)\n", h.CurrentBalance.StringFixed(2),
		h.CurrentBalance.Sub(start).StringFixed(2))

	if len(violations) > 0 {
		for _, v := range violations {
			cmd.Printf("VIOLATION %s on %s: %s\n", v.Code, v.Day, v.Msg)
		}
		return fmt.Errorf("%d rule violation(s)", len(violations))
	}
	cmd.Println("All rules respected.")
	return nil
}
