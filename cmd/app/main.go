package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"MoexPull/internal/di"
	"MoexPull/internal/domain/models"
	"MoexPull/pkg/config"

	"github.com/spf13/cobra"
)

var (
	configPath   string
	screenAudit  bool
	screenFormat string
)

var rootCmd = &cobra.Command{
	Use:           "moexpull",
	Short:         "MOEX bond screener and portfolio tracker",
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Run the bond screener once and print the result",
	Long: `Fetch every security of the MOEX ISS bonds market, drop ineligible bonds
and print yield to maturity for the rest.

Example usage:
  moexpull screen                  # eligible bonds as JSON
  moexpull screen --format=table   # aligned table
  moexpull screen --audit          # skipped securities with reasons`,
	RunE: runScreen,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	screenCmd.Flags().BoolVar(&screenAudit, "audit", false, "print skipped securities instead of eligible ones")
	screenCmd.Flags().StringVar(&screenFormat, "format", "json", "output format: json or table")

	rootCmd.AddCommand(serveCmd, screenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	return app.Run(cmd.Context())
}

func runScreen(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	screener, cleanup, err := di.InitializeScreener(cfg)
	if err != nil {
		return fmt.Errorf("screener initialization failed: %w", err)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	res, err := screener.Screen(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if screenFormat != "table" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if screenAudit {
			return enc.Encode(res.Skipped)
		}
		return enc.Encode(res.Bonds)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if screenAudit {
		printAudit(w, res)
	} else {
		printBonds(w, res.Bonds)
	}
	return w.Flush()
}

func printBonds(w *tabwriter.Writer, bonds []models.BondValuation) {
	fmt.Fprintln(w, "ISIN\tNAME\tPRICE\tNKD\tCOUPON\tMATURITY\tDAYS\tYTM %")
	for _, b := range bonds {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%.2f\t%s\t%d\t%.2f\n",
			b.ISIN, b.Name, b.CurrentPrice, b.AccruedInterest, b.CouponYield, b.MaturityDate, b.DaysToMaturity, b.YTM)
	}
}

func printAudit(w *tabwriter.Writer, res *models.ScreenResult) {
	counts := res.SkipCounts()
	fmt.Fprintf(w, "total %d, eligible %d, skipped %d\n\n", res.Total, len(res.Bonds), len(res.Skipped))
	fmt.Fprintln(w, "REASON\tCOUNT")
	for _, r := range models.SkipReasons {
		if n := counts[r]; n > 0 {
			fmt.Fprintf(w, "%s\t%d\n", r, n)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "SECID\tREASON")
	for _, s := range res.Skipped {
		fmt.Fprintf(w, "%s\t%s\n", s.SecID, s.Reason)
	}
}
