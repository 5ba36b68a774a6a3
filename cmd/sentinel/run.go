package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"BreadthSentinel/internal/model"
	"BreadthSentinel/internal/pipeline"
)

var (
	runDate string
	runSkip []string
	runOnly string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Classify one trading date and print the outputs as JSON",
	Long: `Load the universe, classify the target date and persist, publish and report the results.

The date defaults to the most recent index bar. Steps are market, sectors and alerts.
The command fails when a required dataset for the date is missing; symbols that
are merely short of history are skipped and reported without changing the exit code.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "target date (YYYY-MM-DD), default latest available")
	runCmd.Flags().StringSliceVar(&runSkip, "skip", nil, "steps to skip (market,sectors,alerts)")
	runCmd.Flags().StringVar(&runOnly, "only", "", "run a single step")
	runCmd.MarkFlagsMutuallyExclusive("skip", "only")
}

func runRun(cmd *cobra.Command, _ []string) error {
	steps, err := pipeline.SelectSteps(runSkip, runOnly)
	if err != nil {
		return err
	}
	var date time.Time
	if runDate != "" {
		if date, err = time.Parse(model.DateLayout, runDate); err != nil {
			return fmt.Errorf("invalid --date %q: %w", runDate, err)
		}
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, runErr := a.runner.Run(cmd.Context(), date, steps)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(struct {
		State   *model.MarketState  `json:"market_state,omitempty"`
		Sectors []model.SectorRank  `json:"sector_ranks,omitempty"`
		Alerts  []model.AlertRecord `json:"alerts,omitempty"`
		Report  model.RunReport     `json:"report"`
	}{res.State, res.Sectors, res.Alerts, res.Report}); err != nil {
		return err
	}
	return runErr
}
