package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"BreadthSentinel/internal/model"
)

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the latest market state and the latest alert per symbol and detector",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		rec, err := openRecorder(cfg, log)
		if err != nil {
			return err
		}
		defer rec.Close()

		state, err := rec.LatestMarketState(cmd.Context())
		if err != nil {
			return err
		}
		alerts, err := rec.LatestAlerts(cmd.Context())
		if err != nil {
			return err
		}
		if alerts == nil {
			alerts = []model.AlertRecord{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			State  *model.MarketState  `json:"market_state"`
			Alerts []model.AlertRecord `json:"alerts_latest"`
		}{state, alerts})
	},
}
