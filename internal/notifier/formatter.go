package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"BreadthSentinel/internal/model"
)

// maxAlertLines caps how many alerts a single message lists.
const maxAlertLines = 15

var signalIcon = map[model.ActionSignal]string{
	model.SignalStrongBuy:    "🟢",
	model.SignalBuy:          "🟢",
	model.SignalEarlyBuy:     "🟡",
	model.SignalAccumulating: "🟡",
	model.SignalHold:         "⚪",
	model.SignalWait:         "⚪",
	model.SignalWarning:      "🟠",
	model.SignalSell:         "🔴",
	model.SignalDanger:       "🔴",
}

// FormatDailyReport renders one run as a Telegram HTML message. state may be
// nil when the market step did not run.
func FormatDailyReport(state *model.MarketState, ranks []model.SectorRank, alerts []model.AlertRecord, rep model.RunReport) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>BreadthSentinel</b> | %s\n\n", rep.Date.Format(model.DateLayout)))

	if rep.Fatal {
		b.WriteString("❌ <b>Run aborted</b>\n")
		b.WriteString(html.EscapeString(rep.FatalError))
		b.WriteString("\n")
		return b.String()
	}

	if state != nil {
		b.WriteString(FormatStatus(state))
		b.WriteString("\n")
	}

	if len(ranks) > 0 {
		b.WriteString("🔄 <b>Sector rotation</b>\n")
		for _, r := range ranks {
			b.WriteString(fmt.Sprintf("  %s: %s (RS %.3f, mom %+.2f)\n",
				html.EscapeString(r.SectorID), r.Quadrant, r.RSRatio, r.RSMomentum))
		}
		b.WriteString("\n")
	}

	if len(alerts) > 0 {
		b.WriteString(fmt.Sprintf("🔔 <b>Alerts</b> (%d)\n", len(alerts)))
		b.WriteString(formatAlertLines(alerts))
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("Symbols: %d processed, %d skipped", rep.SymbolsProcessed, rep.SymbolsSkipped))
	if n := len(rep.Skips); n > 0 {
		b.WriteString(fmt.Sprintf(" | %d skip entries", n))
	}
	b.WriteString("\n")
	return b.String()
}

// FormatStatus renders the market section of a report.
func FormatStatus(state *model.MarketState) string {
	var b strings.Builder
	bd := state.Breadth
	b.WriteString(fmt.Sprintf("%s <b>Signal: %s</b> | exposure %d%%\n", signalIcon[state.Signal], state.Signal, state.ExposurePct))
	b.WriteString(fmt.Sprintf("Regime: %s (EMA9 %.2f / EMA21 %.2f)\n", state.Regime, state.Index.EMAFast, state.Index.EMASlow))
	if stage := state.StageString(); stage != "" {
		b.WriteString(fmt.Sprintf("Bottom stage: %s\n", stage))
	}
	b.WriteString(fmt.Sprintf("Breadth: MA20 %.1f%% | MA50 %.1f%% | MA100 %.1f%%\n",
		bd.PctAboveMA20, bd.PctAboveMA50, bd.PctAboveMA100))
	b.WriteString(fmt.Sprintf("Advancing %d / declining %d | score %.1f\n",
		bd.AdvancingCount, bd.DecliningCount, state.WeightedScore))
	return b.String()
}

// FormatAlerts renders the latest-alert view, strongest first.
func FormatAlerts(alerts []model.AlertRecord) string {
	if len(alerts) == 0 {
		return "No alerts recorded yet."
	}
	return fmt.Sprintf("🔔 <b>Latest alerts</b> (%d)\n%s", len(alerts), formatAlertLines(alerts))
}

func formatAlertLines(alerts []model.AlertRecord) string {
	sorted := make([]model.AlertRecord, len(alerts))
	copy(sorted, alerts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Strength > sorted[j].Strength })

	var b strings.Builder
	for i, a := range sorted {
		if i == maxAlertLines {
			b.WriteString(fmt.Sprintf("  … and %d more\n", len(sorted)-maxAlertLines))
			break
		}
		b.WriteString(fmt.Sprintf("  %s %s %s %.2f%s\n",
			html.EscapeString(a.Symbol), a.Detector, a.Direction, a.Strength, alertDetail(a)))
	}
	return b.String()
}

func alertDetail(a model.AlertRecord) string {
	switch a.Detector {
	case model.DetectorMACross:
		if p, ok := a.Payload["period"]; ok {
			return fmt.Sprintf(" (MA%v)", p)
		}
	case model.DetectorPattern:
		if p, ok := a.Payload["pattern"]; ok {
			return fmt.Sprintf(" (%v)", p)
		}
	case model.DetectorComposite, model.DetectorVolumeSpike:
		if s, ok := a.Payload["signal"]; ok {
			return fmt.Sprintf(" (%v)", s)
		}
	case model.DetectorBreakout:
		if k, ok := a.Payload["kind"]; ok {
			return fmt.Sprintf(" (%v)", k)
		}
	}
	return ""
}
