package model

import "time"

// Regime is the coarse index trend classification.
type Regime string

const (
	RegimeBullish Regime = "BULLISH"
	RegimeBearish Regime = "BEARISH"
	RegimeNeutral Regime = "NEUTRAL"
)

// BottomStage describes how a downtrend is progressing toward a reversal.
type BottomStage string

const (
	StageCapitulation  BottomStage = "CAPITULATION"
	StageAccumulating  BottomStage = "ACCUMULATING"
	StageEarlyReversal BottomStage = "EARLY_REVERSAL"
)

// ActionSignal is the daily market-level action.
type ActionSignal string

const (
	SignalStrongBuy    ActionSignal = "STRONG_BUY"
	SignalBuy          ActionSignal = "BUY"
	SignalHold         ActionSignal = "HOLD"
	SignalWarning      ActionSignal = "WARNING"
	SignalSell         ActionSignal = "SELL"
	SignalDanger       ActionSignal = "DANGER"
	SignalEarlyBuy     ActionSignal = "EARLY_BUY"
	SignalAccumulating ActionSignal = "ACCUMULATING"
	SignalWait         ActionSignal = "WAIT"
)

// AllActionSignals lists every signal the matrix may emit.
var AllActionSignals = []ActionSignal{
	SignalStrongBuy, SignalBuy, SignalHold, SignalWarning,
	SignalSell, SignalDanger, SignalEarlyBuy, SignalAccumulating, SignalWait,
}

// BreadthSnapshot is the cross-sectional breadth of the universe on one date.
type BreadthSnapshot struct {
	Date           time.Time `json:"date"`
	PctAboveMA20   float64   `json:"pct_above_ma20"`
	PctAboveMA50   float64   `json:"pct_above_ma50"`
	PctAboveMA100  float64   `json:"pct_above_ma100"`
	AdvancingCount int       `json:"advancing_count"`
	DecliningCount int       `json:"declining_count"`
	UniverseSize   int       `json:"universe_size"`
	Eligible20     int       `json:"eligible_ma20"`
	Eligible50     int       `json:"eligible_ma50"`
	Eligible100    int       `json:"eligible_ma100"`
}

// ConfirmedUptrend reports whether medium and long-term breadth are both at or above 50%.
func (b BreadthSnapshot) ConfirmedUptrend() bool {
	return b.PctAboveMA50 >= 50 && b.PctAboveMA100 >= 50
}

// IndexState holds the index close and its fast/slow EMAs.
type IndexState struct {
	Date    time.Time `json:"date"`
	Close   float64   `json:"close"`
	EMAFast float64   `json:"ema_fast"`
	EMASlow float64   `json:"ema_slow"`
}

// HigherLowWindow compares the lows of two adjacent, disjoint trailing windows.
type HigherLowWindow struct {
	RecentLow       float64 `json:"recent_low"`
	PreviousLow     float64 `json:"previous_low"`
	CurrentValue    float64 `json:"current_value"`
	IsHigherLow     bool    `json:"is_higher_low"`
	IsRisingFromLow bool    `json:"is_rising_from_low"`
}

// MarketState is the canonical daily output.
type MarketState struct {
	Date          time.Time       `json:"date"`
	Index         IndexState      `json:"index_state"`
	Breadth       BreadthSnapshot `json:"breadth_snapshot"`
	Regime        Regime          `json:"regime"`
	BottomStage   *BottomStage    `json:"bottom_stage"`
	FastWindow    HigherLowWindow `json:"fast_window"`
	SlowWindow    HigherLowWindow `json:"slow_window"`
	Signal        ActionSignal    `json:"action_signal"`
	ExposurePct   int             `json:"exposure_pct"`
	WeightedScore float64         `json:"weighted_score"`
	// Divergence stays nil until a price/breadth divergence rule is defined.
	Divergence *float64 `json:"divergence"`
}

// StageString renders the bottom stage, or "" when there is none.
func (m *MarketState) StageString() string {
	if m.BottomStage == nil {
		return ""
	}
	return string(*m.BottomStage)
}
