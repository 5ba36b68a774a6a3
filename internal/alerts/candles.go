package alerts

import (
	"math"
	"sort"

	"BreadthSentinel/internal/model"
)

// Pattern is a candlestick formation completed by the most recent bar.
type Pattern struct {
	Name        string
	Direction   model.Direction
	Reliability float64
	Bars        int
	match       func(c []model.OHLCV) bool // exactly Bars candles, oldest first
}

// Library lists every known pattern, most reliable first.
var Library = []Pattern{
	{"bullish_engulfing", model.DirectionBullish, 1.0, 2, bullishEngulfing},
	{"bearish_engulfing", model.DirectionBearish, 1.0, 2, bearishEngulfing},
	{"three_white_soldiers", model.DirectionBullish, 0.9, 3, threeWhiteSoldiers},
	{"three_black_crows", model.DirectionBearish, 0.9, 3, threeBlackCrows},
	{"hammer", model.DirectionBullish, 0.8, 1, hammer},
	{"shooting_star", model.DirectionBearish, 0.8, 1, shootingStar},
	{"piercing_line", model.DirectionBullish, 0.8, 2, piercingLine},
	{"dark_cloud_cover", model.DirectionBearish, 0.8, 2, darkCloudCover},
	{"bullish_marubozu", model.DirectionBullish, 0.75, 1, bullishMarubozu},
	{"bearish_marubozu", model.DirectionBearish, 0.75, 1, bearishMarubozu},
	{"morning_star", model.DirectionBullish, 0.7, 3, morningStar},
	{"evening_star", model.DirectionBearish, 0.7, 3, eveningStar},
	{"bullish_harami", model.DirectionBullish, 0.6, 2, bullishHarami},
	{"bearish_harami", model.DirectionBearish, 0.6, 2, bearishHarami},
	{"dragonfly_doji", model.DirectionBullish, 0.55, 1, dragonflyDoji},
	{"gravestone_doji", model.DirectionBearish, 0.55, 1, gravestoneDoji},
	{"doji", model.DirectionNeutral, 0.5, 1, doji},
}

// MostReliable returns the n most reliable patterns. Ties keep library order.
func MostReliable(n int) []Pattern {
	out := make([]Pattern, len(Library))
	copy(out, Library)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Reliability > out[j].Reliability })
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// MatchPatterns returns the patterns whose last candle is the last bar, in the
// order given.
func MatchPatterns(bars []model.OHLCV, patterns []Pattern) []Pattern {
	var out []Pattern
	for _, p := range patterns {
		if len(bars) < p.Bars {
			continue
		}
		if p.match(bars[len(bars)-p.Bars:]) {
			out = append(out, p)
		}
	}
	return out
}

func body(c model.OHLCV) float64 { return math.Abs(c.Close - c.Open) }
func span(c model.OHLCV) float64 { return c.High - c.Low }
func upper(c model.OHLCV) float64 { return c.High - math.Max(c.Open, c.Close) }
func lower(c model.OHLCV) float64 { return math.Min(c.Open, c.Close) - c.Low }
func midpoint(c model.OHLCV) float64 { return (c.Open + c.Close) / 2 }
func isBull(c model.OHLCV) bool { return c.Close > c.Open }
func isBear(c model.OHLCV) bool { return c.Close < c.Open }
func isLong(c model.OHLCV) bool { return span(c) > 0 && body(c) >= 0.6*span(c) }
func isSmall(c model.OHLCV) bool { return span(c) > 0 && body(c) <= 0.3*span(c) }
func isDojiShape(c model.OHLCV) bool { return span(c) > 0 && body(c) <= 0.1*span(c) }
func isMarubozu(c model.OHLCV) bool { return span(c) > 0 && body(c) >= 0.95*span(c) }
func bodyTop(c model.OHLCV) float64 { return math.Max(c.Open, c.Close) }
func bodyBottom(c model.OHLCV) float64 { return math.Min(c.Open, c.Close) }

func bullishEngulfing(c []model.OHLCV) bool {
	prev, cur := c[0], c[1]
	return isBear(prev) && isBull(cur) && cur.Open <= prev.Close && cur.Close >= prev.Open && body(cur) > body(prev)
}

func bearishEngulfing(c []model.OHLCV) bool {
	prev, cur := c[0], c[1]
	return isBull(prev) && isBear(cur) && cur.Open >= prev.Close && cur.Close <= prev.Open && body(cur) > body(prev)
}

func threeWhiteSoldiers(c []model.OHLCV) bool {
	a, b, d := c[0], c[1], c[2]
	return isBull(a) && isBull(b) && isBull(d) &&
		isLong(a) && isLong(b) && isLong(d) &&
		b.Close > a.Close && d.Close > b.Close &&
		b.Open > a.Open && b.Open <= a.Close &&
		d.Open > b.Open && d.Open <= b.Close
}

func threeBlackCrows(c []model.OHLCV) bool {
	a, b, d := c[0], c[1], c[2]
	return isBear(a) && isBear(b) && isBear(d) &&
		isLong(a) && isLong(b) && isLong(d) &&
		b.Close < a.Close && d.Close < b.Close &&
		b.Open < a.Open && b.Open >= a.Close &&
		d.Open < b.Open && d.Open >= b.Close
}

func hammer(c []model.OHLCV) bool {
	k := c[0]
	return body(k) > 0 && isSmall(k) && lower(k) >= 2*body(k) && upper(k) <= 0.1*span(k)
}

func shootingStar(c []model.OHLCV) bool {
	k := c[0]
	return body(k) > 0 && isSmall(k) && upper(k) >= 2*body(k) && lower(k) <= 0.1*span(k)
}

func piercingLine(c []model.OHLCV) bool {
	prev, cur := c[0], c[1]
	return isBear(prev) && isLong(prev) && isBull(cur) &&
		cur.Open < prev.Close && cur.Close > midpoint(prev) && cur.Close < prev.Open
}

func darkCloudCover(c []model.OHLCV) bool {
	prev, cur := c[0], c[1]
	return isBull(prev) && isLong(prev) && isBear(cur) &&
		cur.Open > prev.Close && cur.Close < midpoint(prev) && cur.Close > prev.Open
}

func bullishMarubozu(c []model.OHLCV) bool { return isBull(c[0]) && isMarubozu(c[0]) }

func bearishMarubozu(c []model.OHLCV) bool { return isBear(c[0]) && isMarubozu(c[0]) }

func morningStar(c []model.OHLCV) bool {
	a, star, d := c[0], c[1], c[2]
	return isBear(a) && isLong(a) && isSmall(star) && bodyTop(star) < a.Close &&
		isBull(d) && d.Close > midpoint(a)
}

func eveningStar(c []model.OHLCV) bool {
	a, star, d := c[0], c[1], c[2]
	return isBull(a) && isLong(a) && isSmall(star) && bodyBottom(star) > a.Close &&
		isBear(d) && d.Close < midpoint(a)
}

func bullishHarami(c []model.OHLCV) bool {
	prev, cur := c[0], c[1]
	return isBear(prev) && isLong(prev) && isBull(cur) &&
		bodyTop(cur) < prev.Open && bodyBottom(cur) > prev.Close
}

func bearishHarami(c []model.OHLCV) bool {
	prev, cur := c[0], c[1]
	return isBull(prev) && isLong(prev) && isBear(cur) &&
		bodyTop(cur) < prev.Close && bodyBottom(cur) > prev.Open
}

func doji(c []model.OHLCV) bool { return isDojiShape(c[0]) }

func dragonflyDoji(c []model.OHLCV) bool {
	k := c[0]
	return isDojiShape(k) && upper(k) <= 0.1*span(k) && lower(k) >= 0.6*span(k)
}

func gravestoneDoji(c []model.OHLCV) bool {
	k := c[0]
	return isDojiShape(k) && lower(k) <= 0.1*span(k) && upper(k) >= 0.6*span(k)
}
