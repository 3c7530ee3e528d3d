package model

import (
	"fmt"
	"time"
)

// Granularity identifies a candle timeframe: minute bars of a supported
// width, daily bars, or weekly bars.
type Granularity struct {
	Unit   string // "minutes", "days", "weeks"
	Minute int    // minute width, only meaningful when Unit == "minutes"
}

// Minute widths accepted by the upstream minute-candle endpoint.
var validMinutes = map[int]bool{1: true, 3: true, 5: true, 15: true, 30: true, 60: true}

// NewGranularity validates unit/minute and returns a Granularity.
// Rejections carry a descriptive error; nothing is silently corrected.
func NewGranularity(unit string, minute int) (Granularity, error) {
	switch unit {
	case "minutes":
		if minute == 0 {
			minute = 1
		}
		if !validMinutes[minute] {
			return Granularity{}, fmt.Errorf("unsupported minute width %d (valid: 1, 3, 5, 15, 30, 60)", minute)
		}
		return Granularity{Unit: "minutes", Minute: minute}, nil
	case "days":
		return Granularity{Unit: "days"}, nil
	case "weeks":
		return Granularity{Unit: "weeks"}, nil
	default:
		return Granularity{}, fmt.Errorf("unsupported candle unit %q (valid: minutes, days, weeks)", unit)
	}
}

// Path returns the upstream endpoint path segment for this granularity,
// e.g. "candles/minutes/5" or "candles/days".
func (g Granularity) Path() string {
	if g.Unit == "minutes" {
		return fmt.Sprintf("candles/minutes/%d", g.Minute)
	}
	return "candles/" + g.Unit
}

// RefreshInterval derives a sensible live-refresh period for a chart
// showing candles of this granularity.
func (g Granularity) RefreshInterval() time.Duration {
	switch g.Unit {
	case "minutes":
		if g.Minute <= 1 {
			return 5 * time.Second
		}
		return 15 * time.Second
	case "days":
		return 30 * time.Second
	default:
		return time.Minute
	}
}

func (g Granularity) String() string {
	if g.Unit == "minutes" {
		return fmt.Sprintf("minutes/%d", g.Minute)
	}
	return g.Unit
}
