// Package market derives a pricing multiplier from recent demand and
// current printer utilization. Conditions are a pure function of the
// inputs and the clock, so they are recomputed on every request and
// never cached.
package market

import "time"

// DemandLevel classifies recent order volume against the trailing baseline.
type DemandLevel string

const (
	DemandHigh         DemandLevel = "high"
	DemandAboveAverage DemandLevel = "above_average"
	DemandNormal       DemandLevel = "normal"
	DemandLow          DemandLevel = "low"
)

// CapacityLevel classifies how busy the printer fleet currently is.
type CapacityLevel string

const (
	CapacityConstrained CapacityLevel = "constrained"
	CapacityBusy        CapacityLevel = "busy"
	CapacityAvailable   CapacityLevel = "available"
	CapacityLow         CapacityLevel = "low"
)

// Demand thresholds on the ratio of the trailing-7-day daily average to
// the prior-30-day daily average.
const (
	demandHighRatio  = 1.3
	demandAboveRatio = 1.1
	demandLowRatio   = 0.7

	demandHighMultiplier  = 1.15
	demandAboveMultiplier = 1.08
	demandLowMultiplier   = 0.92
)

// Capacity thresholds on the fraction of printers currently printing.
const (
	capacityConstrainedShare = 0.8
	capacityBusyShare        = 0.6
	capacityLowShare         = 0.3

	capacityConstrainedMultiplier = 1.2
	capacityBusyMultiplier        = 1.1
	capacityLowMultiplier         = 0.95
)

// Day-of-week adjustments.
const (
	mondayMultiplier  = 1.05
	weekendMultiplier = 0.95
)

const (
	trailingWindowDays = 7
	baselineWindowDays = 30
)

// Config toggles each adjustment layer. BaseMultiplier is applied even
// when every layer is disabled.
type Config struct {
	BaseMultiplier   float64 `json:"base_multiplier"`
	DemandEnabled    bool    `json:"demand_enabled"`
	CapacityEnabled  bool    `json:"capacity_enabled"`
	DayOfWeekEnabled bool    `json:"day_of_week_enabled"`
}

// DayCount is the number of orders created on a single day.
type DayCount struct {
	Day    time.Time
	Orders int
}

// FleetLoad summarizes the printer fleet for capacity classification.
type FleetLoad struct {
	Total    int
	Printing int
}

// Conditions is the computed market state and the multiplier it implies.
type Conditions struct {
	DemandLevel         DemandLevel   `json:"demand_level"`
	DemandMultiplier    float64       `json:"demand_multiplier"`
	TrailingDailyAvg    float64       `json:"trailing_daily_avg"`
	BaselineDailyAvg    float64       `json:"baseline_daily_avg"`
	CapacityLevel       CapacityLevel `json:"capacity_level"`
	CapacityMultiplier  float64       `json:"capacity_multiplier"`
	PrintingShare       float64       `json:"printing_share"`
	DayOfWeekMultiplier float64       `json:"day_of_week_multiplier"`
	Combined            float64       `json:"combined_multiplier"`
}

// Compute classifies demand and capacity and combines the enabled layers
// into a single multiplier.
func Compute(history []DayCount, fleet FleetLoad, now time.Time, cfg Config) Conditions {
	base := cfg.BaseMultiplier
	if base <= 0 {
		base = 1.0
	}

	cond := Conditions{
		DemandLevel:         DemandNormal,
		DemandMultiplier:    1.0,
		CapacityLevel:       CapacityAvailable,
		CapacityMultiplier:  1.0,
		DayOfWeekMultiplier: 1.0,
	}

	cond.TrailingDailyAvg, cond.BaselineDailyAvg = windowAverages(history, now)
	if cfg.DemandEnabled && cond.BaselineDailyAvg > 0 {
		ratio := cond.TrailingDailyAvg / cond.BaselineDailyAvg
		switch {
		case ratio > demandHighRatio:
			cond.DemandLevel = DemandHigh
			cond.DemandMultiplier = demandHighMultiplier
		case ratio > demandAboveRatio:
			cond.DemandLevel = DemandAboveAverage
			cond.DemandMultiplier = demandAboveMultiplier
		case ratio < demandLowRatio:
			cond.DemandLevel = DemandLow
			cond.DemandMultiplier = demandLowMultiplier
		}
	}

	if fleet.Total > 0 {
		cond.PrintingShare = float64(fleet.Printing) / float64(fleet.Total)
	}
	if cfg.CapacityEnabled && fleet.Total > 0 {
		switch {
		case cond.PrintingShare > capacityConstrainedShare:
			cond.CapacityLevel = CapacityConstrained
			cond.CapacityMultiplier = capacityConstrainedMultiplier
		case cond.PrintingShare > capacityBusyShare:
			cond.CapacityLevel = CapacityBusy
			cond.CapacityMultiplier = capacityBusyMultiplier
		case cond.PrintingShare < capacityLowShare:
			cond.CapacityLevel = CapacityLow
			cond.CapacityMultiplier = capacityLowMultiplier
		}
	}

	if cfg.DayOfWeekEnabled {
		switch now.Weekday() {
		case time.Monday:
			cond.DayOfWeekMultiplier = mondayMultiplier
		case time.Saturday, time.Sunday:
			cond.DayOfWeekMultiplier = weekendMultiplier
		}
	}

	cond.Combined = base * cond.DemandMultiplier * cond.CapacityMultiplier * cond.DayOfWeekMultiplier
	return cond
}

// windowAverages splits daily counts into the trailing 7-day window and
// the 30 days before it, returning the average daily order count of each.
func windowAverages(history []DayCount, now time.Time) (trailing, baseline float64) {
	trailingStart := now.AddDate(0, 0, -trailingWindowDays)
	baselineStart := trailingStart.AddDate(0, 0, -baselineWindowDays)

	var trailingSum, baselineSum int
	for _, dc := range history {
		switch {
		case dc.Day.After(now):
			// Ignore anything from the future; clock skew between
			// the DB and the host should not inflate demand.
		case dc.Day.After(trailingStart):
			trailingSum += dc.Orders
		case dc.Day.After(baselineStart):
			baselineSum += dc.Orders
		}
	}

	return float64(trailingSum) / trailingWindowDays, float64(baselineSum) / baselineWindowDays
}
