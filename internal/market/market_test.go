package market

import (
	"math"
	"testing"
	"time"
)

// A Wednesday, to keep the day-of-week factor out of most tests.
var wednesday = time.Date(2025, time.June, 4, 12, 0, 0, 0, time.UTC)

func allEnabled() Config {
	return Config{BaseMultiplier: 1, DemandEnabled: true, CapacityEnabled: true, DayOfWeekEnabled: true}
}

// historyWithAverages builds daily counts yielding the given trailing and
// baseline daily averages.
func historyWithAverages(now time.Time, trailingPerDay, baselinePerDay int) []DayCount {
	history := make([]DayCount, 0, 37)
	// An hour past the window edge keeps each day firmly inside its bucket.
	for i := 1; i <= 7; i++ {
		history = append(history, DayCount{Day: now.AddDate(0, 0, -i).Add(time.Hour), Orders: trailingPerDay})
	}
	for i := 8; i <= 37; i++ {
		history = append(history, DayCount{Day: now.AddDate(0, 0, -i).Add(time.Hour), Orders: baselinePerDay})
	}
	return history
}

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func TestCompute_DemandLevels(t *testing.T) {
	cases := []struct {
		name           string
		trailing       int
		baseline       int
		wantLevel      DemandLevel
		wantMultiplier float64
	}{
		{"high", 14, 10, DemandHigh, 1.15},
		{"above_average", 12, 10, DemandAboveAverage, 1.08},
		{"normal", 10, 10, DemandNormal, 1.0},
		{"low", 6, 10, DemandLow, 0.92},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cond := Compute(historyWithAverages(wednesday, c.trailing, c.baseline), FleetLoad{}, wednesday, allEnabled())
			if cond.DemandLevel != c.wantLevel {
				t.Fatalf("demand level = %q, want %q", cond.DemandLevel, c.wantLevel)
			}
			nearlyEqual(t, "demand multiplier", cond.DemandMultiplier, c.wantMultiplier)
		})
	}
}

func TestCompute_DemandNeutralWithoutBaseline(t *testing.T) {
	cond := Compute(nil, FleetLoad{}, wednesday, allEnabled())
	if cond.DemandLevel != DemandNormal || cond.DemandMultiplier != 1.0 {
		t.Fatalf("empty history should be neutral, got %q ×%v", cond.DemandLevel, cond.DemandMultiplier)
	}
}

func TestCompute_CapacityLevels(t *testing.T) {
	cases := []struct {
		name           string
		printing       int
		total          int
		wantLevel      CapacityLevel
		wantMultiplier float64
	}{
		{"constrained", 9, 10, CapacityConstrained, 1.2},
		{"busy", 7, 10, CapacityBusy, 1.1},
		{"available", 5, 10, CapacityAvailable, 1.0},
		{"low", 2, 10, CapacityLow, 0.95},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cond := Compute(nil, FleetLoad{Total: c.total, Printing: c.printing}, wednesday, allEnabled())
			if cond.CapacityLevel != c.wantLevel {
				t.Fatalf("capacity level = %q, want %q", cond.CapacityLevel, c.wantLevel)
			}
			nearlyEqual(t, "capacity multiplier", cond.CapacityMultiplier, c.wantMultiplier)
		})
	}
}

func TestCompute_EmptyFleetIsNeutral(t *testing.T) {
	cond := Compute(nil, FleetLoad{}, wednesday, allEnabled())
	if cond.CapacityLevel != CapacityAvailable || cond.CapacityMultiplier != 1.0 {
		t.Fatalf("empty fleet should be neutral, got %q ×%v", cond.CapacityLevel, cond.CapacityMultiplier)
	}
}

func TestCompute_DayOfWeek(t *testing.T) {
	monday := time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)
	saturday := time.Date(2025, time.June, 7, 12, 0, 0, 0, time.UTC)
	sunday := time.Date(2025, time.June, 8, 12, 0, 0, 0, time.UTC)

	nearlyEqual(t, "monday", Compute(nil, FleetLoad{}, monday, allEnabled()).DayOfWeekMultiplier, 1.05)
	nearlyEqual(t, "saturday", Compute(nil, FleetLoad{}, saturday, allEnabled()).DayOfWeekMultiplier, 0.95)
	nearlyEqual(t, "sunday", Compute(nil, FleetLoad{}, sunday, allEnabled()).DayOfWeekMultiplier, 0.95)
	nearlyEqual(t, "wednesday", Compute(nil, FleetLoad{}, wednesday, allEnabled()).DayOfWeekMultiplier, 1.0)
}

func TestCompute_CombinedMultiplier(t *testing.T) {
	monday := time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)
	history := historyWithAverages(monday, 14, 10)
	fleet := FleetLoad{Total: 10, Printing: 9}

	cond := Compute(history, fleet, monday, allEnabled())
	nearlyEqual(t, "combined", cond.Combined, 1.15*1.2*1.05)
}

func TestCompute_DisabledLayersAreNeutral(t *testing.T) {
	monday := time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)
	history := historyWithAverages(monday, 14, 10)
	fleet := FleetLoad{Total: 10, Printing: 9}

	cond := Compute(history, fleet, monday, Config{BaseMultiplier: 1.1})
	nearlyEqual(t, "combined", cond.Combined, 1.1)
	if cond.DemandLevel != DemandNormal || cond.CapacityLevel != CapacityAvailable {
		t.Fatalf("disabled layers should report neutral levels, got %q/%q", cond.DemandLevel, cond.CapacityLevel)
	}

	// Classification stats are still reported for the dashboard.
	nearlyEqual(t, "trailing avg", cond.TrailingDailyAvg, 14)
	nearlyEqual(t, "printing share", cond.PrintingShare, 0.9)
}

func TestCompute_ZeroBaseMultiplierDefaultsToOne(t *testing.T) {
	cond := Compute(nil, FleetLoad{}, wednesday, Config{})
	nearlyEqual(t, "combined", cond.Combined, 1.0)
}

func TestCompute_IgnoresFutureOrders(t *testing.T) {
	history := historyWithAverages(wednesday, 10, 10)
	history = append(history, DayCount{Day: wednesday.AddDate(0, 0, 2), Orders: 1000})

	cond := Compute(history, FleetLoad{}, wednesday, allEnabled())
	nearlyEqual(t, "trailing avg", cond.TrailingDailyAvg, 10)
}
