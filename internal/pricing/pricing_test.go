package pricing

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func defaultSettings() CostSettings {
	return CostSettings{
		ElectricityPerKwh: 0.15,
		PrinterWatts:      150,
		LaborPerHour:      15,
		SetupMinutes:      10,
		PackagingCost:     1.5,
		FailureRatePct:    5,
		TargetMarginPct:   40,
		MinimumPrice:      10,
	}
}

func plaMaterial() MaterialProfile {
	return MaterialProfile{Name: "PLA", PricePerKg: 25, Density: 1.24}
}

func baseJob() PrintJobParams {
	return PrintJobParams{
		WeightGrams: 50,
		PrintHours:  2,
		Quantity:    1,
		Complexity:  ComplexityMedium,
		Finishing:   FinishingNone,
	}
}

func TestEstimate_SingleUnitScenario(t *testing.T) {
	breakdown, err := Estimate(baseJob(), plaMaterial(), defaultSettings())
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}

	nearlyEqual(t, "material", breakdown.Unit.Material, 1.25)
	nearlyEqual(t, "electricity", breakdown.Unit.Electricity, 0.045)
	// 10 setup minutes amortized over one unit.
	nearlyEqual(t, "labor", breakdown.Unit.Labor, 2.5)
	nearlyEqual(t, "packaging", breakdown.Unit.Packaging, 1.5)

	subtotal := 1.25 + 0.045 + 2.5 + 1.5
	nearlyEqual(t, "totalRawCost", breakdown.TotalRawCost, subtotal*1.05)

	// Fixed costs dominate at quantity 1; the price floor binds.
	if breakdown.SuggestedUnitPrice != defaultSettings().MinimumPrice {
		t.Fatalf("expected floor price %v, got %v", defaultSettings().MinimumPrice, breakdown.SuggestedUnitPrice)
	}
	if breakdown.RealizedMarginPct <= 40 {
		t.Fatalf("floored price should realize more than target margin, got %v", breakdown.RealizedMarginPct)
	}
}

func TestEstimate_PriceFloorAlwaysHolds(t *testing.T) {
	settings := defaultSettings()
	for _, qty := range []int{1, 5, 10, 25, 60, 100, 500} {
		job := baseJob()
		job.Quantity = qty

		breakdown, err := Estimate(job, plaMaterial(), settings)
		if err != nil {
			t.Fatalf("Estimate(qty=%d) returned error: %v", qty, err)
		}
		if breakdown.SuggestedUnitPrice < settings.MinimumPrice {
			t.Fatalf("qty=%d: unit price %v below floor %v", qty, breakdown.SuggestedUnitPrice, settings.MinimumPrice)
		}
	}
}

func TestEstimate_QuantityDiscountStepAtTen(t *testing.T) {
	settings := defaultSettings()
	settings.MinimumPrice = 0 // keep the floor out of the comparison

	nine := baseJob()
	nine.Quantity = 9
	ten := baseJob()
	ten.Quantity = 10

	atNine, err := Estimate(nine, plaMaterial(), settings)
	if err != nil {
		t.Fatalf("Estimate(qty=9): %v", err)
	}
	atTen, err := Estimate(ten, plaMaterial(), settings)
	if err != nil {
		t.Fatalf("Estimate(qty=10): %v", err)
	}

	nearlyEqual(t, "discount at 9", atNine.QuantityDiscountPct, 0)
	nearlyEqual(t, "discount at 10", atTen.QuantityDiscountPct, 5)
	if atTen.SuggestedUnitPrice > atNine.SuggestedUnitPrice {
		t.Fatalf("unit price rose across the discount step: 9→%v, 10→%v", atNine.SuggestedUnitPrice, atTen.SuggestedUnitPrice)
	}
}

func TestQuantityDiscountPct_Steps(t *testing.T) {
	cases := []struct {
		qty  int
		want float64
	}{
		{1, 0}, {9, 0}, {10, 5}, {19, 5}, {20, 7}, {49, 7}, {50, 10}, {99, 10}, {100, 15}, {1000, 15},
	}
	for _, c := range cases {
		if got := QuantityDiscountPct(c.qty); got != c.want {
			t.Fatalf("QuantityDiscountPct(%d) = %v, want %v", c.qty, got, c.want)
		}
	}
}

func TestEstimate_RushMultiplierExactBeforeFloor(t *testing.T) {
	settings := defaultSettings()
	settings.MinimumPrice = 0

	normal := baseJob()
	rush := baseJob()
	rush.Rush = true

	plain, err := Estimate(normal, plaMaterial(), settings)
	if err != nil {
		t.Fatalf("Estimate(normal): %v", err)
	}
	expedited, err := Estimate(rush, plaMaterial(), settings)
	if err != nil {
		t.Fatalf("Estimate(rush): %v", err)
	}

	nearlyEqual(t, "rush total", expedited.SuggestedTotalPrice, plain.SuggestedTotalPrice*RushMultiplier)
}

func TestEstimate_RushNeverCheaper(t *testing.T) {
	for _, qty := range []int{1, 10, 100} {
		normal := baseJob()
		normal.Quantity = qty
		rush := normal
		rush.Rush = true

		plain, err := Estimate(normal, plaMaterial(), defaultSettings())
		if err != nil {
			t.Fatalf("Estimate(normal qty=%d): %v", qty, err)
		}
		expedited, err := Estimate(rush, plaMaterial(), defaultSettings())
		if err != nil {
			t.Fatalf("Estimate(rush qty=%d): %v", qty, err)
		}
		if expedited.SuggestedUnitPrice < plain.SuggestedUnitPrice {
			t.Fatalf("qty=%d: rush price %v below normal %v", qty, expedited.SuggestedUnitPrice, plain.SuggestedUnitPrice)
		}
	}
}

func TestEstimate_EconomiesOfScaleAtHundredUnits(t *testing.T) {
	settings := defaultSettings()
	settings.MinimumPrice = 0.5 // low floor so the discount is visible

	single := baseJob()
	bulk := baseJob()
	bulk.Quantity = 100

	one, err := Estimate(single, plaMaterial(), settings)
	if err != nil {
		t.Fatalf("Estimate(qty=1): %v", err)
	}
	hundred, err := Estimate(bulk, plaMaterial(), settings)
	if err != nil {
		t.Fatalf("Estimate(qty=100): %v", err)
	}

	nearlyEqual(t, "bulk discount", hundred.QuantityDiscountPct, 15)
	if hundred.SuggestedTotalPrice >= one.SuggestedUnitPrice*100 {
		t.Fatalf("no economies of scale: 100 units cost %v, 100×unit = %v", hundred.SuggestedTotalPrice, one.SuggestedUnitPrice*100)
	}
}

func TestEstimate_MarginTiersMonotonic(t *testing.T) {
	settings := defaultSettings()
	settings.MinimumPrice = 0

	breakdown, err := Estimate(baseJob(), plaMaterial(), settings)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	var at30, at40, at50 float64
	for _, tier := range breakdown.Tiers {
		switch tier.MarginPct {
		case 30:
			at30 = tier.UnitPrice
		case 40:
			at40 = tier.UnitPrice
		case 50:
			at50 = tier.UnitPrice
		}
	}
	if !(at50 >= at40 && at40 >= at30) {
		t.Fatalf("margin tiers not monotonic: 30%%=%v 40%%=%v 50%%=%v", at30, at40, at50)
	}
}

func TestEstimate_Deterministic(t *testing.T) {
	first, err := Estimate(baseJob(), plaMaterial(), defaultSettings())
	if err != nil {
		t.Fatalf("first Estimate: %v", err)
	}
	second, err := Estimate(baseJob(), plaMaterial(), defaultSettings())
	if err != nil {
		t.Fatalf("second Estimate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs produced different breakdowns:\n%+v\n%+v", first, second)
	}
}

func TestEstimate_ValidationErrors(t *testing.T) {
	material := plaMaterial()

	zeroQty := baseJob()
	zeroQty.Quantity = 0
	if _, err := Estimate(zeroQty, material, defaultSettings()); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("quantity=0: got %v, want ErrInvalidQuantity", err)
	}

	badMargin := defaultSettings()
	badMargin.TargetMarginPct = 100
	if _, err := Estimate(baseJob(), material, badMargin); !errors.Is(err, ErrInvalidMargin) {
		t.Fatalf("margin=100: got %v, want ErrInvalidMargin", err)
	}

	negativeMargin := defaultSettings()
	negativeMargin.TargetMarginPct = -5
	if _, err := Estimate(baseJob(), material, negativeMargin); !errors.Is(err, ErrInvalidMargin) {
		t.Fatalf("margin=-5: got %v, want ErrInvalidMargin", err)
	}

	negativeWeight := baseJob()
	negativeWeight.WeightGrams = -1
	if _, err := Estimate(negativeWeight, material, defaultSettings()); !errors.Is(err, ErrNegativeInput) {
		t.Fatalf("weight=-1: got %v, want ErrNegativeInput", err)
	}

	freebie := material
	freebie.PricePerKg = -25
	if _, err := Estimate(baseJob(), freebie, defaultSettings()); !errors.Is(err, ErrNegativeInput) {
		t.Fatalf("price_per_kg=-25: got %v, want ErrNegativeInput", err)
	}
}

func TestEstimate_FinishingAndComplexityScaleLabor(t *testing.T) {
	settings := defaultSettings()
	settings.SetupMinutes = 0

	job := baseJob()
	job.Finishing = FinishingPainting

	medium, err := Estimate(job, plaMaterial(), settings)
	if err != nil {
		t.Fatalf("Estimate(medium): %v", err)
	}
	// 30 finishing minutes at 15/h.
	nearlyEqual(t, "medium labor", medium.Unit.Labor, 7.5)

	job.Complexity = ComplexityComplex
	complexJob, err := Estimate(job, plaMaterial(), settings)
	if err != nil {
		t.Fatalf("Estimate(complex): %v", err)
	}
	nearlyEqual(t, "complex labor", complexJob.Unit.Labor, 7.5*1.3)

	job.Complexity = ComplexitySimple
	simpleJob, err := Estimate(job, plaMaterial(), settings)
	if err != nil {
		t.Fatalf("Estimate(simple): %v", err)
	}
	nearlyEqual(t, "simple labor", simpleJob.Unit.Labor, 7.5*0.8)
}

func TestRounded_RoundsMoneyOnly(t *testing.T) {
	breakdown := CostBreakdown{
		Unit:                UnitCosts{Material: 1.2345, Electricity: 0.0456},
		RawCostPerUnit:      5.55975,
		TotalRawCost:        5.55975,
		SuggestedUnitPrice:  9.26625,
		SuggestedTotalPrice: 9.26625,
		RealizedMarginPct:   39.999,
		Tiers:               []MarginTier{{MarginPct: 30, UnitPrice: 7.94249}},
	}

	rounded := breakdown.Rounded()
	nearlyEqual(t, "material", rounded.Unit.Material, 1.23)
	nearlyEqual(t, "electricity", rounded.Unit.Electricity, 0.05)
	nearlyEqual(t, "suggested", rounded.SuggestedUnitPrice, 9.27)
	nearlyEqual(t, "tier price", rounded.Tiers[0].UnitPrice, 7.94)
	nearlyEqual(t, "tier margin pct untouched", rounded.Tiers[0].MarginPct, 30)

	// The original keeps full precision.
	nearlyEqual(t, "original suggested", breakdown.SuggestedUnitPrice, 9.26625)
}
