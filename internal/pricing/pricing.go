package pricing

import (
	"errors"
	"math"
)

// Complexity classifies how much finishing attention each unit needs.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Finishing is the post-print treatment applied to each unit.
type Finishing string

const (
	FinishingNone     Finishing = "none"
	FinishingSanding  Finishing = "sanding"
	FinishingPainting Finishing = "painting"
	FinishingAssembly Finishing = "assembly"
)

// Validation errors returned by Estimate. All are recoverable input
// problems; callers should re-prompt rather than abort.
var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidMargin   = errors.New("margin must be at least 0 and below 100")
	ErrNegativeInput   = errors.New("negative value in pricing input")
	ErrUnknownMaterial = errors.New("material not found")
)

// Finishing work per unit, in minutes.
const (
	sandingMinutes  = 15.0
	paintingMinutes = 30.0
	assemblyMinutes = 45.0
)

// Complexity scales the finishing time, not the print time.
const (
	simpleMultiplier  = 0.8
	mediumMultiplier  = 1.0
	complexMultiplier = 1.3
)

// RushMultiplier is the premium applied to rush orders before the
// minimum-price floor.
const RushMultiplier = 1.5

// Margin tiers reported on every breakdown alongside the target margin.
var reportedMarginTiers = []float64{30, 40, 50}

// MaterialProfile identifies a printable material and its purchase cost.
type MaterialProfile struct {
	Name       string  `json:"name"`
	Brand      string  `json:"brand,omitempty"`
	PricePerKg float64 `json:"price_per_kg"`
	Density    float64 `json:"density,omitempty"` // g/cm³
	Color      string  `json:"color,omitempty"`
}

// CostSettings holds the shop's operating-cost configuration. It is a
// plain value passed into Estimate, never read from ambient state.
type CostSettings struct {
	ElectricityPerKwh   float64 `json:"electricity_per_kwh"`
	PrinterWatts        float64 `json:"printer_watts"`
	LaborPerHour        float64 `json:"labor_per_hour"`
	SetupMinutes        float64 `json:"setup_minutes"`
	PackagingCost       float64 `json:"packaging_cost"`
	FailureRatePct      float64 `json:"failure_rate_pct"`
	TargetMarginPct     float64 `json:"target_margin_pct"`
	MinimumPrice        float64 `json:"minimum_price"`
	DepreciationPerHour float64 `json:"depreciation_per_hour"`
}

// PrintJobParams describes a single job to be quoted.
type PrintJobParams struct {
	WeightGrams float64    `json:"weight_grams"`
	PrintHours  float64    `json:"print_hours"`
	Quantity    int        `json:"quantity"`
	Complexity  Complexity `json:"complexity"`
	Finishing   Finishing  `json:"finishing"`
	Rush        bool       `json:"rush"`
}

// UnitCosts itemizes the raw cost of producing one unit.
type UnitCosts struct {
	Material      float64 `json:"material"`
	Electricity   float64 `json:"electricity"`
	Labor         float64 `json:"labor"`
	Depreciation  float64 `json:"depreciation"`
	Packaging     float64 `json:"packaging"`
	FailureBuffer float64 `json:"failure_buffer"`
}

// MarginTier is the price the job would fetch at a given margin, with the
// margin actually realized once the minimum-price floor is applied.
type MarginTier struct {
	MarginPct         float64 `json:"margin_pct"`
	UnitPrice         float64 `json:"unit_price"`
	TotalPrice        float64 `json:"total_price"`
	RealizedMarginPct float64 `json:"realized_margin_pct"`
}

// CostBreakdown is the full pricing output for one job. It is a derived
// value: recomputed on every input change, never mutated in place.
type CostBreakdown struct {
	Unit                UnitCosts    `json:"unit_costs"`
	RawCostPerUnit      float64      `json:"raw_cost_per_unit"`
	TotalRawCost        float64      `json:"total_raw_cost"`
	QuantityDiscountPct float64      `json:"quantity_discount_pct"`
	RushMultiplier      float64      `json:"rush_multiplier"`
	SuggestedUnitPrice  float64      `json:"suggested_unit_price"`
	SuggestedTotalPrice float64      `json:"suggested_total_price"`
	RealizedMarginPct   float64      `json:"realized_margin_pct"`
	Tiers               []MarginTier `json:"margin_tiers"`
}

// DiscountStep grants Pct off once the quantity reaches MinQuantity.
type DiscountStep struct {
	MinQuantity int
	Pct         float64
}

// DefaultDiscountSchedule is the shop's bulk discount ladder. Steps must
// be sorted ascending by MinQuantity with non-decreasing discounts so the
// per-unit price never rises with quantity.
var DefaultDiscountSchedule = []DiscountStep{
	{MinQuantity: 10, Pct: 5},
	{MinQuantity: 20, Pct: 7},
	{MinQuantity: 50, Pct: 10},
	{MinQuantity: 100, Pct: 15},
}

// QuantityDiscountPct returns the bulk discount percentage for a quantity.
func QuantityDiscountPct(quantity int) float64 {
	discount := 0.0
	for _, step := range DefaultDiscountSchedule {
		if quantity >= step.MinQuantity {
			discount = step.Pct
		}
	}
	return discount
}

// Estimate computes a deterministic cost breakdown for one print job.
// It is a pure function: settings and material are read-only inputs and
// identical inputs always produce identical output.
func Estimate(params PrintJobParams, material MaterialProfile, settings CostSettings) (CostBreakdown, error) {
	if params.Quantity < 1 {
		return CostBreakdown{}, ErrInvalidQuantity
	}
	if settings.TargetMarginPct < 0 || settings.TargetMarginPct >= 100 {
		return CostBreakdown{}, ErrInvalidMargin
	}
	if anyNegative(
		params.WeightGrams, params.PrintHours,
		material.PricePerKg,
		settings.ElectricityPerKwh, settings.PrinterWatts, settings.LaborPerHour,
		settings.SetupMinutes, settings.PackagingCost, settings.FailureRatePct,
		settings.MinimumPrice, settings.DepreciationPerHour,
	) {
		return CostBreakdown{}, ErrNegativeInput
	}

	quantity := float64(params.Quantity)

	materialUnit := (params.WeightGrams / 1000.0) * material.PricePerKg
	electricityUnit := (params.PrintHours * settings.PrinterWatts / 1000.0) * settings.ElectricityPerKwh

	// Setup is paid once per job and amortized across the run; finishing
	// is per unit, scaled by complexity.
	laborHoursUnit := (settings.SetupMinutes / 60.0 / quantity) +
		(finishingMinutes(params.Finishing) * complexityMultiplier(params.Complexity) / 60.0)
	laborUnit := laborHoursUnit * settings.LaborPerHour

	depreciationUnit := params.PrintHours * settings.DepreciationPerHour
	packagingUnit := settings.PackagingCost

	subtotal := (materialUnit + electricityUnit + laborUnit + depreciationUnit + packagingUnit) * quantity
	failureBuffer := subtotal * (settings.FailureRatePct / 100.0)
	totalRawCost := subtotal + failureBuffer
	rawCostPerUnit := totalRawCost / quantity

	discountPct := QuantityDiscountPct(params.Quantity)
	rushMultiplier := 1.0
	if params.Rush {
		rushMultiplier = RushMultiplier
	}

	priceAt := func(marginPct float64) (unitPrice, realizedPct float64) {
		unitPrice = rawCostPerUnit / (1.0 - marginPct/100.0)
		unitPrice *= rushMultiplier
		unitPrice *= 1.0 - discountPct/100.0
		if unitPrice < settings.MinimumPrice {
			unitPrice = settings.MinimumPrice
		}
		if unitPrice > 0 {
			realizedPct = (unitPrice - rawCostPerUnit) / unitPrice * 100.0
		}
		return unitPrice, realizedPct
	}

	marginPcts := append(append([]float64{}, reportedMarginTiers...), settings.TargetMarginPct)
	tiers := make([]MarginTier, 0, len(marginPcts))
	for _, m := range marginPcts {
		unitPrice, realized := priceAt(m)
		tiers = append(tiers, MarginTier{
			MarginPct:         m,
			UnitPrice:         unitPrice,
			TotalPrice:        unitPrice * quantity,
			RealizedMarginPct: realized,
		})
	}

	suggestedUnit, realized := priceAt(settings.TargetMarginPct)

	return CostBreakdown{
		Unit: UnitCosts{
			Material:      materialUnit,
			Electricity:   electricityUnit,
			Labor:         laborUnit,
			Depreciation:  depreciationUnit,
			Packaging:     packagingUnit,
			FailureBuffer: failureBuffer / quantity,
		},
		RawCostPerUnit:      rawCostPerUnit,
		TotalRawCost:        totalRawCost,
		QuantityDiscountPct: discountPct,
		RushMultiplier:      rushMultiplier,
		SuggestedUnitPrice:  suggestedUnit,
		SuggestedTotalPrice: suggestedUnit * quantity,
		RealizedMarginPct:   realized,
		Tiers:               tiers,
	}, nil
}

func finishingMinutes(f Finishing) float64 {
	switch f {
	case FinishingSanding:
		return sandingMinutes
	case FinishingPainting:
		return paintingMinutes
	case FinishingAssembly:
		return assemblyMinutes
	default:
		return 0
	}
}

func complexityMultiplier(c Complexity) float64 {
	switch c {
	case ComplexitySimple:
		return simpleMultiplier
	case ComplexityComplex:
		return complexMultiplier
	default:
		return mediumMultiplier
	}
}

func anyNegative(values ...float64) bool {
	for _, v := range values {
		if v < 0 {
			return true
		}
	}
	return false
}

// Round2 rounds a monetary value to two decimals. Internal computation
// keeps full float precision; rounding happens only at the presentation
// boundary.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100.0
}

// Rounded returns a copy of the breakdown with every monetary field
// rounded to two decimals for display.
func (b CostBreakdown) Rounded() CostBreakdown {
	out := b
	out.Unit.Material = Round2(b.Unit.Material)
	out.Unit.Electricity = Round2(b.Unit.Electricity)
	out.Unit.Labor = Round2(b.Unit.Labor)
	out.Unit.Depreciation = Round2(b.Unit.Depreciation)
	out.Unit.Packaging = Round2(b.Unit.Packaging)
	out.Unit.FailureBuffer = Round2(b.Unit.FailureBuffer)
	out.RawCostPerUnit = Round2(b.RawCostPerUnit)
	out.TotalRawCost = Round2(b.TotalRawCost)
	out.SuggestedUnitPrice = Round2(b.SuggestedUnitPrice)
	out.SuggestedTotalPrice = Round2(b.SuggestedTotalPrice)
	out.RealizedMarginPct = Round2(b.RealizedMarginPct)
	out.Tiers = make([]MarginTier, len(b.Tiers))
	for i, tier := range b.Tiers {
		out.Tiers[i] = MarginTier{
			MarginPct:         tier.MarginPct,
			UnitPrice:         Round2(tier.UnitPrice),
			TotalPrice:        Round2(tier.TotalPrice),
			RealizedMarginPct: Round2(tier.RealizedMarginPct),
		}
	}
	return out
}
