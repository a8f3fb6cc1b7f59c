package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/printworks/printdesk/internal/market"
	"github.com/printworks/printdesk/internal/metrics"
	"github.com/printworks/printdesk/internal/pricing"
)

// fallbackPricePerKg is used when a quote references a material that no
// longer exists. An interactive estimate should degrade to a generic
// filament price, not fail outright.
const fallbackPricePerKg = 25.0

type estimateRequest struct {
	MaterialID  int64   `json:"material_id"`
	WeightGrams float64 `json:"weight_grams"`
	PrintHours  float64 `json:"print_hours"`
	Quantity    int     `json:"quantity"`
	Complexity  string  `json:"complexity"`
	Finishing   string  `json:"finishing"`
	Rush        bool    `json:"rush"`
}

// params validates the request and fills enum defaults at the boundary so
// the pricing package never sees raw wire values.
func (r estimateRequest) params() (pricing.PrintJobParams, error) {
	complexity, err := parseComplexity(r.Complexity)
	if err != nil {
		return pricing.PrintJobParams{}, err
	}
	finishing, err := parseFinishing(r.Finishing)
	if err != nil {
		return pricing.PrintJobParams{}, err
	}

	return pricing.PrintJobParams{
		WeightGrams: r.WeightGrams,
		PrintHours:  r.PrintHours,
		Quantity:    r.Quantity,
		Complexity:  complexity,
		Finishing:   finishing,
		Rush:        r.Rush,
	}, nil
}

func parseComplexity(raw string) (pricing.Complexity, error) {
	switch pricing.Complexity(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return pricing.ComplexityMedium, nil
	case pricing.ComplexitySimple:
		return pricing.ComplexitySimple, nil
	case pricing.ComplexityMedium:
		return pricing.ComplexityMedium, nil
	case pricing.ComplexityComplex:
		return pricing.ComplexityComplex, nil
	default:
		return "", errors.New("complexity must be simple, medium or complex")
	}
}

func parseFinishing(raw string) (pricing.Finishing, error) {
	switch pricing.Finishing(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return pricing.FinishingNone, nil
	case pricing.FinishingNone:
		return pricing.FinishingNone, nil
	case pricing.FinishingSanding:
		return pricing.FinishingSanding, nil
	case pricing.FinishingPainting:
		return pricing.FinishingPainting, nil
	case pricing.FinishingAssembly:
		return pricing.FinishingAssembly, nil
	default:
		return "", errors.New("finishing must be none, sanding, painting or assembly")
	}
}

type estimateResponse struct {
	Material           pricing.MaterialProfile `json:"material"`
	Breakdown          pricing.CostBreakdown   `json:"breakdown"`
	Market             *market.Conditions      `json:"market,omitempty"`
	AdjustedUnitPrice  float64                 `json:"adjusted_unit_price,omitempty"`
	AdjustedTotalPrice float64                 `json:"adjusted_total_price,omitempty"`
}

func (s *server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	params, err := req.params()
	if err != nil {
		metrics.EstimatesTotal.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings, err := s.getSettings()
	if err != nil {
		s.logger.Error("load settings", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	profile := s.materialForEstimate(req.MaterialID)

	breakdown, err := pricing.Estimate(params, profile, settings.Cost)
	if err != nil {
		metrics.EstimatesTotal.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	metrics.EstimatesTotal.WithLabelValues("ok").Inc()

	resp := estimateResponse{
		Material:  profile,
		Breakdown: breakdown.Rounded(),
	}

	if r.URL.Query().Get("market") == "1" {
		conditions, err := s.marketConditions(settings.Market)
		if err != nil {
			s.logger.Error("compute market conditions", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to compute market conditions")
			return
		}

		adjustedUnit := breakdown.SuggestedUnitPrice * conditions.Combined
		if adjustedUnit < settings.Cost.MinimumPrice {
			adjustedUnit = settings.Cost.MinimumPrice
		}
		resp.Market = &conditions
		resp.AdjustedUnitPrice = pricing.Round2(adjustedUnit)
		resp.AdjustedTotalPrice = pricing.Round2(adjustedUnit * float64(params.Quantity))
	}

	respondJSON(w, http.StatusOK, resp)
}

// materialForEstimate resolves the requested material, falling back to a
// generic profile when the reference is missing or not set.
func (s *server) materialForEstimate(id int64) pricing.MaterialProfile {
	if id > 0 {
		m, err := s.getMaterial(id)
		if err == nil {
			return m.profile()
		}
		if !errors.Is(err, pricing.ErrUnknownMaterial) {
			s.logger.Error("load material", zap.Int64("material_id", id), zap.Error(err))
		} else {
			s.logger.Warn("material not found, using fallback price", zap.Int64("material_id", id))
		}
	}
	return pricing.MaterialProfile{Name: "Generic filament", PricePerKg: fallbackPricePerKg}
}

type saveQuoteRequest struct {
	estimateRequest
	Customer string `json:"customer"`
}

func (s *server) handleSaveQuote(w http.ResponseWriter, r *http.Request) {
	var req saveQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	params, err := req.params()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings, err := s.getSettings()
	if err != nil {
		s.logger.Error("load settings", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	// The saved breakdown is recomputed here: the server is the single
	// source of pricing truth, never the dashboard.
	breakdown, err := pricing.Estimate(params, s.materialForEstimate(req.MaterialID), settings.Cost)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	quote, err := s.saveQuote(strings.TrimSpace(req.Customer), params, breakdown)
	if err != nil {
		s.logger.Error("save quote", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to save quote")
		return
	}

	respondJSON(w, http.StatusCreated, quote)
}

func (s *server) handleListQuotes(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	quotes, err := s.listQuotes(query)
	if err != nil {
		s.logger.Error("list quotes", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load quotes")
		return
	}
	respondJSON(w, http.StatusOK, quotes)
}

func (s *server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := s.getQuote(chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "quote not found")
		return
	}
	if err != nil {
		s.logger.Error("get quote", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load quote")
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

func (s *server) handleDeleteQuote(w http.ResponseWriter, r *http.Request) {
	err := s.deleteQuote(chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "quote not found")
		return
	}
	if err != nil {
		s.logger.Error("delete quote", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete quote")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleConvertQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := s.convertQuote(chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "quote not found")
		return
	}
	if errors.Is(err, errQuoteConverted) {
		respondError(w, http.StatusConflict, "quote already converted")
		return
	}
	if err != nil {
		s.logger.Error("convert quote", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to convert quote")
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

func (s *server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.getSettings()
	if err != nil {
		s.logger.Error("load settings", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

func (s *server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings shopSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := validateSettings(settings); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.updateSettings(settings); err != nil {
		s.logger.Error("update settings", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

func validateSettings(st shopSettings) error {
	c := st.Cost
	if c.TargetMarginPct < 0 || c.TargetMarginPct >= 100 {
		return pricing.ErrInvalidMargin
	}
	for _, v := range []float64{
		c.ElectricityPerKwh, c.PrinterWatts, c.LaborPerHour, c.SetupMinutes,
		c.PackagingCost, c.FailureRatePct, c.MinimumPrice, c.DepreciationPerHour,
		st.Market.BaseMultiplier,
	} {
		if v < 0 {
			return pricing.ErrNegativeInput
		}
	}
	return nil
}

type materialRequest struct {
	Name       string  `json:"name"`
	Brand      string  `json:"brand"`
	PricePerKg float64 `json:"price_per_kg"`
	Density    float64 `json:"density"`
	Color      string  `json:"color"`
	Active     *bool   `json:"active"`
}

func (r materialRequest) material() (material, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return material{}, errors.New("name is required")
	}
	if r.PricePerKg <= 0 {
		return material{}, errors.New("price_per_kg must be greater than 0")
	}
	if r.Density < 0 {
		return material{}, errors.New("density must not be negative")
	}

	active := true
	if r.Active != nil {
		active = *r.Active
	}

	return material{
		Name:       name,
		Brand:      strings.TrimSpace(r.Brand),
		PricePerKg: r.PricePerKg,
		Density:    r.Density,
		Color:      strings.TrimSpace(r.Color),
		Active:     active,
	}, nil
}

func (s *server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("all") == "1"
	materials, err := s.listMaterials(includeInactive)
	if err != nil {
		s.logger.Error("list materials", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load materials")
		return
	}
	respondJSON(w, http.StatusOK, materials)
}

func (s *server) handleCreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req materialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	m, err := req.material()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.createMaterial(m)
	if err != nil {
		s.logger.Error("create material", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create material")
		return
	}

	m.ID = id
	respondJSON(w, http.StatusCreated, m)
}

func (s *server) handleUpdateMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid material id")
		return
	}

	var req materialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	m, err := req.material()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	m.ID = id

	err = s.updateMaterial(m)
	if errors.Is(err, pricing.ErrUnknownMaterial) {
		respondError(w, http.StatusNotFound, "material not found")
		return
	}
	if err != nil {
		s.logger.Error("update material", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update material")
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	orders, err := s.listOrders(limit)
	if err != nil {
		s.logger.Error("list orders", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *server) handleMarket(w http.ResponseWriter, r *http.Request) {
	settings, err := s.getSettings()
	if err != nil {
		s.logger.Error("load settings", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	conditions, err := s.marketConditions(settings.Market)
	if err != nil {
		s.logger.Error("compute market conditions", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to compute market conditions")
		return
	}
	respondJSON(w, http.StatusOK, conditions)
}

// marketConditions gathers live inputs and classifies them. Conditions
// depend on the clock, so they are computed fresh on every call.
func (s *server) marketConditions(cfg market.Config) (market.Conditions, error) {
	now := time.Now().UTC()
	history, err := s.orderHistory(now)
	if err != nil {
		return market.Conditions{}, err
	}

	total, printing := s.fleet.Counts()
	return market.Compute(history, market.FleetLoad{Total: total, Printing: printing}, now, cfg), nil
}

func (s *server) handlePrinters(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.fleet.Snapshot())
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
