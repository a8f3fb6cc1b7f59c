package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/printworks/printdesk/internal/market"
	"github.com/printworks/printdesk/internal/pricing"
)

const (
	quoteStatusPending   = "pending"
	quoteStatusConverted = "converted"
)

// errQuoteConverted marks a conversion attempt on an already-converted quote.
var errQuoteConverted = errors.New("quote already converted")

// demandHistoryDays covers the trailing week plus the 30-day baseline.
const demandHistoryDays = 37

// shopSettings is the persisted settings singleton: the cost model inputs
// plus the market adjustment toggles.
type shopSettings struct {
	Cost   pricing.CostSettings `json:"cost"`
	Market market.Config        `json:"market"`
}

type material struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Brand      string  `json:"brand"`
	PricePerKg float64 `json:"price_per_kg"`
	Density    float64 `json:"density"`
	Color      string  `json:"color"`
	Active     bool    `json:"active"`
}

func (m material) profile() pricing.MaterialProfile {
	return pricing.MaterialProfile{
		Name:       m.Name,
		Brand:      m.Brand,
		PricePerKg: m.PricePerKg,
		Density:    m.Density,
		Color:      m.Color,
	}
}

type savedQuote struct {
	ID        string                 `json:"id"`
	Customer  string                 `json:"customer,omitempty"`
	Status    string                 `json:"status"`
	Params    pricing.PrintJobParams `json:"params"`
	Breakdown pricing.CostBreakdown  `json:"breakdown"`
	CreatedAt string                 `json:"created_at"`
}

type order struct {
	ID         int64   `json:"id"`
	QuoteID    string  `json:"quote_id,omitempty"`
	Customer   string  `json:"customer,omitempty"`
	TotalPrice float64 `json:"total_price"`
	CreatedAt  string  `json:"created_at"`
}

func (s *server) getSettings() (shopSettings, error) {
	var st shopSettings
	err := s.db.QueryRow(`
		SELECT
			electricity_per_kwh, printer_watts, labor_per_hour, setup_minutes,
			packaging_cost, failure_rate_pct, target_margin_pct, minimum_price,
			depreciation_per_hour,
			market_base_multiplier, market_demand_enabled, market_capacity_enabled,
			market_day_of_week_enabled
		FROM cost_settings
		WHERE id = 1
	`).Scan(
		&st.Cost.ElectricityPerKwh,
		&st.Cost.PrinterWatts,
		&st.Cost.LaborPerHour,
		&st.Cost.SetupMinutes,
		&st.Cost.PackagingCost,
		&st.Cost.FailureRatePct,
		&st.Cost.TargetMarginPct,
		&st.Cost.MinimumPrice,
		&st.Cost.DepreciationPerHour,
		&st.Market.BaseMultiplier,
		&st.Market.DemandEnabled,
		&st.Market.CapacityEnabled,
		&st.Market.DayOfWeekEnabled,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return shopSettings{}, fmt.Errorf("cost settings singleton not found")
		}
		return shopSettings{}, fmt.Errorf("query cost settings: %w", err)
	}
	return st, nil
}

func (s *server) updateSettings(st shopSettings) error {
	_, err := s.db.Exec(`
		UPDATE cost_settings
		SET
			electricity_per_kwh = ?,
			printer_watts = ?,
			labor_per_hour = ?,
			setup_minutes = ?,
			packaging_cost = ?,
			failure_rate_pct = ?,
			target_margin_pct = ?,
			minimum_price = ?,
			depreciation_per_hour = ?,
			market_base_multiplier = ?,
			market_demand_enabled = ?,
			market_capacity_enabled = ?,
			market_day_of_week_enabled = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`,
		st.Cost.ElectricityPerKwh,
		st.Cost.PrinterWatts,
		st.Cost.LaborPerHour,
		st.Cost.SetupMinutes,
		st.Cost.PackagingCost,
		st.Cost.FailureRatePct,
		st.Cost.TargetMarginPct,
		st.Cost.MinimumPrice,
		st.Cost.DepreciationPerHour,
		st.Market.BaseMultiplier,
		st.Market.DemandEnabled,
		st.Market.CapacityEnabled,
		st.Market.DayOfWeekEnabled,
	)
	if err != nil {
		return fmt.Errorf("update cost settings: %w", err)
	}
	return nil
}

func (s *server) listMaterials(includeInactive bool) ([]material, error) {
	rows, err := s.db.Query(`
		SELECT id, name, brand, price_per_kg, density, color, active
		FROM materials
		WHERE (? OR active)
		ORDER BY id DESC
	`, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("query materials: %w", err)
	}
	defer rows.Close()

	materials := make([]material, 0)
	for rows.Next() {
		var m material
		if err := rows.Scan(&m.ID, &m.Name, &m.Brand, &m.PricePerKg, &m.Density, &m.Color, &m.Active); err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		materials = append(materials, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate materials: %w", err)
	}

	return materials, nil
}

func (s *server) getMaterial(id int64) (material, error) {
	var m material
	err := s.db.QueryRow(`
		SELECT id, name, brand, price_per_kg, density, color, active
		FROM materials
		WHERE id = ?
	`, id).Scan(&m.ID, &m.Name, &m.Brand, &m.PricePerKg, &m.Density, &m.Color, &m.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return material{}, pricing.ErrUnknownMaterial
	}
	if err != nil {
		return material{}, fmt.Errorf("query material: %w", err)
	}
	return m, nil
}

func (s *server) createMaterial(m material) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO materials (name, brand, price_per_kg, density, color, active)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.Name, m.Brand, m.PricePerKg, m.Density, m.Color, m.Active)
	if err != nil {
		return 0, fmt.Errorf("insert material: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("material insert id: %w", err)
	}
	return id, nil
}

func (s *server) updateMaterial(m material) error {
	result, err := s.db.Exec(`
		UPDATE materials
		SET
			name = ?,
			brand = ?,
			price_per_kg = ?,
			density = ?,
			color = ?,
			active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, m.Name, m.Brand, m.PricePerKg, m.Density, m.Color, m.Active, m.ID)
	if err != nil {
		return fmt.Errorf("update material: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update material rows affected: %w", err)
	}
	if affected == 0 {
		return pricing.ErrUnknownMaterial
	}
	return nil
}

func (s *server) saveQuote(customer string, params pricing.PrintJobParams, breakdown pricing.CostBreakdown) (savedQuote, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return savedQuote{}, fmt.Errorf("marshal quote params: %w", err)
	}
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return savedQuote{}, fmt.Errorf("marshal quote breakdown: %w", err)
	}

	quote := savedQuote{
		ID:        uuid.NewString(),
		Customer:  customer,
		Status:    quoteStatusPending,
		Params:    params,
		Breakdown: breakdown,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	_, err = s.db.Exec(`
		INSERT INTO quotes (id, customer, status, params_json, breakdown_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, quote.ID, quote.Customer, quote.Status, string(paramsJSON), string(breakdownJSON), quote.CreatedAt)
	if err != nil {
		return savedQuote{}, fmt.Errorf("insert quote: %w", err)
	}

	return quote, nil
}

func (s *server) listQuotes(query string) ([]savedQuote, error) {
	search := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT id, customer, status, params_json, breakdown_json, created_at
		FROM quotes
		WHERE (? = '' OR customer LIKE ? OR id LIKE ?)
		ORDER BY datetime(created_at) DESC, id DESC
	`, query, search, search)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	quotes := make([]savedQuote, 0)
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, quote)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotes: %w", err)
	}

	return quotes, nil
}

func (s *server) getQuote(id string) (savedQuote, error) {
	row := s.db.QueryRow(`
		SELECT id, customer, status, params_json, breakdown_json, created_at
		FROM quotes
		WHERE id = ?
	`, id)

	quote, err := scanQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return savedQuote{}, err
	}
	if err != nil {
		return savedQuote{}, err
	}
	return quote, nil
}

func (s *server) deleteQuote(id string) error {
	result, err := s.db.Exec(`DELETE FROM quotes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete quote: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete quote rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// convertQuote turns a pending quote into an order. The order row is what
// feeds demand history for market pricing.
func (s *server) convertQuote(id string) (savedQuote, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return savedQuote{}, fmt.Errorf("begin convert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRow(`
		SELECT id, customer, status, params_json, breakdown_json, created_at
		FROM quotes
		WHERE id = ?
	`, id)

	quote, err := scanQuote(row)
	if err != nil {
		return savedQuote{}, err
	}
	if quote.Status == quoteStatusConverted {
		return savedQuote{}, errQuoteConverted
	}

	if _, err := tx.Exec(`
		INSERT INTO orders (quote_id, customer, total_price)
		VALUES (?, ?, ?)
	`, quote.ID, quote.Customer, quote.Breakdown.SuggestedTotalPrice); err != nil {
		return savedQuote{}, fmt.Errorf("insert order: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE quotes
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, quoteStatusConverted, quote.ID); err != nil {
		return savedQuote{}, fmt.Errorf("mark quote converted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return savedQuote{}, fmt.Errorf("commit convert transaction: %w", err)
	}

	quote.Status = quoteStatusConverted
	return quote, nil
}

func (s *server) listOrders(limit int) ([]order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, COALESCE(quote_id, ''), customer, total_price, created_at
		FROM orders
		ORDER BY datetime(created_at) DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]order, 0)
	for rows.Next() {
		var o order
		if err := rows.Scan(&o.ID, &o.QuoteID, &o.Customer, &o.TotalPrice, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}

// orderHistory returns daily order counts for the demand window.
func (s *server) orderHistory(now time.Time) ([]market.DayCount, error) {
	since := now.AddDate(0, 0, -demandHistoryDays).UTC().Format("2006-01-02")
	rows, err := s.db.Query(`
		SELECT date(created_at), COUNT(*)
		FROM orders
		WHERE date(created_at) >= ?
		GROUP BY date(created_at)
		ORDER BY date(created_at)
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query order history: %w", err)
	}
	defer rows.Close()

	history := make([]market.DayCount, 0)
	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("scan order history: %w", err)
		}

		parsed, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, fmt.Errorf("parse order history day %q: %w", day, err)
		}
		history = append(history, market.DayCount{Day: parsed, Orders: count})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order history: %w", err)
	}

	return history, nil
}

// scanQuote reads one quote row; works for both sql.Row and sql.Rows.
func scanQuote(row interface{ Scan(...any) error }) (savedQuote, error) {
	var quote savedQuote
	var paramsJSON, breakdownJSON string

	if err := row.Scan(&quote.ID, &quote.Customer, &quote.Status, &paramsJSON, &breakdownJSON, &quote.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return savedQuote{}, err
		}
		return savedQuote{}, fmt.Errorf("scan quote: %w", err)
	}

	if err := json.Unmarshal([]byte(paramsJSON), &quote.Params); err != nil {
		return savedQuote{}, fmt.Errorf("unmarshal quote params: %w", err)
	}
	if err := json.Unmarshal([]byte(breakdownJSON), &quote.Breakdown); err != nil {
		return savedQuote{}, fmt.Errorf("unmarshal quote breakdown: %w", err)
	}

	return quote, nil
}
