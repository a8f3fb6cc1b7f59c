package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var exportHeaders = []string{
	"ID", "Created", "Customer", "Status", "Quantity",
	"Unit Price", "Total Price", "Margin %",
}

// handleExportQuotes streams the quote list as an xlsx workbook, honoring
// the same ?q= filter as the JSON listing.
func (s *server) handleExportQuotes(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.listQuotes(strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		s.logger.Error("list quotes for export", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load quotes")
		return
	}

	file, err := buildQuoteWorkbook(quotes)
	if err != nil {
		s.logger.Error("build quote workbook", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to build export")
		return
	}
	defer file.Close()

	filename := fmt.Sprintf("quotes-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := file.Write(w); err != nil {
		s.logger.Error("write quote workbook", zap.Error(err))
	}
}

func buildQuoteWorkbook(quotes []savedQuote) (*excelize.File, error) {
	file := excelize.NewFile()
	sheet := "Quotes"
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for col, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := file.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for i, quote := range quotes {
		rounded := quote.Breakdown.Rounded()
		values := []any{
			quote.ID,
			quote.CreatedAt,
			quote.Customer,
			quote.Status,
			quote.Params.Quantity,
			rounded.SuggestedUnitPrice,
			rounded.SuggestedTotalPrice,
			rounded.RealizedMarginPct,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("data cell: %w", err)
			}
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("write quote row: %w", err)
			}
		}
	}

	return file, nil
}
