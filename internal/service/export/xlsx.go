// Package export renders recommendation history as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"SPI/internal/domain/models"
)

const (
	SheetName   = "Recommendations"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var header = []interface{}{
	"ID", "SKU", "Created At", "Cost Price", "Competitor Min", "Floor Price",
	"Undercut Price", "Recommended Price", "Min Profit Margin", "Undercut Limit",
	"Outcome", "Model Version", "Status", "Decided At",
}

// WriteXLSX writes one header row followed by one row per recommendation.
// Absent competitor data leaves its cells empty.
func WriteXLSX(w io.Writer, recs []*models.Recommendation) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range recs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row(r)); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Filename names the export for sku, stamped with generation time.
func Filename(sku string, at time.Time) string {
	return fmt.Sprintf("recommendations_%s_%s.xlsx", sku, at.UTC().Format("20060102T150405Z"))
}

func row(r *models.Recommendation) []interface{} {
	decided := ""
	if r.DecidedAt != nil {
		decided = r.DecidedAt.UTC().Format(time.RFC3339)
	}
	return []interface{}{
		r.ID,
		r.SKU,
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.CostPrice,
		optional(r.CompetitorMin),
		r.FloorPrice,
		optional(r.UndercutPrice),
		r.RecommendedPrice,
		r.Rules.MinProfitMargin,
		r.Rules.UndercutLimit,
		string(r.Outcome),
		r.ModelVersion,
		r.Status,
		decided,
	}
}

func optional(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
