package inventory

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the media type of the stock workbook.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const stockSheet = "Stock"

var stockHeader = []any{
	"Code", "Name", "Unit", "Category", "Current Stock", "Min Stock",
	"Last Cost", "Avg Cost", "Stock Value", "Base Price", "Low Stock",
}

// ExportStock writes every item with its metrics as an xlsx workbook.
func (s *Service) ExportStock(ctx context.Context, w io.Writer, warehouseID int64) error {
	views, err := s.AllItemViews(ctx, warehouseID)
	if err != nil {
		return err
	}
	f, err := buildStockWorkbook(views)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func buildStockWorkbook(views []ItemView) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", stockSheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.SetSheetRow(stockSheet, "A1", &stockHeader); err != nil {
		_ = f.Close()
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetCellStyle(stockSheet, "A1", "K1", bold)
	}
	_ = f.SetColWidth(stockSheet, "A", "B", 24)
	for i, v := range views {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		low := "no"
		if v.Stock.IsLowStock {
			low = "yes"
		}
		row := []any{
			v.Code,
			v.Name,
			v.Unit,
			v.Category,
			v.Stock.CurrentStock.InexactFloat64(),
			v.Stock.MinStock.InexactFloat64(),
			v.Stock.LastCost.InexactFloat64(),
			v.Stock.AvgCost.Round(2).InexactFloat64(),
			v.Stock.StockValue.InexactFloat64(),
			v.Stock.EffectiveBasePrice.InexactFloat64(),
			low,
		}
		if err := f.SetSheetRow(stockSheet, cell, &row); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return f, nil
}
