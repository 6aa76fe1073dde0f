// Package export writes archived receipts to spreadsheet summaries.
package export

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"capture/internal/storage"
)

func ReceiptsToXLSX(rows []storage.ReceiptRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"id", "receipt_id", "merchant", "receipt_date", "total",
		"currency", "product_count", "ereceipt", "archived_at",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.ID)
		set(2, derefString(row.ReceiptID))
		set(3, derefString(row.MerchantName))
		set(4, derefString(row.ReceiptDate))
		set(5, derefFloat(row.Total))
		set(6, derefString(row.CurrencyCode))
		set(7, row.ProductCount)
		set(8, row.EReceipt)
		set(9, row.CreatedAt)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
