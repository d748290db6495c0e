package warranty

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/zombor/warrantysafe/internal/record"
)

const exportSheet = "Warranties"

var exportHeaders = []string{
	"Product",
	"Brand",
	"Purchase Date",
	"Price",
	"Category",
	"Warranty Months",
	"Warranty End",
	"Status",
	"Days Remaining",
	"Support URL",
	"Estimated Fields",
	"File",
}

// ExportXLSX returns the caller's warranties as an XLSX workbook. Exports are a paid feature.
func (s *Service) ExportXLSX(ctx context.Context, caller Caller) ([]byte, error) {
	if !caller.Authenticated || caller.UserID == "" {
		return nil, ErrUnauthenticated
	}
	paid, err := s.isPaid(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if !paid {
		return nil, ErrUpgradeRequired
	}

	views, err := s.List(ctx, caller, "")
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	// rename the default sheet so the workbook has exactly one
	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}

	for i, v := range views {
		row := i + 2
		write := func(col int, val any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(exportSheet, cell, val)
		}

		write(1, v.ProductName)
		write(2, v.Brand)
		write(3, v.PurchaseDate.String())
		if v.Price != nil {
			write(4, v.Price.String())
		}
		write(5, v.Category)
		write(6, v.WarrantyPeriodMonths)
		if v.WarrantyEnd != nil {
			write(7, v.WarrantyEnd.String())
		}
		write(8, string(v.Status))
		if v.DaysRemaining != nil {
			write(9, *v.DaysRemaining)
		}
		write(10, v.SupportURL)
		write(11, joinFields(v.Fallbacks))
		write(12, v.Filename)
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 32) // product
	_ = f.SetColWidth(exportSheet, "B", "B", 18) // brand
	_ = f.SetColWidth(exportSheet, "C", "I", 14)
	_ = f.SetColWidth(exportSheet, "J", "J", 36) // support url
	_ = f.SetColWidth(exportSheet, "K", "K", 28)
	_ = f.SetColWidth(exportSheet, "L", "L", 40) // file

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing xlsx: %w", err)
	}

	slog.Info("Exported warranties", "user_id", caller.UserID, "rows", len(views))
	return buf.Bytes(), nil
}

func joinFields(fields []record.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
