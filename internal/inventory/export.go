package inventory

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/commerceops/opsdash/internal/shared"
)

const reorderSheet = "Reorder"

var reorderHeader = []any{
	"product_id",
	"sku",
	"title",
	"quantity",
	"available",
	"incoming",
	"sales_velocity",
	"days_until_stockout",
	"risk",
	"reorder_point",
	"reorder_quantity",
	"reorder_date",
	"unit_price",
}

// ExportReorderReport writes the items that should be reordered now as an
// XLSX workbook.
func ExportReorderReport(w io.Writer, view View) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), reorderSheet); err != nil {
		return fmt.Errorf("inventory: export sheet: %w", err)
	}
	if err := f.SetSheetRow(reorderSheet, "A1", &reorderHeader); err != nil {
		return fmt.Errorf("inventory: export header: %w", err)
	}

	row := 2
	for _, it := range view.Items {
		if !it.Reorder.ShouldReorderNow {
			continue
		}
		reorderDate := ""
		if it.Reorder.ReorderDate != nil {
			reorderDate = it.Reorder.ReorderDate.Format("2006-01-02")
		}
		values := []any{
			it.ProductID,
			it.SKU,
			it.Title,
			it.Quantity,
			it.Available,
			it.Incoming,
			it.SalesVelocity,
			it.DaysUntilStockout,
			it.Risk.String(),
			it.Reorder.ReorderPoint,
			it.Reorder.ReorderQuantity,
			reorderDate,
			shared.CentsToDecimal(it.PriceCents).StringFixed(2),
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return fmt.Errorf("inventory: export cell: %w", err)
		}
		if err := f.SetSheetRow(reorderSheet, cell, &values); err != nil {
			return fmt.Errorf("inventory: export row: %w", err)
		}
		row++
	}
	return f.Write(w)
}
