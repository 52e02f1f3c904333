package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/commerceops/opsdash/internal/analytics"
	"github.com/commerceops/opsdash/internal/shared"
)

var performanceHeader = []string{
	"Product ID", "SKU", "Title", "Units", "Previous Units",
	"Revenue", "Previous Revenue", "Growth %", "Units Share %", "Category",
}

// WritePerformanceCSV serialises a product performance report, one row per
// product in report order.
func WritePerformanceCSV(w io.Writer, report analytics.Report) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(performanceHeader); err != nil {
		return err
	}
	for _, p := range report.Products {
		if err := writer.Write([]string{
			strconv.FormatInt(p.ProductID, 10),
			p.SKU,
			p.Title,
			strconv.Itoa(p.Units),
			strconv.Itoa(p.PreviousUnits),
			shared.CentsToDecimal(p.RevenueCents).StringFixed(2),
			shared.CentsToDecimal(p.PreviousRevenueCents).StringFixed(2),
			formatFloat(p.GrowthPct),
			formatFloat(p.UnitsShare * 100),
			string(p.Category),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
