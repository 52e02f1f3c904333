package procurement

import (
	"fmt"
	"time"
)

const maxNumberAttempts = 5

// FormatPONumber renders PO-YYYYMM-NNNN.
func FormatPONumber(at time.Time, seq int) string {
	at = at.UTC()
	return fmt.Sprintf("PO-%04d%02d-%04d", at.Year(), int(at.Month()), seq)
}

// monthBounds returns [first instant of the month, first instant of the next).
func monthBounds(at time.Time) (time.Time, time.Time) {
	at = at.UTC()
	start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
