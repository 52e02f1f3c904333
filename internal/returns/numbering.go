package returns

import (
	"fmt"
	"time"
)

const maxNumberAttempts = 5

// FormatReturnNumber renders RMA-YYYY-NNNNN.
func FormatReturnNumber(at time.Time, seq int) string {
	return fmt.Sprintf("RMA-%04d-%05d", at.UTC().Year(), seq)
}

func yearBounds(at time.Time) (time.Time, time.Time) {
	start := time.Date(at.UTC().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}
