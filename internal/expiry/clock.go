// Package expiry renders the human-readable time-to-expiry label for a
// position.
package expiry

import (
	"fmt"
	"math"
	"time"

	"github.com/marginview/marginview/internal/domain"
)

// Label returns the "Expires in N Unit[s]" string for the position at the
// given time. Closed positions produce no label (ok = false).
//
// The unit switch is exact: a remaining span of up to and including 24 hours
// reports in whole hours (so 24.0 hours is "24 Hours", never "1 Day");
// anything above reports in whole days. Both counts floor. A span already in
// the past yields a zero or negative count, which callers present as
// "expired" rather than failing.
func Label(now time.Time, p domain.Position) (string, bool) {
	if p.Closed() {
		return "", false
	}

	hours := p.ExpiresAt.Sub(now).Hours()

	var amount int64
	var unit string
	if hours <= 24 {
		unit = "Hour"
		amount = int64(math.Floor(hours))
	} else {
		unit = "Day"
		amount = int64(math.Floor(hours / 24))
	}

	plural := "s"
	if amount == 1 {
		plural = ""
	}

	return fmt.Sprintf("Expires in %d %s%s", amount, unit, plural), true
}
