package util

import (
	"fmt"
	"time"
)

// FormatDuration formats a duration as m:ss.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	m := total / 60
	s := total % 60
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatVU formats a VU reading with a sign and one decimal, padded to a
// fixed width so readouts do not jitter.
func FormatVU(vu float64) string {
	if vu > -0.05 && vu < 0.05 {
		vu = 0
	}
	return fmt.Sprintf("%+5.1f VU", vu)
}
