// Package utils provides shared formatting and logging helpers.
package utils

import (
	"fmt"
	"math"
)

// FormatTimestamp renders seconds as MM:SS, truncating fractions. Minutes are not wrapped
// into hours, so 3725s is "62:05". Negative input is treated as zero.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// FormatSeconds renders seconds with two decimals and an "s" suffix, e.g. "12.50s".
func FormatSeconds(seconds float64) string {
	return fmt.Sprintf("%.2fs", seconds)
}
