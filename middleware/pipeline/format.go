// Small helpers for consistent numeric formatting in headers.
// strconv.FormatFloat keeps low rates like 0.2 out of scientific notation.

package pipeline

import (
	"math"
	"strconv"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
