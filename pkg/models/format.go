package models

import "strconv"

// formatFloat renders a float with enough precision for human-legible
// gating reasons without the noise of Go's default %v formatting.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
