package mtxt

import (
	"strconv"
	"strings"
)

// formatFloat renders a value with at most 5 fractional digits, trims
// trailing zeros, and never emits scientific notation or a bare trailing
// dot — mirroring the reference engine's format_float32. v is first
// rounded through float32, since every float-valued field in the format
// (velocity, cc value, bpm, cents, curve, interval) is single-precision
// sourced and formatted the same way on emit (e.g. 123456789123.456
// becomes 123456790528.0).
func formatFloat(v float64) string {
	return trimTrailingZeros(strconv.FormatFloat(float64(float32(v)), 'f', 5, 64))
}

func trimTrailingZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s + ".0"
	}
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}
