package analysis

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// leadingFloat matches the longest numeric prefix a lenient float reader accepts.
var leadingFloat = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// parseLeadingFloat reads the numeric prefix of s after leading whitespace,
// so "12.5 NPR" yields 12.5. Non-finite results are rejected.
func parseLeadingFloat(s string) (float64, bool) {
	m := leadingFloat.FindString(strings.TrimLeft(s, " \t\r\n\v\f"))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// isNumber reports whether the whole trimmed string is a number.
func isNumber(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" {
		return false
	}
	f, err := strconv.ParseFloat(t, 64)
	return err == nil && !math.IsNaN(f)
}

func parseFloats(values []string) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := parseLeadingFloat(v); ok {
			out = append(out, f)
		}
	}
	return out
}

// formatNumber prints f in shortest round-trip form, avoiding exponents for
// ordinary magnitudes. Exponents carry no leading zero ("1e-7", "1e+21").
func formatNumber(f float64) string {
	a := math.Abs(f)
	if a != 0 && (a < 1e-6 || a >= 1e21) {
		s := strconv.FormatFloat(f, 'g', -1, 64)
		s = strings.Replace(s, "e-0", "e-", 1)
		return strings.Replace(s, "e+0", "e+", 1)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// clampFinite maps ±Inf onto the largest finite float of the same sign.
func clampFinite(f float64) float64 {
	switch {
	case math.IsInf(f, 1):
		return math.MaxFloat64
	case math.IsInf(f, -1):
		return -math.MaxFloat64
	}
	return f
}

// sumAndMean totals values and averages them. When the plain total
// overflows, the mean is taken incrementally and the total is clamped to the
// largest finite float.
func sumAndMean(values []float64) (sum, mean float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		sum += v
	}
	if !math.IsInf(sum, 0) && !math.IsNaN(sum) {
		return sum, sum / float64(len(values))
	}
	for i, v := range values {
		k := float64(i + 1)
		mean += v/k - mean/k
	}
	return clampFinite(mean * float64(len(values))), mean
}

// percent returns part/whole*100, or 0 when whole is 0.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
