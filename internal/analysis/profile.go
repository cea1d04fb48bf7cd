package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KaramelBytes/walletcase/internal/dataset"
)

const (
	profileSampleValues = 5
	profileTopValues    = 3
	// Columns with more distinct values than this are not frequency-ranked.
	categoricalMaxUnique = 20
	summarySampleRows    = 3
)

// NoDataSummary is the summary returned for an empty dataset.
const NoDataSummary = "No data available"

// NumericSummary holds aggregates for a column whose first non-empty value is numeric.
type NumericSummary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// ColumnProfile describes one column of the dataset.
type ColumnProfile struct {
	Name        string          `json:"name"`
	UniqueCount int             `json:"uniqueCount"`
	Samples     []string        `json:"samples"`
	Numeric     *NumericSummary `json:"numeric,omitempty"`
	TopValues   []ValueCount    `json:"topValues,omitempty"`
}

// ProfileColumns builds a profile per column in header order.
func ProfileColumns(ds *dataset.Dataset) []ColumnProfile {
	if ds.Len() == 0 {
		return nil
	}
	out := make([]ColumnProfile, 0, len(ds.Header))
	for _, col := range ds.Header {
		out = append(out, profileColumn(col, ds.Column(col)))
	}
	return out
}

func profileColumn(name string, values []string) ColumnProfile {
	unique := uniqueInOrder(values)
	p := ColumnProfile{
		Name:        name,
		UniqueCount: len(unique),
		Samples:     append([]string{}, unique[:min(len(unique), profileSampleValues)]...),
	}
	if first := firstNonEmpty(values); first != "" && isNumber(first) {
		if nums := parseFloats(values); len(nums) > 0 {
			ns := &NumericSummary{Count: len(nums), Min: nums[0], Max: nums[0]}
			for _, f := range nums {
				ns.Min = min(ns.Min, f)
				ns.Max = max(ns.Max, f)
			}
			_, ns.Average = sumAndMean(nums)
			p.Numeric = ns
		}
	}
	if len(unique) > 0 && len(unique) <= categoricalMaxUnique {
		p.TopValues = topN(frequency(values), profileTopValues)
	}
	return p
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Summary renders the human-readable dataset description handed to the
// use-case prompt.
func Summary(ds *dataset.Dataset, profiles []ColumnProfile) string {
	if ds.Len() == 0 {
		return NoDataSummary
	}
	var b strings.Builder
	b.WriteString("CSV Data Analysis:\n")
	fmt.Fprintf(&b, "Total rows: %d\n", ds.Len())
	fmt.Fprintf(&b, "Columns: %s\n\n", strings.Join(ds.Header, ", "))

	for _, p := range profiles {
		fmt.Fprintf(&b, "Column: %s\n", p.Name)
		fmt.Fprintf(&b, "  - Unique values: %d\n", p.UniqueCount)
		more := ""
		if p.UniqueCount > len(p.Samples) {
			more = "..."
		}
		fmt.Fprintf(&b, "  - Sample values: %s%s\n", strings.Join(p.Samples, ", "), more)
		if p.Numeric != nil {
			fmt.Fprintf(&b, "  - Numeric analysis: Avg=%.2f, Min=%s, Max=%s\n",
				p.Numeric.Average, formatNumber(p.Numeric.Min), formatNumber(p.Numeric.Max))
		}
		if len(p.TopValues) > 0 {
			parts := make([]string, len(p.TopValues))
			for i, vc := range p.TopValues {
				parts[i] = fmt.Sprintf("%s(%d)", vc.Value, vc.Count)
			}
			fmt.Fprintf(&b, "  - Top values: %s\n", strings.Join(parts, ", "))
		}
		b.WriteString("\n")
	}

	roles := ResolveRoles(ds.Header)
	b.WriteString("Pattern Analysis:\n")
	if roles.Has(RoleAmount) && roles.Has(RoleMerchant) {
		b.WriteString("- Transaction pattern detected: Amount + Merchant data available\n")
	}
	if roles.Has(RoleCategory) {
		b.WriteString("- Categorization pattern detected: Transaction categories available\n")
	}
	if roles.Has(RoleLocation) {
		b.WriteString("- Geographic pattern detected: Location data available\n")
	}
	if roles.Has(RoleUser) {
		b.WriteString("- User pattern detected: Individual user tracking available\n")
	}
	if roles.Has(RoleDate) {
		b.WriteString("- Temporal pattern detected: Time-based analysis possible\n")
	}

	fmt.Fprintf(&b, "\nSample Data (first %d rows):\n", summarySampleRows)
	for i, row := range ds.Rows[:min(ds.Len(), summarySampleRows)] {
		raw, err := json.Marshal(row)
		if err != nil {
			raw = []byte(strings.Join(row.Values(), ", "))
		}
		fmt.Fprintf(&b, "Row %d: %s\n", i+1, raw)
	}
	return b.String()
}
