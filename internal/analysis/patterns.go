package analysis

import (
	"sort"

	"github.com/KaramelBytes/walletcase/internal/dataset"
)

// Thresholds used by the insight rules.
const (
	highValueShareInsight     = 20.0
	merchantShareInsight      = 30.0
	geographicShareInsight    = 40.0
	transactionsPerUserSignal = 3.0
)

// Insight texts, emitted in this order.
const (
	InsightHighValue  = "High-value transactions represent a significant portion of volume"
	InsightMerchant   = "Merchant concentration is high - opportunity for diversification"
	InsightGeographic = "Geographic concentration suggests regional expansion opportunities"
	InsightEngagement = "Users show good engagement with multiple transactions"
)

const (
	merchantTopLimit   = 10
	categoryTopLimit   = 5
	locationTopLimit   = 5
	activeUserLimit    = 10
	topUserLimit       = 5
	highValueMultiples = 2.0
)

// TransactionPatterns aggregates the amount column.
type TransactionPatterns struct {
	Column              string  `json:"column"`
	TotalTransactions   int     `json:"totalTransactions"`
	TotalVolume         float64 `json:"totalVolume"`
	AverageAmount       float64 `json:"averageAmount"`
	MinAmount           float64 `json:"minAmount"`
	MaxAmount           float64 `json:"maxAmount"`
	MedianAmount        float64 `json:"medianAmount"`
	HighValueThreshold  float64 `json:"highValueThreshold"`
	HighValueCount      int     `json:"highValueCount"`
	HighValuePercentage float64 `json:"highValuePercentage"`
}

// MerchantPatterns aggregates the merchant column.
type MerchantPatterns struct {
	Column                string       `json:"column"`
	UniqueMerchants       int          `json:"uniqueMerchants"`
	TopMerchants          []ValueCount `json:"topMerchants"`
	MerchantConcentration float64      `json:"merchantConcentration"`
}

// CategoryPatterns aggregates the category column.
type CategoryPatterns struct {
	Column           string       `json:"column"`
	UniqueCategories int          `json:"uniqueCategories"`
	TopCategories    []ValueCount `json:"topCategories"`
}

// GeographicPatterns aggregates the location column.
type GeographicPatterns struct {
	Column                  string       `json:"column"`
	UniqueLocations         int          `json:"uniqueLocations"`
	TopLocations            []ValueCount `json:"topLocations"`
	GeographicConcentration float64      `json:"geographicConcentration"`
}

// UserPatterns aggregates the user column.
type UserPatterns struct {
	Column                     string       `json:"column"`
	UniqueUsers                int          `json:"uniqueUsers"`
	ActiveUsers                []ValueCount `json:"activeUsers"`
	AverageTransactionsPerUser float64      `json:"averageTransactionsPerUser"`
	TopUsers                   []ValueCount `json:"topUsers"`
}

// PatternReport is the structured analyzer output. A nil aggregate means the
// role did not apply to the dataset; it is never a zero measurement.
type PatternReport struct {
	Columns     Roles                `json:"columns"`
	Transaction *TransactionPatterns `json:"transactionPatterns,omitempty"`
	Merchant    *MerchantPatterns    `json:"merchantPatterns,omitempty"`
	Category    *CategoryPatterns    `json:"categoryPatterns,omitempty"`
	Geographic  *GeographicPatterns  `json:"geographicPatterns,omitempty"`
	User        *UserPatterns        `json:"userPatterns,omitempty"`
	Insights    []string             `json:"insights"`
}

// MerchantConcentration returns the merchant top-1 share, 0 when absent.
func (p PatternReport) MerchantConcentration() float64 {
	if p.Merchant == nil {
		return 0
	}
	return p.Merchant.MerchantConcentration
}

// GeographicConcentration returns the location top-1 share, 0 when absent.
func (p PatternReport) GeographicConcentration() float64 {
	if p.Geographic == nil {
		return 0
	}
	return p.Geographic.GeographicConcentration
}

func emptyReport() PatternReport {
	return PatternReport{Columns: Roles{}, Insights: []string{}}
}

// DetectPatterns resolves column roles and computes every role aggregate.
func DetectPatterns(ds *dataset.Dataset) PatternReport {
	if ds.Len() == 0 {
		return emptyReport()
	}
	roles := ResolveRoles(ds.Header)
	rep := PatternReport{Columns: roles}
	if col, ok := roles.Column(RoleAmount); ok {
		rep.Transaction = transactionPatterns(col, ds.Column(col))
	}
	if col, ok := roles.Column(RoleMerchant); ok {
		rep.Merchant = merchantPatterns(col, ds.Column(col))
	}
	if col, ok := roles.Column(RoleCategory); ok {
		rep.Category = categoryPatterns(col, ds.Column(col))
	}
	if col, ok := roles.Column(RoleLocation); ok {
		rep.Geographic = geographicPatterns(col, ds.Column(col))
	}
	if col, ok := roles.Column(RoleUser); ok {
		rep.User = userPatterns(col, ds.Column(col))
	}
	rep.Insights = insights(rep)
	return rep
}

func transactionPatterns(col string, values []string) *TransactionPatterns {
	amounts := parseFloats(values)
	n := len(amounts)
	if n == 0 {
		return nil
	}
	sorted := append([]float64(nil), amounts...)
	sort.Float64s(sorted)
	sum, mean := sumAndMean(amounts)
	threshold := clampFinite(mean * highValueMultiples)
	high := 0
	for _, a := range amounts {
		if a > threshold {
			high++
		}
	}
	return &TransactionPatterns{
		Column:              col,
		TotalTransactions:   n,
		TotalVolume:         sum,
		AverageAmount:       mean,
		MinAmount:           sorted[0],
		MaxAmount:           sorted[n-1],
		MedianAmount:        sorted[n/2],
		HighValueThreshold:  threshold,
		HighValueCount:      high,
		HighValuePercentage: percent(high, n),
	}
}

func merchantPatterns(col string, values []string) *MerchantPatterns {
	merchants := nonEmpty(values)
	freq := frequency(merchants)
	return &MerchantPatterns{
		Column:                col,
		UniqueMerchants:       len(freq),
		TopMerchants:          topN(freq, merchantTopLimit),
		MerchantConcentration: topShare(freq, len(merchants)),
	}
}

func categoryPatterns(col string, values []string) *CategoryPatterns {
	freq := frequency(nonEmpty(values))
	return &CategoryPatterns{
		Column:           col,
		UniqueCategories: len(freq),
		TopCategories:    topN(freq, categoryTopLimit),
	}
}

func geographicPatterns(col string, values []string) *GeographicPatterns {
	locations := nonEmpty(values)
	freq := frequency(locations)
	return &GeographicPatterns{
		Column:                  col,
		UniqueLocations:         len(freq),
		TopLocations:            topN(freq, locationTopLimit),
		GeographicConcentration: topShare(freq, len(locations)),
	}
}

func userPatterns(col string, values []string) *UserPatterns {
	users := nonEmpty(values)
	freq := frequency(users)
	active := []ValueCount{}
	for _, vc := range freq {
		if vc.Count > 1 {
			active = append(active, vc)
		}
	}
	active = topN(active, activeUserLimit)
	avg := 0.0
	if len(freq) > 0 {
		avg = float64(len(users)) / float64(len(freq))
	}
	return &UserPatterns{
		Column:                     col,
		UniqueUsers:                len(freq),
		ActiveUsers:                active,
		AverageTransactionsPerUser: avg,
		TopUsers:                   topN(active, topUserLimit),
	}
}

// topShare is the top-1 count as a percentage of total.
func topShare(freq []ValueCount, total int) float64 {
	if len(freq) == 0 {
		return 0
	}
	return percent(freq[0].Count, total)
}

// insights applies the rules in fixed order. Nothing is emitted unless the
// transaction aggregate exists.
func insights(p PatternReport) []string {
	out := []string{}
	if p.Transaction == nil || p.Transaction.TotalTransactions == 0 {
		return out
	}
	if p.Transaction.HighValuePercentage > highValueShareInsight {
		out = append(out, InsightHighValue)
	}
	if p.Merchant != nil && p.Merchant.MerchantConcentration > merchantShareInsight {
		out = append(out, InsightMerchant)
	}
	if p.Geographic != nil && p.Geographic.GeographicConcentration > geographicShareInsight {
		out = append(out, InsightGeographic)
	}
	if p.User != nil && p.User.AverageTransactionsPerUser > transactionsPerUserSignal {
		out = append(out, InsightEngagement)
	}
	return out
}
