package analysis

import "sort"

// ValueCount is one entry of a frequency table.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// frequency counts values and returns them by descending count. Ties keep
// first-occurrence order.
func frequency(values []string) []ValueCount {
	pos := make(map[string]int, len(values))
	var out []ValueCount
	for _, v := range values {
		if i, ok := pos[v]; ok {
			out[i].Count++
			continue
		}
		pos[v] = len(out)
		out = append(out, ValueCount{Value: v, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func topN(freq []ValueCount, n int) []ValueCount {
	if len(freq) > n {
		freq = freq[:n]
	}
	return append([]ValueCount{}, freq...)
}

// nonEmpty drops empty cells.
func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// uniqueInOrder returns distinct values in first-seen order.
func uniqueInOrder(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
