package chart

import (
	"math"
	"sort"

	"crossfeed/pkg/utils"
)

// rollingBands computes, for every index i in spreads, the P(upper) and
// P(lower) percentile over the trailing window of size percentileWindow
// ending at i (partial windows are allowed at the start). Non-finite
// values and prior nulls are excluded from the sorted slice before the
// ceiling-rule selection; a band is nil wherever the trailing slice has
// no finite samples.
func rollingBands(spreads []*float64, percentileWindow int, upper, lower float64) (upperBand, lowerBand []*float64) {
	n := len(spreads)
	upperBand = make([]*float64, n)
	lowerBand = make([]*float64, n)

	for i := 0; i < n; i++ {
		start := i - percentileWindow + 1
		if start < 0 {
			start = 0
		}

		finite := make([]float64, 0, i-start+1)
		for j := start; j <= i; j++ {
			if spreads[j] == nil {
				continue
			}
			v := *spreads[j]
			if math.IsInf(v, 0) || math.IsNaN(v) {
				continue
			}
			finite = append(finite, v)
		}
		if len(finite) == 0 {
			continue
		}
		sort.Float64s(finite)

		if v, ok := utils.PercentileByCeilingRule(finite, upper); ok {
			vv := v
			upperBand[i] = &vv
		}
		if v, ok := utils.PercentileByCeilingRule(finite, lower); ok {
			vv := v
			lowerBand[i] = &vv
		}
	}

	return upperBand, lowerBand
}

// spreadSeries computes spread[i] = (bidA[i]/bidB[i] - 1) * 100, nil
// where bidB[i] == 0.
func spreadSeries(rows []joinedRow) []*float64 {
	out := make([]*float64, len(rows))
	for i, r := range rows {
		if r.bidB == 0 {
			continue
		}
		v := (r.bidA/r.bidB - 1) * 100
		if math.IsInf(v, 0) || math.IsNaN(v) {
			continue
		}
		out[i] = &v
	}
	return out
}
