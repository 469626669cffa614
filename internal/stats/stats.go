package stats

import (
	"github.com/perfwatch/crux-api/internal/models"
)

var percentileNames = []string{"p75", "p95"}

// Aggregate computes count, sum, average, min and max per
// "<metric>_<percentile>" key across the given records. URLs missing a
// value for a key are excluded from that key's count. The reduction is
// commutative, so input order does not affect the result. An empty input
// yields empty statistics rather than an error.
func Aggregate(records []models.URLRecord) models.Statistics {
	stats := models.Statistics{
		Count:   len(records),
		URLs:    make([]string, 0, len(records)),
		Metrics: map[string]models.AggregatedMetric{},
	}

	for _, rec := range records {
		stats.URLs = append(stats.URLs, rec.URL)
		for name, data := range rec.Metrics {
			for _, pct := range percentileNames {
				value, ok := data.Percentiles.Value(pct)
				if !ok {
					continue
				}
				key := name + "_" + pct
				agg, seen := stats.Metrics[key]
				if !seen {
					agg = models.AggregatedMetric{Metric: key, Min: value, Max: value}
				}
				agg.Count++
				agg.Sum += value
				if value < agg.Min {
					agg.Min = value
				}
				if value > agg.Max {
					agg.Max = value
				}
				stats.Metrics[key] = agg
			}
		}
	}

	for key, agg := range stats.Metrics {
		agg.Average = agg.Sum / float64(agg.Count)
		stats.Metrics[key] = agg
	}

	return stats
}
