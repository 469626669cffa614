package stats

import (
	"sort"

	"github.com/perfwatch/crux-api/internal/models"
)

// FilterByThreshold keeps the records whose value for key is greater than
// or equal to threshold. Records without a value for key are dropped. An
// empty result is valid.
func FilterByThreshold(records []models.URLRecord, key string, threshold float64) []models.URLRecord {
	filtered := make([]models.URLRecord, 0, len(records))
	for _, rec := range records {
		if value, ok := rec.MetricValue(key); ok && value >= threshold {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// SortRecords returns a copy of records ordered by sortBy, which is
// either "url" or a "<metric>_<percentile>" key. The sort is stable, so
// equal keys keep their input order. Records missing the sort key are
// placed last regardless of direction.
func SortRecords(records []models.URLRecord, sortBy string, descending bool) []models.URLRecord {
	sorted := make([]models.URLRecord, len(records))
	copy(sorted, records)

	if sortBy == "url" {
		sort.SliceStable(sorted, func(i, j int) bool {
			if descending {
				return sorted[i].URL > sorted[j].URL
			}
			return sorted[i].URL < sorted[j].URL
		})
		return sorted
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		vi, oki := sorted[i].MetricValue(sortBy)
		vj, okj := sorted[j].MetricValue(sortBy)
		if oki != okj {
			return oki
		}
		if !oki {
			return false
		}
		if descending {
			return vi > vj
		}
		return vi < vj
	})
	return sorted
}
