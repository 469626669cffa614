package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfwatch/crux-api/internal/models"
)

const lcpKey = "largest_contentful_paint_p75"

func urls(records []models.URLRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.URL
	}
	return out
}

func TestFilterByThreshold(t *testing.T) {
	records := []models.URLRecord{
		record("https://a.example", models.MetricLCP, 1000),
		record("https://b.example", models.MetricLCP, 2500),
		record("https://c.example", models.MetricLCP, 4000),
	}

	filtered := FilterByThreshold(records, lcpKey, 2500)

	// >= keeps the boundary value.
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, urls(filtered))
}

func TestFilterByThresholdIdempotent(t *testing.T) {
	records := []models.URLRecord{
		record("https://a.example", models.MetricLCP, 1000),
		record("https://b.example", models.MetricLCP, 3000),
	}

	once := FilterByThreshold(records, lcpKey, 2000)
	twice := FilterByThreshold(once, lcpKey, 2000)

	assert.Equal(t, once, twice)
}

func TestFilterByThresholdDropsMissingValues(t *testing.T) {
	records := []models.URLRecord{
		record("https://a.example", models.MetricFCP, 9000),
		record("https://b.example", models.MetricLCP, 3000),
	}

	filtered := FilterByThreshold(records, lcpKey, 1000)

	assert.Equal(t, []string{"https://b.example"}, urls(filtered))
}

func TestFilterByThresholdEmptyResult(t *testing.T) {
	records := []models.URLRecord{
		record("https://a.example", models.MetricLCP, 1000),
	}

	filtered := FilterByThreshold(records, lcpKey, 99999)

	require.NotNil(t, filtered)
	assert.Empty(t, filtered)
}

func TestSortRecordsByMetric(t *testing.T) {
	records := []models.URLRecord{
		record("https://b.example", models.MetricLCP, 3000),
		record("https://a.example", models.MetricLCP, 1000),
		record("https://c.example", models.MetricLCP, 2000),
	}

	asc := SortRecords(records, lcpKey, false)
	assert.Equal(t, []string{"https://a.example", "https://c.example", "https://b.example"}, urls(asc))

	desc := SortRecords(records, lcpKey, true)
	assert.Equal(t, []string{"https://b.example", "https://c.example", "https://a.example"}, urls(desc))

	// Input slice untouched.
	assert.Equal(t, "https://b.example", records[0].URL)
}

func TestSortRecordsStable(t *testing.T) {
	records := []models.URLRecord{
		record("https://first.example", models.MetricLCP, 2000),
		record("https://second.example", models.MetricLCP, 2000),
		record("https://third.example", models.MetricLCP, 2000),
	}

	sorted := SortRecords(records, lcpKey, false)

	assert.Equal(t, []string{"https://first.example", "https://second.example", "https://third.example"}, urls(sorted))
}

func TestSortRecordsMissingValuesLast(t *testing.T) {
	records := []models.URLRecord{
		record("https://nodata.example", models.MetricFCP, 500),
		record("https://b.example", models.MetricLCP, 3000),
		record("https://a.example", models.MetricLCP, 1000),
	}

	asc := SortRecords(records, lcpKey, false)
	assert.Equal(t, []string{"https://a.example", "https://b.example", "https://nodata.example"}, urls(asc))

	desc := SortRecords(records, lcpKey, true)
	assert.Equal(t, []string{"https://b.example", "https://a.example", "https://nodata.example"}, urls(desc))
}

func TestSortRecordsByURL(t *testing.T) {
	records := []models.URLRecord{
		record("https://c.example", models.MetricLCP, 1000),
		record("https://a.example", models.MetricLCP, 2000),
		record("https://b.example", models.MetricLCP, 3000),
	}

	sorted := SortRecords(records, "url", false)

	assert.Equal(t, []string{"https://a.example", "https://b.example", "https://c.example"}, urls(sorted))
}
