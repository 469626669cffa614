package insights

import (
	"fmt"
	"strconv"

	"github.com/perfwatch/crux-api/internal/models"
)

// Band is a Core Web Vitals severity classification.
type Band string

const (
	BandGood             Band = "good"
	BandNeedsImprovement Band = "needs-improvement"
	BandPoor             Band = "poor"
)

// threshold holds the standard Core Web Vitals bounds for one metric:
// good when value <= Good, poor when value > Poor.
type threshold struct {
	Good float64
	Poor float64
	Unit string
}

var thresholds = map[string]threshold{
	models.MetricLCP:  {Good: 2500, Poor: 4000, Unit: "ms"},
	models.MetricFCP:  {Good: 1800, Poor: 3000, Unit: "ms"},
	models.MetricCLS:  {Good: 0.1, Poor: 0.25, Unit: ""},
	models.MetricINP:  {Good: 200, Poor: 500, Unit: "ms"},
	models.MetricTTFB: {Good: 800, Poor: 1800, Unit: "ms"},
}

// Classify maps a metric value onto its severity band. ok is false for
// metrics without a defined threshold.
func Classify(metric string, value float64) (Band, bool) {
	t, ok := thresholds[metric]
	if !ok {
		return "", false
	}
	switch {
	case value <= t.Good:
		return BandGood, true
	case value > t.Poor:
		return BandPoor, true
	default:
		return BandNeedsImprovement, true
	}
}

// ForRecord produces one insight per classifiable metric of the record,
// based on the p75 value.
func ForRecord(rec models.URLRecord) []models.Insight {
	var out []models.Insight
	for _, metric := range models.DefaultMetrics {
		data, ok := rec.Metrics[metric]
		if !ok {
			continue
		}
		value, ok := data.Percentiles.Value("p75")
		if !ok {
			continue
		}
		band, ok := Classify(metric, value)
		if !ok {
			continue
		}
		out = append(out, models.Insight{
			URL:     rec.URL,
			Metric:  metric,
			Band:    string(band),
			Value:   value,
			Message: message(metric, band, value),
		})
	}
	return out
}

// ForRecords produces per-URL insights across a batch. When every
// classified metric is in the good band, a batch-level note is appended.
func ForRecords(records []models.URLRecord) []models.Insight {
	var out []models.Insight
	allGood := true
	for _, rec := range records {
		recInsights := ForRecord(rec)
		for _, ins := range recInsights {
			if ins.Band != string(BandGood) {
				allGood = false
			}
		}
		out = append(out, recInsights...)
	}
	if len(out) > 0 && allGood {
		out = append(out, models.Insight{
			Message: "All URLs meet the Core Web Vitals thresholds.",
		})
	}
	return out
}

func message(metric string, band Band, value float64) string {
	v := formatValue(metric, value)
	if band == BandGood {
		return fmt.Sprintf("%s is within the good range (p75: %s).", displayName(metric), v)
	}
	switch metric {
	case models.MetricLCP:
		return fmt.Sprintf("Optimize images and server responses to improve LCP (p75: %s).", v)
	case models.MetricFCP:
		return fmt.Sprintf("Consider lazy-loading and code splitting to lower FCP (p75: %s).", v)
	case models.MetricCLS:
		return fmt.Sprintf("Reserve space for dynamic content to reduce CLS (p75: %s).", v)
	case models.MetricINP:
		return fmt.Sprintf("Break up long tasks and trim input handlers to improve INP (p75: %s).", v)
	case models.MetricTTFB:
		return fmt.Sprintf("Speed up server processing or add a CDN to reduce TTFB (p75: %s).", v)
	}
	return fmt.Sprintf("%s needs attention (p75: %s).", displayName(metric), v)
}

func displayName(metric string) string {
	switch metric {
	case models.MetricLCP:
		return "Largest Contentful Paint"
	case models.MetricFCP:
		return "First Contentful Paint"
	case models.MetricCLS:
		return "Cumulative Layout Shift"
	case models.MetricINP:
		return "Interaction to Next Paint"
	case models.MetricTTFB:
		return "Time to First Byte"
	}
	return metric
}

func formatValue(metric string, value float64) string {
	t := thresholds[metric]
	if t.Unit == "ms" {
		return strconv.FormatFloat(value, 'f', 0, 64) + " ms"
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
