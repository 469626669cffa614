package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Metric names as they appear in CrUX API requests and responses.
const (
	MetricLCP  = "largest_contentful_paint"
	MetricCLS  = "cumulative_layout_shift"
	MetricFCP  = "first_contentful_paint"
	MetricINP  = "interaction_to_next_paint"
	MetricTTFB = "experimental_time_to_first_byte"
)

// DefaultMetrics is the metric set requested from CrUX when the caller
// does not select specific metrics.
var DefaultMetrics = []string{
	MetricLCP,
	MetricCLS,
	MetricFCP,
	MetricINP,
	MetricTTFB,
}

const (
	FormFactorPhone   = "PHONE"
	FormFactorTablet  = "TABLET"
	FormFactorDesktop = "DESKTOP"
)

// MaxBatchURLs caps the number of URLs accepted in one batch request.
const MaxBatchURLs = 10

func IsKnownMetric(name string) bool {
	for _, m := range DefaultMetrics {
		if m == name {
			return true
		}
	}
	return false
}

func IsKnownFormFactor(ff string) bool {
	switch ff {
	case FormFactorPhone, FormFactorTablet, FormFactorDesktop:
		return true
	}
	return false
}

// ValidateURL checks that raw is an absolute http(s) URL.
func ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must start with http:// or https://", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

// SplitSortKey parses keys of the form "<metric>_<percentile>", e.g.
// "largest_contentful_paint_p75". ok is false when the metric is unknown
// or the percentile is unsupported.
func SplitSortKey(key string) (metric, percentile string, ok bool) {
	i := strings.LastIndex(key, "_")
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	metric, percentile = key[:i], key[i+1:]
	if !IsKnownMetric(metric) {
		return "", "", false
	}
	if percentile != "p75" && percentile != "p95" {
		return "", "", false
	}
	return metric, percentile, true
}

// SingleURLRequest is the body of POST /api/crux-data.
type SingleURLRequest struct {
	URL        string `json:"url"`
	FormFactor string `json:"form_factor,omitempty"`
}

func (r *SingleURLRequest) Validate() error {
	if err := ValidateURL(r.URL); err != nil {
		return err
	}
	if r.FormFactor == "" {
		r.FormFactor = FormFactorPhone
	}
	if !IsKnownFormFactor(r.FormFactor) {
		return fmt.Errorf("unknown form factor %q", r.FormFactor)
	}
	return nil
}

// MultiURLRequest is the body of POST /api/multi-url-crux-data.
type MultiURLRequest struct {
	URLs            []string `json:"urls"`
	Metrics         []string `json:"metrics,omitempty"`
	FormFactor      string   `json:"form_factor,omitempty"`
	SortBy          string   `json:"sort_by,omitempty"`
	SortOrder       string   `json:"sort_order,omitempty"`
	FilterThreshold *float64 `json:"filter_threshold,omitempty"`
}

// Validate rejects malformed input before any upstream call is made and
// fills in defaults (form factor, sort order).
func (r *MultiURLRequest) Validate() error {
	if len(r.URLs) == 0 {
		return fmt.Errorf("urls must contain at least one URL")
	}
	if len(r.URLs) > MaxBatchURLs {
		return fmt.Errorf("urls must contain at most %d URLs", MaxBatchURLs)
	}
	for _, u := range r.URLs {
		if err := ValidateURL(u); err != nil {
			return err
		}
	}
	for _, m := range r.Metrics {
		if !IsKnownMetric(m) {
			return fmt.Errorf("unknown metric %q", m)
		}
	}
	if r.FormFactor == "" {
		r.FormFactor = FormFactorPhone
	}
	if !IsKnownFormFactor(r.FormFactor) {
		return fmt.Errorf("unknown form factor %q", r.FormFactor)
	}
	switch r.SortOrder {
	case "":
		r.SortOrder = "asc"
	case "asc", "desc":
	default:
		return fmt.Errorf("sort_order must be \"asc\" or \"desc\", got %q", r.SortOrder)
	}
	if r.SortBy != "" && r.SortBy != "url" {
		if _, _, ok := SplitSortKey(r.SortBy); !ok {
			return fmt.Errorf("unknown sort_by key %q", r.SortBy)
		}
	}
	if r.FilterThreshold != nil {
		if r.SortBy == "" || r.SortBy == "url" {
			return fmt.Errorf("filter_threshold requires sort_by to name a metric, e.g. %q", MetricLCP+"_p75")
		}
	}
	return nil
}

// FlexFloat decodes CrUX percentile values, which arrive as JSON numbers
// for CLS and as quoted strings for millisecond metrics.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		var err error
		s, err = strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("invalid metric value %s", data)
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid metric value %s", data)
	}
	*f = FlexFloat(v)
	return nil
}

func (f FlexFloat) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(f))
}

// HistogramBin is one density bucket of a metric distribution. The last
// bin of a CrUX histogram is open-ended, so End may be absent.
type HistogramBin struct {
	Start   FlexFloat  `json:"start"`
	End     *FlexFloat `json:"end,omitempty"`
	Density float64    `json:"density"`
}

type Percentiles struct {
	P75 *FlexFloat `json:"p75,omitempty"`
	P95 *FlexFloat `json:"p95,omitempty"`
}

// Value returns the named percentile when present.
func (p Percentiles) Value(name string) (float64, bool) {
	switch name {
	case "p75":
		if p.P75 != nil {
			return float64(*p.P75), true
		}
	case "p95":
		if p.P95 != nil {
			return float64(*p.P95), true
		}
	}
	return 0, false
}

// MetricData is the distribution and summary percentiles for one metric.
type MetricData struct {
	Histogram   []HistogramBin `json:"histogram,omitempty"`
	Percentiles Percentiles    `json:"percentiles"`
}

// Date matches the CrUX collectionPeriod date shape.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type CollectionPeriod struct {
	FirstDate Date `json:"firstDate"`
	LastDate  Date `json:"lastDate"`
}

// URLRecord is one URL's CrUX measurement set for one reporting period.
// Immutable once fetched.
type URLRecord struct {
	URL              string                `json:"url"`
	FormFactor       string                `json:"form_factor,omitempty"`
	Metrics          map[string]MetricData `json:"metrics"`
	CollectionPeriod *CollectionPeriod     `json:"collection_period,omitempty"`
}

// MetricValue resolves a "<metric>_<percentile>" key against the record.
func (r URLRecord) MetricValue(key string) (float64, bool) {
	metric, percentile, ok := SplitSortKey(key)
	if !ok {
		return 0, false
	}
	data, ok := r.Metrics[metric]
	if !ok {
		return 0, false
	}
	return data.Percentiles.Value(percentile)
}

// AggregatedMetric summarizes one metric/percentile key across a URL set.
// Count is the number of URLs that had a valid value for the key.
type AggregatedMetric struct {
	Metric  string  `json:"metric"`
	Count   int     `json:"count"`
	Sum     float64 `json:"sum"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Statistics groups the aggregates for one batch.
type Statistics struct {
	Count   int                         `json:"count"`
	URLs    []string                    `json:"urls"`
	Metrics map[string]AggregatedMetric `json:"metrics"`
}

// Insight is a generated recommendation for one (URL, metric) pair, or a
// batch-level note when URL and Metric are empty.
type Insight struct {
	URL     string  `json:"url,omitempty"`
	Metric  string  `json:"metric,omitempty"`
	Band    string  `json:"band,omitempty"`
	Value   float64 `json:"value,omitempty"`
	Message string  `json:"message"`
}

// URLError reports a per-URL failure inside an otherwise successful batch.
// NoData marks URLs absent from the CrUX dataset.
type URLError struct {
	URL    string `json:"url"`
	Error  string `json:"error"`
	NoData bool   `json:"no_data,omitempty"`
}

type ErrorResponse struct {
	Error   string  `json:"error"`
	Details *string `json:"details,omitempty"`
}

type SingleURLResponse struct {
	URLRecord
	Insights []Insight `json:"insights"`
}

type MultiURLResponse struct {
	URLData    []URLRecord `json:"url_data"`
	Statistics *Statistics `json:"statistics,omitempty"`
	Insights   []Insight   `json:"insights"`
	Errors     []URLError  `json:"errors,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
