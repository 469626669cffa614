package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/perfwatch/crux-api/internal/crux"
	"github.com/perfwatch/crux-api/internal/insights"
	"github.com/perfwatch/crux-api/internal/models"
	"github.com/perfwatch/crux-api/internal/stats"
)

// maxConcurrentFetches bounds the upstream fan-out per batch request.
const maxConcurrentFetches = 4

// RecordFetcher is the upstream client surface the handlers need.
type RecordFetcher interface {
	FetchRecord(ctx context.Context, url, formFactor string, metrics []string) (*models.URLRecord, error)
}

type Handler struct {
	crux      RecordFetcher
	authToken string
}

func NewHandler(client RecordFetcher, authToken string) *Handler {
	return &Handler{crux: client, authToken: authToken}
}

func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api") && h.authToken != "" {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") || authHeader[7:] != h.authToken {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.HealthResponse{Status: "ok"})
}

// HandleSingleURL serves POST /api/crux-data: the CrUX record for one URL
// plus its insights.
func (h *Handler) HandleSingleURL(w http.ResponseWriter, r *http.Request) {
	var req models.SingleURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, "Invalid request body", nil, http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		renderError(w, "Invalid input", strPtr(err.Error()), http.StatusBadRequest)
		return
	}

	rec, err := h.crux.FetchRecord(r.Context(), req.URL, req.FormFactor, models.DefaultMetrics)
	if err != nil {
		renderFetchError(w, req.URL, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.SingleURLResponse{
		URLRecord: *rec,
		Insights:  insights.ForRecord(*rec),
	})
}

// HandleMultiURL serves POST /api/multi-url-crux-data: fetches every URL,
// aggregates statistics over the successful records, applies the
// requested filter and sort, and generates insights. A failing URL is
// reported in the errors list without failing the batch.
func (h *Handler) HandleMultiURL(w http.ResponseWriter, r *http.Request) {
	var req models.MultiURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, "Invalid request body", nil, http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		renderError(w, "Invalid input", strPtr(err.Error()), http.StatusBadRequest)
		return
	}

	metrics := req.Metrics
	if len(metrics) == 0 {
		metrics = models.DefaultMetrics
	}

	// One independent fetch per URL, joined before aggregation. Results
	// are indexed by input position so the response preserves request
	// order regardless of completion order.
	recs := make([]*models.URLRecord, len(req.URLs))
	fetchErrs := make([]error, len(req.URLs))

	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(maxConcurrentFetches)
	for i, u := range req.URLs {
		g.Go(func() error {
			recs[i], fetchErrs[i] = h.crux.FetchRecord(ctx, u, req.FormFactor, metrics)
			return nil
		})
	}
	g.Wait()

	urlData := make([]models.URLRecord, 0, len(req.URLs))
	var urlErrors []models.URLError
	for i, u := range req.URLs {
		if err := fetchErrs[i]; err != nil {
			log.Printf("Error fetching CrUX data for %s: %v", u, err)
			urlErrors = append(urlErrors, models.URLError{
				URL:    u,
				Error:  err.Error(),
				NoData: errors.Is(err, crux.ErrNoData),
			})
			continue
		}
		urlData = append(urlData, *recs[i])
	}

	// Statistics cover every successfully fetched record; filtering only
	// narrows the returned url_data and the insights below.
	var statistics *models.Statistics
	if len(urlData) > 0 {
		s := stats.Aggregate(urlData)
		statistics = &s
	}

	if req.FilterThreshold != nil {
		before := len(urlData)
		urlData = stats.FilterByThreshold(urlData, req.SortBy, *req.FilterThreshold)
		log.Printf("Filtered from %d to %d records with %s >= %v", before, len(urlData), req.SortBy, *req.FilterThreshold)
	}

	if req.SortBy != "" {
		urlData = stats.SortRecords(urlData, req.SortBy, req.SortOrder == "desc")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.MultiURLResponse{
		URLData:    urlData,
		Statistics: statistics,
		Insights:   insights.ForRecords(urlData),
		Errors:     urlErrors,
	})
}

// renderFetchError maps upstream client errors onto response codes:
// no data 404, upstream API errors 502, transport failures 503.
func renderFetchError(w http.ResponseWriter, url string, err error) {
	var respErr *crux.ResponseError
	var connErr *crux.ConnectionError
	switch {
	case errors.Is(err, crux.ErrNoData):
		renderError(w, "No CrUX data available", strPtr(url), http.StatusNotFound)
	case errors.Is(err, crux.ErrRateLimited):
		renderError(w, "API error", strPtr(err.Error()), http.StatusBadGateway)
	case errors.As(err, &respErr):
		renderError(w, "API error", strPtr(respErr.Error()), http.StatusBadGateway)
	case errors.As(err, &connErr):
		renderError(w, "Connection error", strPtr(connErr.Error()), http.StatusServiceUnavailable)
	default:
		log.Printf("Unexpected error fetching CrUX data for %s: %v", url, err)
		renderError(w, "Server error", nil, http.StatusInternalServerError)
	}
}

func renderError(w http.ResponseWriter, msg string, details *string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error:   msg,
		Details: details,
	})
}

func strPtr(v string) *string {
	return &v
}
