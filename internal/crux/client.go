package crux

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/perfwatch/crux-api/internal/config"
	"github.com/perfwatch/crux-api/internal/models"
	"github.com/perfwatch/crux-api/internal/storage"
)

// RecordCachePrefix is the key prefix under which fetched records are
// cached. The cleanup sweeper removes expired objects below it.
const RecordCachePrefix = "records/"

// RecordCache is the slice of the storage service the client uses to
// cache fetched records.
type RecordCache interface {
	GetObject(ctx context.Context, key string) ([]byte, time.Time, error)
	PutObject(ctx context.Context, key string, body []byte) error
}

// Client fetches CrUX records from the records:queryRecord endpoint.
// When cache is non-nil, records are served from it while fresh and
// written through after each successful fetch.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	cache      RecordCache
	cacheTTL   time.Duration
}

func NewClient(cfg *config.Config, cache RecordCache) *Client {
	return &Client{
		endpoint: cfg.CruxEndpoint,
		apiKey:   cfg.GoogleAPIKey,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.CruxTimeout,
		},
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
	}
}

type queryRecordRequest struct {
	URL        string   `json:"url"`
	FormFactor string   `json:"formFactor"`
	Metrics    []string `json:"metrics"`
}

type queryRecordResponse struct {
	Record struct {
		Key struct {
			URL        string `json:"url"`
			FormFactor string `json:"formFactor"`
		} `json:"key"`
		Metrics          map[string]models.MetricData `json:"metrics"`
		CollectionPeriod *models.CollectionPeriod     `json:"collectionPeriod"`
	} `json:"record"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// FetchRecord retrieves the CrUX record for one URL. Outcomes are
// distinguishable: a populated record, ErrNoData, ErrRateLimited, a
// *ResponseError for other upstream failures, or a *ConnectionError for
// transport failures.
func (c *Client) FetchRecord(ctx context.Context, url, formFactor string, metrics []string) (*models.URLRecord, error) {
	cacheKey := recordCacheKey(url, formFactor, metrics)
	if rec := c.cachedRecord(ctx, cacheKey); rec != nil {
		return rec, nil
	}

	payload, err := json.Marshal(queryRecordRequest{
		URL:        url,
		FormFactor: formFactor,
		Metrics:    metrics,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?key="+c.apiKey, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoData
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		var body errorResponse
		msg := "Unknown error"
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error.Message != "" {
			msg = body.Error.Message
		}
		return nil, &ResponseError{StatusCode: resp.StatusCode, Message: msg}
	}

	var body queryRecordResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &ResponseError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response body: %v", err)}
	}

	rec := &models.URLRecord{
		URL:              body.Record.Key.URL,
		FormFactor:       body.Record.Key.FormFactor,
		Metrics:          body.Record.Metrics,
		CollectionPeriod: body.Record.CollectionPeriod,
	}
	if rec.URL == "" {
		rec.URL = url
	}
	if rec.Metrics == nil {
		rec.Metrics = map[string]models.MetricData{}
	}

	c.storeRecord(ctx, cacheKey, rec)
	return rec, nil
}

func (c *Client) cachedRecord(ctx context.Context, key string) *models.URLRecord {
	if c.cache == nil {
		return nil
	}
	body, lastModified, err := c.cache.GetObject(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("Cache lookup failed for %s: %v", key, err)
		}
		return nil
	}
	if time.Since(lastModified) > c.cacheTTL {
		return nil
	}
	var rec models.URLRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		log.Printf("Discarding unreadable cache entry %s: %v", key, err)
		return nil
	}
	return &rec
}

func (c *Client) storeRecord(ctx context.Context, key string, rec *models.URLRecord) {
	if c.cache == nil {
		return
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.cache.PutObject(ctx, key, body); err != nil {
		log.Printf("Failed to cache record %s: %v", key, err)
	}
}

func recordCacheKey(url, formFactor string, metrics []string) string {
	sum := sha256.Sum256([]byte(url + "|" + formFactor + "|" + strings.Join(metrics, ",")))
	return RecordCachePrefix + hex.EncodeToString(sum[:]) + ".json"
}
