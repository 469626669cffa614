package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/perfwatch/crux-api/internal/cleanup"
	"github.com/perfwatch/crux-api/internal/config"
	"github.com/perfwatch/crux-api/internal/crux"
	"github.com/perfwatch/crux-api/internal/handler"
	"github.com/perfwatch/crux-api/internal/storage"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Fatalf("Failed to initialize sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	if shutdown, err := setupTracing(ctx); err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	} else if shutdown != nil {
		defer shutdown(ctx)
	}

	var cache crux.RecordCache
	if cfg.CacheEnabled() {
		svc, err := storage.NewService(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to initialize record cache: %v", err)
		}
		cleanup.Start(svc, cfg.CacheTTL)
		cache = svc
	}

	client := crux.NewClient(cfg, cache)
	h := handler.NewHandler(client, cfg.AuthToken)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/crux-data", h.HandleSingleURL)
	mux.HandleFunc("POST /api/multi-url-crux-data", h.HandleMultiURL)
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware: Logger -> Recoverer -> Auth -> Mux. AuthMiddleware only
	// checks /api paths, so wrapping the whole mux is fine.
	finalHandler := h.AuthMiddleware(mux)
	finalHandler = recoverMiddleware(finalHandler)
	finalHandler = loggingMiddleware(finalHandler)
	finalHandler = otelhttp.NewHandler(finalHandler, "crux-api")

	log.Printf("Server starting on port %s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, finalHandler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// setupTracing installs an OTLP trace exporter when the standard
// OTEL_EXPORTER_OTLP_ENDPOINT variable is set, and is a no-op otherwise.
func setupTracing(ctx context.Context) (func(context.Context) error, error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		return nil, nil
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("crux-api"),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("Started %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
		log.Printf("Completed %s %s in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				sentry.CurrentHub().Recover(err)
				log.Printf("Panic: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
