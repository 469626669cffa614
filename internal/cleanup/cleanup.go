package cleanup

import (
	"context"
	"log"
	"time"

	"github.com/perfwatch/crux-api/internal/crux"
	"github.com/perfwatch/crux-api/internal/storage"
)

const sweepInterval = 1 * time.Hour

// Store is the slice of the storage service the sweeper uses.
type Store interface {
	ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	DeleteObject(ctx context.Context, key string) error
}

// Start sweeps expired cached records immediately and then once per
// interval, for as long as the process runs.
func Start(store Store, ttl time.Duration) {
	log.Printf("Record cache cleanup scheduled every %v (ttl %v)", sweepInterval, ttl)
	Sweep(context.Background(), store, ttl)

	ticker := time.NewTicker(sweepInterval)
	go func() {
		for range ticker.C {
			Sweep(context.Background(), store, ttl)
		}
	}()
}

// Sweep deletes every cached record older than ttl and returns the
// number of objects removed.
func Sweep(ctx context.Context, store Store, ttl time.Duration) int {
	objects, err := store.ListObjects(ctx, crux.RecordCachePrefix)
	if err != nil {
		log.Printf("Failed to list cached records for cleanup: %v", err)
		return 0
	}

	now := time.Now()
	removed := 0
	for _, obj := range objects {
		if now.Sub(obj.LastModified) <= ttl {
			continue
		}
		if err := store.DeleteObject(ctx, obj.Key); err != nil {
			log.Printf("Failed to delete expired record %s: %v", obj.Key, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Printf("Removed %d expired cached records", removed)
	}
	return removed
}
