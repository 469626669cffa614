package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/minio"

	"github.com/perfwatch/crux-api/internal/config"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping storage integration test in short mode")
	}

	ctx := context.Background()
	container, err := minio.Run(ctx, "minio/minio:RELEASE.2024-01-16T16-07-38Z")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	svc, err := NewService(ctx, config.S3{
		ServiceURL: "http://" + endpoint,
		AccessKey:  container.Username,
		SecretKey:  container.Password,
		BucketName: "crux-records-test",
	})
	require.NoError(t, err)
	return svc
}

func TestServiceRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	body := []byte(`{"url":"https://example.com","metrics":{}}`)
	require.NoError(t, svc.PutObject(ctx, "records/abc.json", body))

	got, lastModified, err := svc.GetObject(ctx, "records/abc.json")
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.WithinDuration(t, time.Now(), lastModified, time.Minute)

	require.NoError(t, svc.DeleteObject(ctx, "records/abc.json"))

	_, _, err = svc.GetObject(ctx, "records/abc.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceGetMissingObject(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.GetObject(context.Background(), "records/never-written.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceListObjects(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.PutObject(ctx, "records/a.json", []byte(`{}`)))
	require.NoError(t, svc.PutObject(ctx, "records/b.json", []byte(`{}`)))
	require.NoError(t, svc.PutObject(ctx, "other/c.json", []byte(`{}`)))

	infos, err := svc.ListObjects(ctx, "records/")
	require.NoError(t, err)
	require.Len(t, infos, 2)

	keys := []string{infos[0].Key, infos[1].Key}
	assert.Contains(t, keys, "records/a.json")
	assert.Contains(t, keys, "records/b.json")
}
