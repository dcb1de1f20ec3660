package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/koustreak/empdb/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu        sync.Mutex
	buckets   map[string]bool
	objects   map[string][]byte
	types     map[string]string
	ensured   int
	bucketErr error
	putErr    error
}

func newMemStore() *memStore {
	return &memStore{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

func (m *memStore) EnsureBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensured++
	if m.bucketErr != nil {
		return m.bucketErr
	}
	m.buckets[bucket] = true
	return nil
}

func (m *memStore) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return nil, m.putErr
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) != size {
		return nil, errors.New("short body")
	}
	m.objects[bucket+"/"+key] = body
	m.types[bucket+"/"+key] = contentType
	return &ObjectInfo{Bucket: bucket, Key: key, Size: size, ContentType: contentType}, nil
}

func (m *memStore) PresignGetURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "http://minio.local/" + bucket + "/" + key, nil
}

func TestExporter_Export(t *testing.T) {
	store := newMemStore()
	e := NewExporter(store, "empdb", "snapshots")
	e.now = func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }

	snap := &Snapshot{
		Handle: "h-1",
		Driver: "sqlite",
		Table:  "emp",
		Count:  2,
		Rows:   []map[string]any{{"empno": 10}, {"empno": 20}},
	}
	info, err := e.Export(context.Background(), snap)
	require.NoError(t, err)

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "snapshots/2024/03/09/"+snap.ID+".json", info.Key)
	assert.Equal(t, ContentTypeJSON, info.ContentType)
	assert.True(t, store.buckets["empdb"])

	var got map[string]any
	require.NoError(t, json.NewDecoder(bytes.NewReader(store.objects["empdb/"+info.Key])).Decode(&got))
	assert.Equal(t, "sqlite", got["driver"])
	assert.Equal(t, float64(2), got["count"])
	assert.Len(t, got["rows"], 2)
}

func TestExporter_KeepsGivenID(t *testing.T) {
	store := newMemStore()
	e := NewExporter(store, "empdb", "")

	taken := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	info, err := e.Export(context.Background(), &Snapshot{ID: "fixed", TakenAt: taken})
	require.NoError(t, err)
	assert.Equal(t, "2025/01/02/fixed.json", info.Key)
}

func TestExporter_PutFailure(t *testing.T) {
	store := newMemStore()
	store.putErr = errs.New(errs.CodeConnErr, "endpoint unreachable")
	e := NewExporter(store, "empdb", "snapshots")

	_, err := e.Export(context.Background(), &Snapshot{})
	assert.True(t, errs.IsConnErr(err))
}

func TestExporter_ConcurrentExports(t *testing.T) {
	store := newMemStore()
	e := NewExporter(store, "empdb", "snapshots")

	const n = 8
	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Export(context.Background(), &Snapshot{Count: 1})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, store.ensured, "the bucket is checked once")
	assert.Len(t, store.objects, n)
}

func TestExporter_BucketFailureIsRetried(t *testing.T) {
	store := newMemStore()
	store.bucketErr = errs.New(errs.CodeConnErr, "endpoint unreachable")
	e := NewExporter(store, "empdb", "snapshots")

	_, err := e.Export(context.Background(), &Snapshot{})
	assert.True(t, errs.IsConnErr(err))
	assert.Empty(t, store.objects)

	store.bucketErr = nil
	_, err = e.Export(context.Background(), &Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, 2, store.ensured)
	assert.Len(t, store.objects, 1)
}

func TestConfig_Enabled(t *testing.T) {
	var nilCfg *Config
	assert.False(t, nilCfg.Enabled())

	cfg := DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
	assert.False(t, cfg.Enabled())
	cfg.Bucket = "empdb"
	assert.True(t, cfg.Enabled())
}
