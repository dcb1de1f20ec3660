package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koustreak/empdb/internal/errs"
)

// ContentTypeJSON is the content type of every snapshot object.
const ContentTypeJSON = "application/json"

// Snapshot is one exported row set.
type Snapshot struct {
	ID      string    `json:"id"`
	Handle  string    `json:"handle"`
	Driver  string    `json:"driver"`
	Table   string    `json:"table"`
	TakenAt time.Time `json:"taken_at"`
	Count   int       `json:"count"`
	Rows    any       `json:"rows"`
}

// Exporter writes snapshots to one bucket. It is safe for concurrent use.
type Exporter struct {
	store  Store
	bucket string
	prefix string
	now    func() time.Time

	mu    sync.Mutex
	ready bool // bucket checked
}

// NewExporter returns an Exporter writing under prefix in bucket.
func NewExporter(store Store, bucket, prefix string) *Exporter {
	return &Exporter{store: store, bucket: bucket, prefix: prefix, now: time.Now}
}

// Key is the object key a snapshot is stored under:
// <prefix>/YYYY/MM/DD/<id>.json.
func (e *Exporter) Key(snap *Snapshot) string {
	return path.Join(e.prefix, snap.TakenAt.UTC().Format("2006/01/02"), snap.ID+".json")
}

// Export serialises snap and uploads it. A missing ID or timestamp is
// filled in. The bucket is created on first use.
func (e *Exporter) Export(ctx context.Context, snap *Snapshot) (*ObjectInfo, error) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = e.now()
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return nil, errs.Wrap(errs.CodeErr, "failed to encode snapshot", err)
	}

	if err := e.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return e.store.PutObject(ctx, e.bucket, e.Key(snap), bytes.NewReader(body), int64(len(body)), ContentTypeJSON)
}

// ensureBucket creates the bucket once. A failed attempt is retried by the
// next export.
func (e *Exporter) ensureBucket(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready {
		return nil
	}
	if err := e.store.EnsureBucket(ctx, e.bucket); err != nil {
		return err
	}
	e.ready = true
	return nil
}
