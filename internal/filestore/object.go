package filestore

import (
	"time"
)

// ObjectInfo describes a single object stored in a bucket.
type ObjectInfo struct {
	// Bucket and Key locate the object (e.g. "snapshots/2024/…json").
	Bucket string `json:"bucket"`
	Key    string `json:"key"`

	// Size is the byte size of the object. -1 if unknown.
	Size int64 `json:"size"`

	// ContentType is the MIME type (e.g. "application/json").
	ContentType string `json:"content_type"`

	// ETag is the object's entity tag / hash, as returned by the backend.
	ETag string `json:"etag,omitempty"`

	// LastModified is when the object was last written.
	// May be zero if the backend does not report it on upload.
	LastModified time.Time `json:"last_modified,omitempty"`
}
