package filestore

import "time"

// ObjectInfo describes a single stored object.
type ObjectInfo struct {
	// Key is the full object path within the bucket.
	Key string `json:"key"`

	// Size is the byte size of the object. -1 if unknown.
	Size int64 `json:"size"`

	ContentType     string    `json:"contentType"`
	ContentEncoding string    `json:"contentEncoding,omitempty"`
	ETag            string    `json:"etag"`
	LastModified    time.Time `json:"lastModified"`
}

// PutOptions describes the object being written.
type PutOptions struct {
	ContentType     string
	ContentEncoding string
}
