package stowgate

import (
	"fmt"
	"time"
)

// ObjectInfo describes a stored object as reported by the backend.
type ObjectInfo struct {
	Key          string    `json:"key"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size_bytes"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified"`
	Metadata     Metadata  `json:"metadata"`
}

// PutOptions carries everything a backend needs besides the body.
type PutOptions struct {
	Metadata    Metadata
	ContentType string
}

type ListQuery struct {
	Prefix string
	Limit  int
	Cursor string
}

type ListResult struct {
	Items      []ObjectInfo `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

type BackendType string

const (
	BackendS3         BackendType = "s3"
	BackendMinIO      BackendType = "minio"
	BackendFilesystem BackendType = "filesystem"
)

func (b BackendType) IsValid() bool {
	switch b {
	case BackendS3, BackendMinIO, BackendFilesystem:
		return true
	default:
		return false
	}
}

func ParseBackendType(s string) (BackendType, error) {
	b := BackendType(s)
	if !b.IsValid() {
		return "", fmt.Errorf("invalid backend type: %s (valid types: s3, minio, filesystem)", s)
	}
	return b, nil
}
