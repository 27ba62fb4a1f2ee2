package clientcli

import (
	"time"

	"github.com/sagarc03/stowgate"
)

// UploadOptions configures an upload operation.
type UploadOptions struct {
	LocalPath  string
	RemotePath string
	// Visibility defaults to private on the server when empty.
	Visibility stowgate.Visibility
	// Type "text" makes the server serve the object as UTF-8 text.
	Type      stowgate.ObjectType
	Recursive bool
}

// UploadResult represents the result of uploading a single file.
type UploadResult struct {
	LocalPath  string              `json:"local_path"`
	RemotePath string              `json:"remote_path"`
	Size       int64               `json:"size_bytes"`
	Visibility stowgate.Visibility `json:"visibility,omitempty"`
	Type       stowgate.ObjectType `json:"type,omitempty"`
	Err        error               `json:"-"` // nil on success
}

// DownloadOptions configures a download operation.
type DownloadOptions struct {
	RemotePath string
	LocalPath  string // empty = derive from remote, "-" = stdout
}

// DownloadResult represents the result of downloading a file.
type DownloadResult struct {
	RemotePath   string            `json:"remote_path"`
	LocalPath    string            `json:"local_path"`
	ETag         string            `json:"etag"`
	ContentType  string            `json:"content_type"`
	Size         int64             `json:"size_bytes"`
	LastModified time.Time         `json:"last_modified,omitzero"`
	Metadata     stowgate.Metadata `json:"metadata"`
}

// MetadataOptions configures a metadata replacement. Fields left empty are
// removed from the object.
type MetadataOptions struct {
	RemotePath string
	Visibility stowgate.Visibility
	Type       stowgate.ObjectType
}

// MetadataResult reports the metadata now stored on an object.
type MetadataResult struct {
	RemotePath string            `json:"remote_path"`
	Metadata   stowgate.Metadata `json:"metadata"`
}

// DeleteOptions configures a delete operation.
type DeleteOptions struct {
	Paths []string
}

// DeleteResult represents the result of deleting a single file.
type DeleteResult struct {
	Path    string `json:"path"`
	Deleted bool   `json:"deleted"`
	Err     error  `json:"-"` // nil on success
}

// ListOptions configures a list operation.
type ListOptions struct {
	Prefix string
	Limit  int
	Cursor string
	All    bool // auto-paginate through all results
}

// ListResult contains paginated list results.
type ListResult struct {
	Items      []stowgate.ObjectInfo `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// ShareOptions configures a presigned download link.
type ShareOptions struct {
	RemotePath string
	Expires    time.Duration
}

// ShareResult is a link that grants GET on one object until ExpiresAt.
type ShareResult struct {
	RemotePath string    `json:"remote_path"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}
