package clientcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sagarc03/stowgate"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultShareExpiry is the lifetime of a share link when none is given.
	DefaultShareExpiry = 15 * time.Minute
)

// Client performs operations against a stowgate server.
type Client struct {
	config     *Config
	endpoint   *url.URL
	httpClient *http.Client
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a new Client with the given config and options.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	cfg = cfg.WithDefaults()
	cfg.Endpoint = strings.TrimSuffix(cfg.Endpoint, "/")

	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("parse endpoint: %q is not an absolute URL", cfg.Endpoint)
	}

	c := &Client{
		config:     cfg,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// objectURL escapes key into a URL under the endpoint.
func (c *Client) objectURL(key string) string {
	return c.config.Endpoint + (&url.URL{Path: "/" + key}).EscapedPath()
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.config.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Secret)
	}
	return req, nil
}

// do sends req and returns an *APIError for any status other than 200.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, parseServerError(resp.StatusCode, body)
	}

	return resp, nil
}

func setMetadataHeaders(h http.Header, visibility stowgate.Visibility, typ stowgate.ObjectType) {
	if visibility != "" {
		h.Set(stowgate.HeaderVisibility, string(visibility))
	}
	if typ != "" {
		h.Set(stowgate.HeaderType, string(typ))
	}
}

// Upload uploads file(s) to the server.
// For recursive uploads, walks directory and preserves relative paths.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	if opts.LocalPath == "" {
		return nil, fmt.Errorf("upload: %w", ErrEmptyPath)
	}
	if opts.Recursive {
		return c.uploadRecursive(ctx, opts)
	}
	result, err := c.uploadSingle(ctx, opts.LocalPath, opts.RemotePath, opts)
	if err != nil {
		return nil, err
	}
	return []UploadResult{result}, nil
}

func (c *Client) uploadRecursive(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	info, err := os.Stat(opts.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("stat local path: %w", err)
	}

	if !info.IsDir() {
		result, uploadErr := c.uploadSingle(ctx, opts.LocalPath, opts.RemotePath, opts)
		if uploadErr != nil {
			return nil, uploadErr
		}
		return []UploadResult{result}, nil
	}

	var results []UploadResult
	baseDir := opts.LocalPath
	remotePrefix := strings.Trim(opts.RemotePath, "/")

	walkErr := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, fileErr error) error {
		if fileErr != nil {
			return fileErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(baseDir, path)
		if relErr != nil {
			results = append(results, UploadResult{
				LocalPath: path,
				Err:       fmt.Errorf("calculate relative path: %w", relErr),
			})
			return nil
		}

		remotePath := filepath.ToSlash(relPath)
		if remotePrefix != "" {
			remotePath = remotePrefix + "/" + remotePath
		}

		result, uploadErr := c.uploadSingle(ctx, path, remotePath, opts)
		if uploadErr != nil {
			result = UploadResult{
				LocalPath:  path,
				RemotePath: remotePath,
				Err:        uploadErr,
			}
		}
		results = append(results, result)
		return nil
	})

	if walkErr != nil {
		return results, fmt.Errorf("walk directory: %w", walkErr)
	}

	return results, nil
}

func (c *Client) uploadSingle(ctx context.Context, localPath, remotePath string, opts UploadOptions) (UploadResult, error) {
	if remotePath == "" {
		remotePath = NormalizeLocalToRemotePath(localPath)
	}
	key := normalizeKey(remotePath)
	if !stowgate.IsValidKey(key) {
		return UploadResult{}, fmt.Errorf("upload: invalid remote path %q", remotePath)
	}

	file, err := os.Open(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return UploadResult{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return UploadResult{}, fmt.Errorf("stat file: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, c.objectURL(key), file)
	if err != nil {
		return UploadResult{}, err
	}
	req.ContentLength = info.Size()
	setMetadataHeaders(req.Header, opts.Visibility, opts.Type)

	resp, err := c.do(req)
	if err != nil {
		return UploadResult{}, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return UploadResult{
		LocalPath:  localPath,
		RemotePath: key,
		Size:       info.Size(),
		Visibility: opts.Visibility,
		Type:       opts.Type,
	}, nil
}

// Download downloads a file from the server.
// If opts.LocalPath is "-", the content is returned via the io.ReadCloser and must be closed by the caller.
// Otherwise, the content is written to the file and the io.ReadCloser is nil.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, io.ReadCloser, error) {
	if opts.RemotePath == "" {
		return nil, nil, fmt.Errorf("download: %w", ErrEmptyPath)
	}
	key := normalizeKey(opts.RemotePath)

	req, err := c.newRequest(ctx, http.MethodGet, c.objectURL(key), http.NoBody)
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, nil, err
	}

	result := &DownloadResult{
		RemotePath:  key,
		ETag:        strings.Trim(resp.Header.Get("ETag"), `"`),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
		Metadata:    metadataFromHeader(resp.Header),
	}
	if lm, parseErr := http.ParseTime(resp.Header.Get("Last-Modified")); parseErr == nil {
		result.LastModified = lm
	}

	if opts.LocalPath == "-" {
		result.LocalPath = "-"
		return result, resp.Body, nil
	}

	localPath := opts.LocalPath
	if localPath == "" {
		localPath = filepath.Base(key)
	}
	result.LocalPath = localPath

	dir := filepath.Dir(localPath)
	if dir != "" && dir != "." {
		if mkdirErr := os.MkdirAll(dir, 0o750); mkdirErr != nil {
			_ = resp.Body.Close()
			return nil, nil, fmt.Errorf("create directory: %w", mkdirErr)
		}
	}

	file, createErr := os.Create(localPath) //#nosec G304 -- localPath is user-provided input
	if createErr != nil {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("create file: %w", createErr)
	}

	written, copyErr := io.Copy(file, resp.Body)
	_ = resp.Body.Close()
	if copyErr != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("write file: %w", copyErr)
	}

	if closeErr := file.Close(); closeErr != nil {
		return nil, nil, fmt.Errorf("close file: %w", closeErr)
	}

	result.Size = written
	return result, nil, nil
}

// SetMetadata replaces the metadata of an existing object without touching
// its content.
func (c *Client) SetMetadata(ctx context.Context, opts MetadataOptions) (*MetadataResult, error) {
	if opts.RemotePath == "" {
		return nil, fmt.Errorf("set metadata: %w", ErrEmptyPath)
	}
	key := normalizeKey(opts.RemotePath)

	req, err := c.newRequest(ctx, http.MethodPatch, c.objectURL(key), http.NoBody)
	if err != nil {
		return nil, err
	}
	setMetadataHeaders(req.Header, opts.Visibility, opts.Type)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return &MetadataResult{
		RemotePath: key,
		Metadata:   stowgate.Metadata{Visibility: opts.Visibility, Type: opts.Type},
	}, nil
}

// Delete deletes one or more files from the server.
// Continues on error, collecting results for all paths.
func (c *Client) Delete(ctx context.Context, opts DeleteOptions) ([]DeleteResult, error) {
	if len(opts.Paths) == 0 {
		return nil, ErrNoPaths
	}

	results := make([]DeleteResult, 0, len(opts.Paths))

	for _, path := range opts.Paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, c.deleteSingle(ctx, path))
	}

	return results, nil
}

func (c *Client) deleteSingle(ctx context.Context, path string) DeleteResult {
	req, err := c.newRequest(ctx, http.MethodDelete, c.objectURL(normalizeKey(path)), http.NoBody)
	if err != nil {
		return DeleteResult{Path: path, Err: err}
	}

	resp, err := c.do(req)
	if err != nil {
		return DeleteResult{Path: path, Err: err}
	}
	_ = resp.Body.Close()

	return DeleteResult{Path: path, Deleted: true}
}

// HasDeleteErrors returns true if any delete operation failed.
func HasDeleteErrors(results []DeleteResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// List lists objects on the server. If opts.All is true, paginates through
// all results.
func (c *Client) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if opts.All {
		return c.listAll(ctx, opts)
	}
	return c.listPage(ctx, opts)
}

func (c *Client) listPage(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := url.Values{}
	if opts.Prefix != "" {
		query.Set("prefix", opts.Prefix)
	}
	query.Set("limit", strconv.Itoa(limit))
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}

	req, err := c.newRequest(ctx, http.MethodGet, c.config.Endpoint+"/?"+query.Encode(), http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var result ListResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if result.Items == nil {
		result.Items = []stowgate.ObjectInfo{}
	}

	return &result, nil
}

func (c *Client) listAll(ctx context.Context, opts ListOptions) (*ListResult, error) {
	all := &ListResult{Items: []stowgate.ObjectInfo{}}
	cursor := opts.Cursor

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := c.listPage(ctx, ListOptions{
			Prefix: opts.Prefix,
			Limit:  opts.Limit,
			Cursor: cursor,
		})
		if err != nil {
			return nil, err
		}

		all.Items = append(all.Items, page.Items...)

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return all, nil
}

// TotalSize calculates the total size of all items in bytes.
func (r *ListResult) TotalSize() int64 {
	var total int64
	for _, item := range r.Items {
		total += item.Size
	}
	return total
}

// Share returns a presigned GET link for an object. Anyone holding the link
// can read the object until it expires, whatever its visibility.
func (c *Client) Share(opts ShareOptions) (*ShareResult, error) {
	if opts.RemotePath == "" {
		return nil, fmt.Errorf("share: %w", ErrEmptyPath)
	}
	if err := c.config.ValidateForShare(); err != nil {
		return nil, fmt.Errorf("share: %w", err)
	}

	expires := opts.Expires
	if expires <= 0 {
		expires = DefaultShareExpiry
	}

	key := normalizeKey(opts.RemotePath)
	now := c.now()
	query, err := stowgate.Presign(stowgate.PresignRequest{
		Method:    http.MethodGet,
		Host:      c.endpoint.Host,
		Path:      "/" + key,
		AccessKey: c.config.AccessKey,
		SecretKey: c.config.SecretKey,
		Region:    c.config.Region,
		Service:   c.config.Service,
		Expires:   expires,
		Now:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("share: %w", err)
	}

	return &ShareResult{
		RemotePath: key,
		URL:        c.objectURL(key) + "?" + query.Encode(),
		ExpiresAt:  now.Add(expires).UTC(),
	}, nil
}

func metadataFromHeader(h http.Header) stowgate.Metadata {
	raw := make(map[string]string)
	for name, values := range h {
		if len(values) > 0 && strings.HasPrefix(strings.ToLower(name), stowgate.MetadataPrefix) {
			raw[name] = values[0]
		}
	}
	return stowgate.MetadataFromMap(raw)
}

// normalizeKey strips surrounding slashes from a remote path.
func normalizeKey(path string) string {
	return strings.Trim(path, "/")
}

// NormalizeLocalToRemotePath converts a local path to a clean remote key:
// separators become "/", "." and ".." segments are resolved and leading
// "./", "/" and "../" are stripped.
func NormalizeLocalToRemotePath(localPath string) string {
	path := filepath.ToSlash(filepath.Clean(filepath.ToSlash(localPath)))

	path = strings.TrimPrefix(path, "./")
	path = strings.TrimPrefix(path, "/")

	for strings.HasPrefix(path, "../") {
		path = strings.TrimPrefix(path, "../")
	}

	if path == ".." || path == "." {
		return ""
	}

	return path
}

func parseServerError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode, Body: strings.TrimSpace(string(body))}

	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Message = payload.Error
		apiErr.Code = payload.Code
	}

	return apiErr
}

// APIError represents an error response from the server. JSON error bodies
// fill Message and Code; plain text bodies only Body.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	msg := e.Body
	if e.Message != "" {
		msg = e.Message
		if e.Code != "" {
			msg += " (" + e.Code + ")"
		}
	}
	return "server error: " + strconv.Itoa(e.StatusCode) + " - " + msg
}

// Is matches any *APIError with the same StatusCode.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return t.StatusCode == e.StatusCode
}

func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Sentinel errors for common API error conditions. Use errors.Is.
var (
	ErrNotFound         = &APIError{StatusCode: http.StatusNotFound}
	ErrUnauthorized     = &APIError{StatusCode: http.StatusUnauthorized}
	ErrForbidden        = &APIError{StatusCode: http.StatusForbidden}
	ErrTooLarge         = &APIError{StatusCode: http.StatusRequestEntityTooLarge}
	ErrMethodNotAllowed = &APIError{StatusCode: http.StatusMethodNotAllowed}
)
