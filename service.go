package stowgate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ObjectStore is the object storage backend the gateway proxies to.
// Implementations are bound to a single bucket.
//
// Failures should be reported as *BackendError so callers can tell absence,
// authorization failures and everything else apart with errors.Is.
type ObjectStore interface {
	// Get opens the object for streaming. The caller must close the reader.
	Get(ctx context.Context, key string) (ObjectInfo, io.ReadCloser, error)

	// Head returns the object's attributes without its content.
	Head(ctx context.Context, key string) (ObjectInfo, error)

	// Put replaces the object (content and metadata) with body. Large bodies
	// are uploaded in bounded-size parts with bounded concurrency; partially
	// uploaded parts are discarded on the first error. Put returns only once
	// the backend has acknowledged the complete object.
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (ObjectInfo, error)

	// ReplaceMetadata copies the object onto itself with a metadata REPLACE
	// directive. Content is untouched; keys missing from meta are dropped.
	ReplaceMetadata(ctx context.Context, key string, meta Metadata) error

	// Delete removes the object.
	Delete(ctx context.Context, key string) error

	// List returns a page of objects ordered by key.
	List(ctx context.Context, q ListQuery) (ListResult, error)

	// Ping checks that the configured bucket is reachable.
	Ping(ctx context.Context) error
}

// DeleteObserver is notified about the outcomes of the delete heuristics.
type DeleteObserver interface {
	// DeleteRecovered is called when a delete error was masked because the
	// follow-up probe found the object absent.
	DeleteRecovered(key string, cause error)
	// DeleteFailed is called when a delete error is surfaced to the caller.
	DeleteFailed(key string, cause error)
}

type nopObserver struct{}

func (nopObserver) DeleteRecovered(string, error) {}
func (nopObserver) DeleteFailed(string, error)    {}

// ServiceConfig holds configuration options for Service.
type ServiceConfig struct {
	// DisableDeleteProbe surfaces delete errors directly instead of probing
	// whether the object is already gone.
	DisableDeleteProbe bool
	Observer           DeleteObserver
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Service maps gateway operations onto an ObjectStore. It holds no
// per-request state and is safe for concurrent use.
type Service struct {
	store    ObjectStore
	probe    bool
	observer DeleteObserver
}

func NewService(store ObjectStore, cfg ServiceConfig) (*Service, error) {
	if store == nil {
		return nil, errors.New("new service: object store is required")
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Service{
		store:    store,
		probe:    !cfg.DisableDeleteProbe,
		observer: observer,
	}, nil
}

// Get opens an object for reading.
//
// Every backend failure is reported as ErrNotFound: callers cannot tell a
// missing object from a transient backend error. The cause is kept in the
// chain and logged at debug level.
func (s *Service) Get(ctx context.Context, key string) (ObjectInfo, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, nil, fmt.Errorf("get object: %w", err)
	}

	if !IsValidKey(key) {
		return ObjectInfo{}, nil, fmt.Errorf("get object %q: %w", key, ErrInvalidInput)
	}

	info, body, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.DebugContext(ctx, "get failed, reporting as not found", "key", key, "err", err)
		}
		return ObjectInfo{}, nil, fmt.Errorf("get object %s: %w: %w", key, ErrNotFound, err)
	}

	return info, body, nil
}

// Put uploads body under key, replacing any existing object and its
// metadata. The content type is left to the backend default and resolved
// on read.
func (s *Service) Put(ctx context.Context, key string, meta Metadata, body io.Reader) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, fmt.Errorf("put object: %w", err)
	}

	if !IsValidKey(key) {
		return ObjectInfo{}, fmt.Errorf("put object %q: %w", key, ErrInvalidInput)
	}

	info, err := s.store.Put(ctx, key, body, PutOptions{
		Metadata:    meta,
		ContentType: ContentTypeOctetStream,
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("put object %s: %w", key, err)
	}

	return info, nil
}

// UpdateMetadata replaces the object's metadata without touching its content.
// Metadata keys absent from meta are removed.
func (s *Service) UpdateMetadata(ctx context.Context, key string, meta Metadata) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}

	if !IsValidKey(key) {
		return fmt.Errorf("update metadata %q: %w", key, ErrInvalidInput)
	}

	if err := s.store.ReplaceMetadata(ctx, key, meta); err != nil {
		return fmt.Errorf("update metadata %s: %w", key, err)
	}

	return nil
}

// Delete removes an object, treating deletion as best-effort success.
//
// The outcome of the backend call is interpreted as follows:
//  1. no error: deleted.
//  2. an error carrying a 200 or 204 status: deleted, the status was
//     misreported as a failure.
//  3. a 401 or 403: surfaced immediately.
//  4. any other error: the key is probed with Head. If the object is gone the
//     delete succeeds and the masked error is logged and reported to the
//     observer. If it is still there, or the probe fails for any reason other
//     than absence, the original error is surfaced.
//
// Probing is skipped when ServiceConfig.DisableDeleteProbe is set. There are
// no retries.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	if !IsValidKey(key) {
		return fmt.Errorf("delete object %q: %w", key, ErrInvalidInput)
	}

	delErr := s.store.Delete(ctx, key)
	if delErr == nil {
		return nil
	}

	if be, ok := AsBackendError(delErr); ok {
		switch be.StatusCode {
		case http.StatusOK, http.StatusNoContent:
			slog.DebugContext(ctx, "delete reported success status as error", "key", key, "status", be.StatusCode)
			return nil
		}
	}

	if errors.Is(delErr, ErrUnauthorized) || errors.Is(delErr, ErrForbidden) {
		s.observer.DeleteFailed(key, delErr)
		return fmt.Errorf("delete object %s: %w", key, delErr)
	}

	if !s.probe {
		s.observer.DeleteFailed(key, delErr)
		return fmt.Errorf("delete object %s: %w", key, delErr)
	}

	_, headErr := s.store.Head(ctx, key)
	switch {
	case headErr != nil && errors.Is(headErr, ErrNotFound):
		slog.WarnContext(ctx, "recovered inconsistent delete: backend errored but object is gone",
			"key", key, "err", delErr)
		s.observer.DeleteRecovered(key, delErr)
		return nil
	case headErr != nil:
		slog.ErrorContext(ctx, "delete failed and existence probe was inconclusive",
			"key", key, "err", delErr, "probe_err", headErr)
	default:
		slog.ErrorContext(ctx, "delete failed and object still exists", "key", key, "err", delErr)
	}

	s.observer.DeleteFailed(key, delErr)
	return fmt.Errorf("delete object %s: %w", key, delErr)
}

// List returns a page of objects. Limit defaults to 100 and is capped at 1000.
func (s *Service) List(ctx context.Context, q ListQuery) (ListResult, error) {
	if err := ctx.Err(); err != nil {
		return ListResult{}, fmt.Errorf("list objects: %w", err)
	}

	switch {
	case q.Limit <= 0:
		q.Limit = defaultListLimit
	case q.Limit > maxListLimit:
		q.Limit = maxListLimit
	}

	result, err := s.store.List(ctx, q)
	if err != nil {
		return ListResult{}, fmt.Errorf("list objects: %w", err)
	}

	if result.Items == nil {
		result.Items = []ObjectInfo{}
	}

	return result, nil
}

// Ping checks the backend is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping backend: %w", err)
	}
	return nil
}
