package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sagarc03/stowgate"
)

type Service interface {
	Get(ctx context.Context, key string) (stowgate.ObjectInfo, io.ReadCloser, error)
	Put(ctx context.Context, key string, meta stowgate.Metadata, body io.Reader) (stowgate.ObjectInfo, error)
	UpdateMetadata(ctx context.Context, key string, meta stowgate.Metadata) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, query stowgate.ListQuery) (stowgate.ListResult, error)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" validate:"min=0"`
}

type HandlerConfig struct {
	Authorizer stowgate.Authorizer
	// Metadata is the allow-list applied to x-store-* request headers.
	// Nil accepts only the built-in keys.
	Metadata *stowgate.MetadataPolicy
	// MaxUploadSize caps PUT bodies in bytes. Zero means unlimited.
	MaxUploadSize int64
	// ListEnabled serves the authenticated object listing on GET /.
	ListEnabled bool
	CORS        CORSConfig
	// Middlewares wrap every route, inside request ID and logging.
	Middlewares []func(http.Handler) http.Handler
}

// Handler provides HTTP handlers for gateway operations.
type Handler struct {
	config  HandlerConfig
	service Service
	policy  *stowgate.MetadataPolicy
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	policy := config.Metadata
	if policy == nil {
		// no extra keys never fails
		policy, _ = stowgate.NewMetadataPolicy(nil)
	}
	return &Handler{
		config:  *config,
		service: service,
		policy:  policy,
	}
}

// Router returns an http.Handler serving every object key under /.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(h.config.Middlewares...)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteText(w, http.StatusMethodNotAllowed, textMethodNotAllowed)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteText(w, http.StatusNotFound, textNotFound)
	})

	// Visibility is only known after the fetch, so GET authorizes inline.
	r.Get("/*", h.handleGet)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.config.Authorizer))
		if h.config.ListEnabled {
			r.Get("/", h.handleList)
		}
		r.Put("/*", h.handlePut)
		r.Patch("/*", h.handlePatch)
		r.Delete("/*", h.handleDelete)
	})

	return r
}

func keyFromRequest(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/")
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if s := q.Get("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil {
			limit = parsed
		}
	}

	result, err := h.service.List(r.Context(), stowgate.ListQuery{
		Prefix: q.Get("prefix"),
		Limit:  limit,
		Cursor: q.Get("cursor"),
	})
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

// handleGet answers 404 for missing objects, backend failures and private
// objects requested without authorization alike.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	key := keyFromRequest(r)

	if !stowgate.IsValidKey(key) {
		WriteText(w, http.StatusNotFound, textNotFound)
		return
	}

	info, content, err := h.service.Get(r.Context(), key)
	if err != nil {
		WriteText(w, http.StatusNotFound, textNotFound)
		return
	}
	defer func() { _ = content.Close() }()

	if !info.Metadata.IsPublic() && !authorized(h.config.Authorizer, r) {
		WriteText(w, http.StatusNotFound, textNotFound)
		return
	}

	header := w.Header()
	for k, v := range info.Metadata.Map() {
		header.Set(k, v)
	}
	header.Set("Content-Type", stowgate.ResolveContentType(info.ContentType, key, info.Metadata))
	if info.Size >= 0 {
		header.Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if !info.LastModified.IsZero() {
		header.Set("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	}
	if info.ETag != "" {
		header.Set("ETag", `"`+strings.Trim(info.ETag, `"`)+`"`)
	}

	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content); err != nil {
		slog.WarnContext(r.Context(), "streaming object interrupted", "key", key, "error", err)
	}
}

func (h *Handler) metadataFromRequest(r *http.Request) (stowgate.Metadata, error) {
	meta, dropped, err := h.policy.FromHeader(r.Header)
	if err != nil {
		return stowgate.Metadata{}, err
	}
	if len(dropped) > 0 {
		slog.DebugContext(r.Context(), "dropped unrecognised metadata headers", "headers", dropped)
	}
	return meta, nil
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	key := keyFromRequest(r)

	if !stowgate.IsValidKey(key) {
		WriteError(w, http.StatusBadRequest, "Invalid key", "invalid_key")
		return
	}

	meta, err := h.metadataFromRequest(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), "invalid_metadata")
		return
	}

	body := io.Reader(r.Body)
	if h.config.MaxUploadSize > 0 {
		body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)
	}

	if _, err := h.service.Put(r.Context(), key, meta, body); err != nil {
		HandleError(w, r, err)
		return
	}

	WriteText(w, http.StatusOK, textOK)
}

func (h *Handler) handlePatch(w http.ResponseWriter, r *http.Request) {
	key := keyFromRequest(r)

	if !stowgate.IsValidKey(key) {
		WriteError(w, http.StatusBadRequest, "Invalid key", "invalid_key")
		return
	}

	meta, err := h.metadataFromRequest(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), "invalid_metadata")
		return
	}

	if err := h.service.UpdateMetadata(r.Context(), key, meta); err != nil {
		HandleError(w, r, err)
		return
	}

	WriteText(w, http.StatusOK, textOK)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := keyFromRequest(r)

	if !stowgate.IsValidKey(key) {
		WriteError(w, http.StatusBadRequest, "Invalid key", "invalid_key")
		return
	}

	if err := h.service.Delete(r.Context(), key); err != nil {
		// a not-found that survived the delete path is a backend failure
		if errors.Is(err, stowgate.ErrNotFound) {
			slog.ErrorContext(r.Context(), "delete failed", "key", key, "error", err)
			WriteError(w, http.StatusInternalServerError, err.Error(), errorCode(err))
			return
		}
		HandleError(w, r, err)
		return
	}

	WriteText(w, http.StatusOK, textOK)
}
