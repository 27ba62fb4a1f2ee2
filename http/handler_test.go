package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sagarc03/stowgate"
	gatehttp "github.com/sagarc03/stowgate/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cret"

// MockService is a mock implementation of http.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Get(ctx context.Context, key string) (stowgate.ObjectInfo, io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(1) == nil {
		return args.Get(0).(stowgate.ObjectInfo), nil, args.Error(2)
	}
	return args.Get(0).(stowgate.ObjectInfo), args.Get(1).(io.ReadCloser), args.Error(2)
}

func (m *MockService) Put(ctx context.Context, key string, meta stowgate.Metadata, body io.Reader) (stowgate.ObjectInfo, error) {
	args := m.Called(ctx, key, meta, body)
	return args.Get(0).(stowgate.ObjectInfo), args.Error(1)
}

func (m *MockService) UpdateMetadata(ctx context.Context, key string, meta stowgate.Metadata) error {
	args := m.Called(ctx, key, meta)
	return args.Error(0)
}

func (m *MockService) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockService) List(ctx context.Context, query stowgate.ListQuery) (stowgate.ListResult, error) {
	args := m.Called(ctx, query)
	return args.Get(0).(stowgate.ListResult), args.Error(1)
}

func newTestHandler(t *testing.T, cfg gatehttp.HandlerConfig) (http.Handler, *MockService) {
	t.Helper()
	if cfg.Authorizer == nil {
		cfg.Authorizer = stowgate.NewSecretAuthorizer(testSecret, "")
	}
	service := new(MockService)
	return gatehttp.NewHandler(&cfg, service).Router(), service
}

func body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func withAuth(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+testSecret)
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) gatehttp.ErrorResponse {
	t.Helper()
	var resp gatehttp.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHandler_Get_Public(t *testing.T) {
	handler, service := newTestHandler(t, gatehttp.HandlerConfig{})

	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	info := stowgate.ObjectInfo{
		Key:          "photo.png",
		ContentType:  stowgate.ContentTypeOctetStream,
		Size:         5,
		ETag:         "abc123",
		LastModified: modified,
		Metadata: stowgate.Metadata{
			Visibility: stowgate.VisibilityPublic,
			Type:       stowgate.ObjectTypeFile,
			Extra:      map[string]string{"x-store-owner": "alice"},
		},
	}
	service.On("Get", mock.Anything, "photo.png").Return(info, body("hello"), nil)

	rec := serve(handler, httptest.NewRequest(http.MethodGet, "/photo.png", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "5", rec.Header().Get("Content-Length"))
	assert.Equal(t, `"abc123"`, rec.Header().Get("ETag"))
	assert.Equal(t, "Fri, 01 Mar 2024 12:00:00 GMT", rec.Header().Get("Last-Modified"))
	assert.Equal(t, "public", rec.Header().Get("X-Store-Visibility"))
	assert.Equal(t, "file", rec.Header().Get("X-Store-Type"))
	assert.Equal(t, "alice", rec.Header().Get("X-Store-Owner"))
	service.AssertExpectations(t)
}

func TestHandler_Get_TextType(t *testing.T) {
	handler, service := newTestHandler(t, gatehttp.HandlerConfig{})

	info := stowgate.ObjectInfo{
		Key:         "snippet.png",
		ContentType: "image/png",
		Size:        2,
		Metadata:    stowgate.Metadata{Visibility: stowgate.VisibilityPublic, Type: stowgate.ObjectTypeText},
	}
	service.On("Get", mock.Anything, "snippet.png").Return(info, body("hi"), nil)

	rec := serve(handler, httptest.NewRequest(http.MethodGet, "/snippet.png", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, stowgate.ContentTypeText, rec.Header().Get("Content-Type"))
}

func TestHandler_Get_NestedKeyWithSpaces(t *testing.T) {
	handler, service := newTestHandler(t, gatehttp.HandlerConfig{})

	info := stowgate.ObjectInfo{Key: "docs/my file.txt", Size: 1, Metadata: stowgate.Metadata{Visibility: stowgate.VisibilityPublic}}
	service.On("Get", mock.Anything, "docs/my file.txt").Return(info, body("x"), nil)

	rec := serve(handler, httptest.NewRequest(http.MethodGet, "/docs/my%20file.txt", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	service.AssertExpectations(t)
}

func TestHandler_Get_Private(t *testing.T) {
	private := stowgate.ObjectInfo{Key: "secret.txt", Size: 6, Metadata: stowgate.Metadata{Visibility: stowgate.VisibilityPrivate}}
	unset := stowgate.ObjectInfo{Key: "secret.txt", Size: 6}

	for name, info := range map[string]stowgate.ObjectInfo{"explicit private": private, "no visibility": unset} {
		t.Run(name+" without auth is not found", func(t *testing.T) {
			handler, service := newTestHandler(t, gatehttp.HandlerConfig{})
			service.On("Get", mock.Anything, "secret.txt").Return(info, body("secret"), nil)

			rec := serve(handler, httptest.NewRequest(http.MethodGet, "/secret.txt", nil))

			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "Not found", rec.Body.String())
			assert.Empty(t, rec.Header().Get("X-Store-Visibility"))
		})

		t.Run(name+" with wrong secret is not found", func(t *testing.T) {
			handler, service := newTestHandler(t, gatehttp.HandlerConfig{})
			service.On("Get", mock.Anything, "secret.txt").Return(info, body("secret"), nil)

			req := httptest.NewRequest(http.MethodGet, "/secret.txt", nil)
			req.Header.Set("Authorization", "Bearer wrong")
			rec := serve(handler, req)

			assert.Equal(t, http.StatusNotFound, rec.Code)
		})

		t.Run(name+" with auth is served", func(t *testing.T) {
			handler, service := newTestHandler(t, gatehttp.HandlerConfig{})
			service.On("Get", mock.Anything, "secret.txt").Return(info, body("secret"), nil)

			rec := serve(handler, withAuth(httptest.NewRequest(http.MethodGet, "/secret.txt", nil)))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "secret", rec.Body.String())
		})
	}

	t.Run("auth cookie is accepted", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{})
		service.On("Get", mock.Anything, "secret.txt").Return(private, body("secret"), nil)

		req := httptest.NewRequest(http.MethodGet, "/secret.txt", nil)
		req.AddCookie(&http.Cookie{Name: "auth", Value: testSecret})
		rec := serve(handler, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHandler_Get_NotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "missing", err: stowgate.ErrNotFound},
		{name: "backend failure", err: errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, service := newTestHandler(t, gatehttp.HandlerConfig{})
			service.On("Get", mock.Anything, "a.txt").Return(stowgate.ObjectInfo{}, nil, tt.err)

			rec := serve(handler, withAuth(httptest.NewRequest(http.MethodGet, "/a.txt", nil)))

			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "Not found", rec.Body.String())
		})
	}

	t.Run("invalid key", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{})

		rec := serve(handler, httptest.NewRequest(http.MethodGet, "/a//b", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		service.AssertNotCalled(t, "Get")
	})

	t.Run("root without listing", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{})

		rec := serve(handler, withAuth(httptest.NewRequest(http.MethodGet, "/", nil)))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		service.AssertNotCalled(t, "List")
	})
}

func TestHandler_Put(t *testing.T) {
	t.Run("without auth", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{})

		rec := serve(handler, httptest.NewRequest(http.MethodPut, "/a.txt", strings.NewReader("data")))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized", rec.Body.String())
		service.AssertNotCalled(t, "Put")
	})

	t.Run("forwards metadata headers", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{})

		want := stowgate.Metadata{Visibility: stowgate.VisibilityPublic, Type: stowgate.ObjectTypeText}
		service.On("Put", mock.Anything, "notes/a.txt", want, mock.Anything).Return(stowgate.ObjectInfo{}, nil)

		req := withAuth(httptest.NewRequest(http.MethodPut, "/notes/a.txt", strings.NewReader("data")))
		req.Header.Set("X-Store-Visibility", "public")
		req.Header.Set("X-Store-Type", "text")
		req.Header.Set("X-Store-Unknown", "dropped")
		req.Header.Set("Content-Type", "image/png")
		rec := serve(handler, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
		service.AssertExpectations(t)
	})

	t.Run("configured extra metadata", func(t *testing.T) {
		policy, err := stowgate.NewMetadataPolicy([]string{"x-store-owner"})
		require.NoError(t, err)
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{Metadata: policy})

		want := stowgate.Metadata{Extra: map[string]string{"x-store-owner": "alice"}}
		service.On("Put", mock.Anything, "a.txt", want, mock.Anything).Return(stowgate.ObjectInfo{}, nil)

		req := withAuth(httptest.NewRequest(http.MethodPut, "/a.txt", strings.NewReader("data")))
		req.Header.Set("X-Store-Owner", "alice")
		rec := serve(handler, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		service.AssertExpectations(t)
	})

	t.Run("invalid visibility", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{})

		req := withAuth(httptest.NewRequest(http.MethodPut, "/a.txt", strings.NewReader("data")))
		req.Header.Set("X-Store-Visibility", "world")
		rec := serve(handler, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_metadata", decodeError(t, rec).Code)
		service.AssertNotCalled(t, "Put")
	})

	t.Run("invalid key", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{})

		rec := serve(handler, withAuth(httptest.NewRequest(http.MethodPut, "/dir/", strings.NewReader("data"))))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_key", decodeError(t, rec).Code)
		service.AssertNotCalled(t, "Put")
	})

	t.Run("backend failure exposes message and code", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{})

		cause := &stowgate.BackendError{Op: "put", StatusCode: 500, Code: "InternalError", Err: errors.New("disk on fire")}
		service.On("Put", mock.Anything, "a.txt", mock.Anything, mock.Anything).Return(stowgate.ObjectInfo{}, cause)

		rec := serve(handler, withAuth(httptest.NewRequest(http.MethodPut, "/a.txt", strings.NewReader("data"))))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "InternalError", resp.Code)
		assert.Contains(t, resp.Error, "disk on fire")
	})

	t.Run("upload too large", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{MaxUploadSize: 4})

		service.On("Put", mock.Anything, "a.txt", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				_, _ = io.ReadAll(args.Get(3).(io.Reader))
			}).
			Return(stowgate.ObjectInfo{}, &http.MaxBytesError{Limit: 4})

		rec := serve(handler, withAuth(httptest.NewRequest(http.MethodPut, "/a.txt", strings.NewReader("too much data"))))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, "too_large", decodeError(t, rec).Code)
	})
}

func TestHandler_Patch(t *testing.T) {
	t.Run("without auth", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{})

		req := httptest.NewRequest(http.MethodPatch, "/a.txt", nil)
		req.Header.Set("X-Store-Visibility", "public")
		rec := serve(handler, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		service.AssertNotCalled(t, "UpdateMetadata")
	})

	t.Run("replaces metadata", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{})

		want := stowgate.Metadata{Visibility: stowgate.VisibilityPrivate}
		service.On("UpdateMetadata", mock.Anything, "a.txt", want).Return(nil)

		req := withAuth(httptest.NewRequest(http.MethodPatch, "/a.txt", nil))
		req.Header.Set("X-Store-Visibility", "private")
		rec := serve(handler, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
		service.AssertExpectations(t)
	})

	t.Run("missing object", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{})

		service.On("UpdateMetadata", mock.Anything, "a.txt", mock.Anything).
			Return(&stowgate.BackendError{Op: "copy", StatusCode: 404, Code: "NoSuchKey", Err: errors.New("no such key")})

		rec := serve(handler, withAuth(httptest.NewRequest(http.MethodPatch, "/a.txt", nil)))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	})
}

func TestHandler_Delete(t *testing.T) {
	t.Run("without auth", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{})

		rec := serve(handler, httptest.NewRequest(http.MethodDelete, "/a.txt", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized", rec.Body.String())
		service.AssertNotCalled(t, "Delete")
	})

	t.Run("success", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{})
		service.On("Delete", mock.Anything, "a.txt").Return(nil)

		rec := serve(handler, withAuth(httptest.NewRequest(http.MethodDelete, "/a.txt", nil)))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
	})

	t.Run("backend auth failures keep their status", func(t *testing.T) {
		for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
			handler, service := newTestHandler(t, gatehttp.HandlerConfig{})
			cause := &stowgate.BackendError{Op: "delete", StatusCode: status, Code: "AccessDenied", Err: errors.New("access denied")}
			service.On("Delete", mock.Anything, "a.txt").Return(cause)

			rec := serve(handler, withAuth(httptest.NewRequest(http.MethodDelete, "/a.txt", nil)))

			assert.Equal(t, status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			resp := decodeError(t, rec)
			assert.Equal(t, "AccessDenied", resp.Code)
			assert.NotEmpty(t, resp.Error)
		}
	})

	t.Run("backend failure without code", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{})
		service.On("Delete", mock.Anything, "a.txt").Return(errors.New("connection reset"))

		rec := serve(handler, withAuth(httptest.NewRequest(http.MethodDelete, "/a.txt", nil)))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "Unknown", resp.Code)
		assert.Contains(t, resp.Error, "connection reset")
	})

	t.Run("backend not found is a failure", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{})
		cause := &stowgate.BackendError{Op: "delete", StatusCode: http.StatusNotFound, Code: "NoSuchKey", Err: errors.New("no such key")}
		service.On("Delete", mock.Anything, "a.txt").Return(fmt.Errorf("delete object a.txt: %w", cause))

		rec := serve(handler, withAuth(httptest.NewRequest(http.MethodDelete, "/a.txt", nil)))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "NoSuchKey", resp.Code)
		assert.Contains(t, resp.Error, "no such key")
	})
}

func TestHandler_List(t *testing.T) {
	t.Run("requires auth", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{ListEnabled: true})

		rec := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		service.AssertNotCalled(t, "List")
	})

	t.Run("passes query", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{ListEnabled: true})

		expected := stowgate.ListResult{
			Items:      []stowgate.ObjectInfo{{Key: "docs/a.txt", Size: 3}},
			NextCursor: "docs/a.txt",
		}
		service.On("List", mock.Anything, stowgate.ListQuery{Prefix: "docs/", Limit: 50, Cursor: "c1"}).Return(expected, nil)

		rec := serve(handler, withAuth(httptest.NewRequest(http.MethodGet, "/?prefix=docs/&limit=50&cursor=c1", nil)))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var result stowgate.ListResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
		assert.Equal(t, "docs/a.txt", result.Items[0].Key)
		assert.Equal(t, "docs/a.txt", result.NextCursor)
		service.AssertExpectations(t)
	})

	t.Run("invalid limit uses default", func(t *testing.T) {
		handler, service := newTestHandler(t, gatehttp.HandlerConfig{ListEnabled: true})
		service.On("List", mock.Anything, stowgate.ListQuery{}).Return(stowgate.ListResult{Items: []stowgate.ObjectInfo{}}, nil)

		rec := serve(handler, withAuth(httptest.NewRequest(http.MethodGet, "/?limit=lots", nil)))

		assert.Equal(t, http.StatusOK, rec.Code)
		service.AssertExpectations(t)
	})
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler(t, gatehttp.HandlerConfig{})

	for _, method := range []string{http.MethodPost, http.MethodOptions, "PROPFIND"} {
		t.Run(method, func(t *testing.T) {
			rec := serve(handler, withAuth(httptest.NewRequest(method, "/a.txt", nil)))

			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assert.Equal(t, "Method not allowed", rec.Body.String())
		})
	}
}

func TestHandler_CORS(t *testing.T) {
	handler, service := newTestHandler(t, gatehttp.HandlerConfig{
		CORS: gatehttp.CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"https://app.example.com"},
			AllowedMethods: []string{"GET", "PUT", "PATCH", "DELETE"},
			ExposedHeaders: []string{"X-Store-Visibility", "X-Store-Type", "ETag"},
		},
	})

	info := stowgate.ObjectInfo{Key: "a.txt", Size: 1, Metadata: stowgate.Metadata{Visibility: stowgate.VisibilityPublic}}
	service.On("Get", mock.Anything, "a.txt").Return(info, body("x"), nil)

	req := httptest.NewRequest(http.MethodGet, "/a.txt", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := serve(handler, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Store-Visibility")
}
