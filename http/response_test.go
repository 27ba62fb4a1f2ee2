package http_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sagarc03/stowgate"
	gatehttp "github.com/sagarc03/stowgate/http"
	"github.com/stretchr/testify/assert"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "not found",
			err:        fmt.Errorf("update metadata a.txt: %w", stowgate.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   "NotFound",
		},
		{
			name:       "invalid input",
			err:        fmt.Errorf("put object: %w", stowgate.ErrInvalidInput),
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_input",
		},
		{
			name:       "backend unauthorized",
			err:        &stowgate.BackendError{Op: "delete", StatusCode: 401, Code: "InvalidAccessKeyId", Err: errors.New("bad key")},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "InvalidAccessKeyId",
		},
		{
			name:       "backend forbidden",
			err:        &stowgate.BackendError{Op: "delete", StatusCode: 403, Err: errors.New("denied")},
			wantStatus: http.StatusForbidden,
			wantCode:   "Unknown",
		},
		{
			name:       "backend failure",
			err:        &stowgate.BackendError{Op: "put", StatusCode: 503, Code: "SlowDown", Err: errors.New("slow down")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "SlowDown",
		},
		{
			name:       "plain error",
			err:        errors.New("some unexpected error"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			gatehttp.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestHandleError_ExposesBackendMessage(t *testing.T) {
	rec := httptest.NewRecorder()

	gatehttp.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("bucket does not exist"))

	assert.Contains(t, decodeError(t, rec).Error, "bucket does not exist")
}

func TestWriteText(t *testing.T) {
	rec := httptest.NewRecorder()

	gatehttp.WriteText(rec, http.StatusTeapot, "short and stout")

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	err := gatehttp.WriteJSON(rec, http.StatusOK, map[string]string{"key": "value"})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"value"}`, rec.Body.String())
}
