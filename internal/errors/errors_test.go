package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{BadRequest("bad"), http.StatusBadRequest},
		{Validation("invalid"), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{RateLimit("slow down"), http.StatusTooManyRequests},
		{ServiceUnavailable("draining"), http.StatusServiceUnavailable},
		{Internal("boom"), http.StatusInternalServerError},
		{New("SOMETHING_ELSE", "unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode)
		})
	}
}

func TestWriteError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cause := fmt.Errorf("strconv: %w", NotFound("no customer 9"))

	w := httptest.NewRecorder()
	WriteError(w, logger, cause, "req-1")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body struct {
		Error struct {
			Code      string `json:"code"`
			Message   string `json:"message"`
			RequestID string `json:"request_id"`
		} `json:"error"`
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.Equal(t, "no customer 9", body.Error.Message)
	assert.Equal(t, "req-1", body.Error.RequestID)
	assert.True(t, IsNotFound(cause))
}

func TestWriteError_PlainErrorIsInternal(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	w := httptest.NewRecorder()
	WriteError(w, logger, io.ErrUnexpectedEOF, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, w.Body.String(), "unexpected EOF", "causes stay out of the response")
}
