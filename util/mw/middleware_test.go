package mw_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/tablelog/util/log"
	"github.com/wkalt/tablelog/util/mw"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return buf
}

func TestWithRequestID(t *testing.T) {
	ctx := context.Background()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Infof(r.Context(), "test")
	})
	t.Run("generated", func(t *testing.T) {
		buf := captureLogs(t)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/", nil)
		require.NoError(t, err)
		recorder := httptest.NewRecorder()
		mw.WithRequestID(handler).ServeHTTP(recorder, req)
		id := recorder.Header().Get(mw.RequestIDHeader)
		assert.Len(t, id, 36)
		assert.Contains(t, buf.String(), "request_id="+id)
	})
	t.Run("supplied by client", func(t *testing.T) {
		buf := captureLogs(t)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/", nil)
		require.NoError(t, err)
		req.Header.Set(mw.RequestIDHeader, "abc123")
		recorder := httptest.NewRecorder()
		mw.WithRequestID(handler).ServeHTTP(recorder, req)
		assert.Equal(t, "abc123", recorder.Header().Get(mw.RequestIDHeader))
		assert.Contains(t, buf.String(), "request_id=abc123")
	})
}

func TestWithRequestLogging(t *testing.T) {
	buf := captureLogs(t)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	req := httptest.NewRequest(http.MethodPost, "/tables/events/commits", nil)
	recorder := httptest.NewRecorder()
	mw.WithRequestLogging(handler).ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Contains(t, buf.String(), "status=409")
	assert.Contains(t, buf.String(), "path=/tables/events/commits")
	assert.Contains(t, buf.String(), "method=POST")
}
