package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zoobzio/optz"
	"github.com/zoobzio/optz/internal/logging"
)

const scenario = "int a = 2 + 3;\nfor (int i = 0; i < 3; i++) { b = i * 2; c = i * 2; }"

func setupTestServer(t *testing.T, p *optz.Pipeline) (*Server, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	s := New(p, &logging.Logger{Logger: zap.New(core)})
	t.Cleanup(func() { p.Close() })
	return s, logs
}

func upload(t *testing.T, field, name, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		part, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/optimize", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestOptimize(t *testing.T) {
	s, _ := setupTestServer(t, optz.New())

	t.Run("uploaded file", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, upload(t, "file", "main.c", scenario))

		require.Equal(t, http.StatusOK, w.Code)
		var resp OptimizeResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		assert.Equal(t, scenario, resp.OriginalCode)
		assert.True(t, strings.HasPrefix(resp.Code, "int temp_0 = 0 * 2;"))
		assert.Equal(t, "C", resp.Language)
		assert.Len(t, resp.Insights, 4)
		assert.Len(t, resp.Timings, 9)
		assert.Equal(t, optz.TotalStep, resp.Timings[8].Step)
		assert.Equal(t, int64(8), resp.Before.StackBytes)
		assert.NotEmpty(t, resp.RunID)
	})

	t.Run("missing file", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, upload(t, "", "", ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), MsgNoFile)
	})

	t.Run("empty file", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, upload(t, "file", "empty.c", ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), MsgNoFile)
	})
}

func TestOptimizeTooLarge(t *testing.T) {
	s, _ := setupTestServer(t, optz.New().WithMaxInputBytes(8))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, upload(t, "file", "main.c", scenario))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), MsgOptimizeFail)
	assert.Zero(t, s.pipeline.Metrics().Counter(optz.PipelineRunsTotal).Value())

	t.Run("body over the cap", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, upload(t, "file", "big.c", strings.Repeat("x", 2*multipartOverhead)))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), MsgOptimizeFail)
	})

	t.Run("unlimited pipeline", func(t *testing.T) {
		s, _ := setupTestServer(t, optz.New().WithMaxInputBytes(0))
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, upload(t, "file", "main.c", scenario))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestOptimizeEdited(t *testing.T) {
	t.Run("plain text body", func(t *testing.T) {
		s, _ := setupTestServer(t, optz.New())

		req := httptest.NewRequest(http.MethodPost, "/optimizeEdited", strings.NewReader("x = 40 + 2;"))
		req.Header.Set("Content-Type", "text/plain")
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp EditedResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Code)
		assert.Equal(t, "x = 42;", *resp.Code)
		assert.Nil(t, resp.Error)
	})

	t.Run("rejected input", func(t *testing.T) {
		s, _ := setupTestServer(t, optz.New().WithMaxInputBytes(4))

		req := httptest.NewRequest(http.MethodPost, "/optimizeEdited", strings.NewReader("x = 40 + 2;"))
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		var resp EditedResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Nil(t, resp.Code)
		require.NotNil(t, resp.Error)
		assert.True(t, strings.HasPrefix(*resp.Error, MsgOptimizeFail))
	})
}

func TestDownload(t *testing.T) {
	s, _ := setupTestServer(t, optz.New())

	tests := []struct {
		name        string
		query       string
		wantStatus  int
		wantBody    string
		wantHeader  string
		checkHeader bool
	}{
		{
			name:        "attachment",
			query:       "?code=int+a%3B&filename=out.c",
			wantStatus:  http.StatusOK,
			wantBody:    "int a;",
			wantHeader:  "attachment; filename=out.c",
			checkHeader: true,
		},
		{
			name:        "path is stripped from filename",
			query:       "?code=x&filename=..%2F..%2Fetc%2Fpasswd",
			wantStatus:  http.StatusOK,
			wantBody:    "x",
			wantHeader:  "attachment; filename=passwd",
			checkHeader: true,
		},
		{
			name:       "missing filename",
			query:      "?code=x",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/download"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.checkHeader {
				assert.Equal(t, tt.wantBody, w.Body.String())
				assert.Equal(t, tt.wantHeader, w.Header().Get("Content-Disposition"))
				assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestPasses(t *testing.T) {
	s, _ := setupTestServer(t, optz.New())

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/passes", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Pipeline string     `json:"pipeline"`
		Passes   []PassInfo `json:"passes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, optz.PipelineName, resp.Pipeline)
	require.Len(t, resp.Passes, 8)
	assert.Equal(t, optz.FoldConstantsName, resp.Passes[0].Name)
	assert.Equal(t, optz.HoistCodeName, resp.Passes[7].Name)
}

func TestHealthAndLogging(t *testing.T) {
	s, logs := setupTestServer(t, optz.New())

	req := httptest.NewRequest(http.MethodPost, "/optimizeEdited", strings.NewReader("return 1 + 1;"))
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, float64(1), resp["runs"])
	assert.Equal(t, float64(1), resp["successes"])

	assert.Equal(t, 2, logs.FilterMessage("request").Len())

	// Wait for async hooks to fire
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, logs.FilterMessage("optimization finished").Len())
	assert.Equal(t, 8, logs.FilterMessage("pass finished").Len())
}

func TestRun(t *testing.T) {
	s, _ := setupTestServer(t, optz.New())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout):
		t.Fatal("server did not shut down")
	}
}
