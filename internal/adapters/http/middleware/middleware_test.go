package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

const uuidV4Pattern = `^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// captureLogger returns a debug-level JSON logger and a function decoding
// every record written so far.
func captureLogger(t *testing.T) (*slog.Logger, func() []map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	return logger, func() []map[string]any {
		var records []map[string]any
		for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
			if line == "" {
				continue
			}

			var rec map[string]any
			require.NoError(t, json.Unmarshal([]byte(line), &rec))
			records = append(records, rec)
		}

		return records
	}
}

func serve(router *gin.Engine, method, target string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, http.NoBody)
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	router.ServeHTTP(w, req)

	return w
}

func TestIDMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		middleware  gin.HandlerFunc
		header      string
		fromGin     func(*gin.Context) string
		fromContext func(context.Context) string
	}{
		{"request id", RequestID(), HeaderRequestID, GetRequestID, RequestIDFromContext},
		{"correlation id", CorrelationID(), HeaderCorrelationID, GetCorrelationID, CorrelationIDFromContext},
	}

	for _, tt := range tests {
		t.Run(tt.name+" passes through", func(t *testing.T) {
			var ginID, ctxID string

			router := gin.New()
			router.Use(tt.middleware)
			router.GET("/quotes", func(c *gin.Context) {
				ginID = tt.fromGin(c)
				ctxID = tt.fromContext(c.Request.Context())
				c.Status(http.StatusOK)
			})

			w := serve(router, http.MethodGet, "/quotes", http.Header{tt.header: {"caller-123"}})

			assert.Equal(t, "caller-123", w.Header().Get(tt.header))
			assert.Equal(t, "caller-123", ginID)
			assert.Equal(t, "caller-123", ctxID)
		})

		t.Run(tt.name+" generated", func(t *testing.T) {
			var ginID, ctxID string

			router := gin.New()
			router.Use(tt.middleware)
			router.GET("/quotes", func(c *gin.Context) {
				ginID = tt.fromGin(c)
				ctxID = tt.fromContext(c.Request.Context())
				c.Status(http.StatusOK)
			})

			w := serve(router, http.MethodGet, "/quotes", nil)

			assert.Regexp(t, uuidV4Pattern, ginID)
			assert.Equal(t, ginID, ctxID)
			assert.Equal(t, ginID, w.Header().Get(tt.header))
		})

		t.Run(tt.name+" oversized header replaced", func(t *testing.T) {
			var ginID string

			router := gin.New()
			router.Use(tt.middleware)
			router.GET("/quotes", func(c *gin.Context) {
				ginID = tt.fromGin(c)
				c.Status(http.StatusOK)
			})

			serve(router, http.MethodGet, "/quotes", http.Header{tt.header: {strings.Repeat("x", maxIDLength+1)}})

			assert.Regexp(t, uuidV4Pattern, ginID)
		})
	}
}

func TestIDMiddleware_EnrichesContextLogger(t *testing.T) {
	logger, records := captureLogger(t)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), logger))
		c.Next()
	}, RequestID(), CorrelationID())
	router.GET("/quotes", func(c *gin.Context) {
		logging.FromContext(c.Request.Context()).Info("handled")
		c.Status(http.StatusOK)
	})

	serve(router, http.MethodGet, "/quotes", http.Header{
		HeaderRequestID:     {"req-1"},
		HeaderCorrelationID: {"corr-1"},
	})

	got := records()
	require.Len(t, got, 1)
	assert.Equal(t, "req-1", got[0]["request_id"])
	assert.Equal(t, "corr-1", got[0]["correlation_id"])
}

func TestGetIDs_NotSet(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Empty(t, GetRequestID(c))
	assert.Empty(t, GetCorrelationID(c))

	c.Set(ContextKeyRequestID, 42)
	assert.Empty(t, GetRequestID(c))

	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.Empty(t, CorrelationIDFromContext(context.Background()))
}

func TestContextIDs_StoredTogether(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req")
	ctx = ContextWithCorrelationID(ctx, "corr")

	assert.Equal(t, "req", RequestIDFromContext(ctx))
	assert.Equal(t, "corr", CorrelationIDFromContext(ctx))
}

func TestLogging_LevelsByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusCreated, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusBadRequest, "WARN"},
		{http.StatusServiceUnavailable, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			logger, records := captureLogger(t)

			router := gin.New()
			router.Use(Logging(logger))
			router.GET("/api/v1/quotes", func(c *gin.Context) { c.Status(tt.status) })

			serve(router, http.MethodGet, "/api/v1/quotes?category=Life", nil)

			got := records()
			require.Len(t, got, 2)

			assert.Equal(t, "request started", got[0]["msg"])
			assert.Equal(t, "DEBUG", got[0]["level"])

			assert.Equal(t, "request completed", got[1]["msg"])
			assert.Equal(t, tt.level, got[1]["level"])
			assert.Equal(t, "/api/v1/quotes?category=Life", got[1]["path"])
			assert.Equal(t, "/api/v1/quotes", got[1]["route"])
			assert.InDelta(t, float64(tt.status), got[1]["status"], 0)
		})
	}
}

func TestLogging_SkipsPaths(t *testing.T) {
	logger, records := captureLogger(t)

	router := gin.New()
	router.Use(Logging(logger, "/favicon.ico"))
	router.GET("/-/live", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/-/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/favicon.ico", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	serve(router, http.MethodGet, "/-/live", nil)
	serve(router, http.MethodGet, "/-/metrics", nil)
	w := serve(router, http.MethodGet, "/favicon.ico", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, records())
}

func TestLevelForStatus(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, levelForStatus(http.StatusNoContent))
	assert.Equal(t, slog.LevelWarn, levelForStatus(http.StatusConflict))
	assert.Equal(t, slog.LevelError, levelForStatus(http.StatusInternalServerError))
}

func TestRecovery(t *testing.T) {
	logger, records := captureLogger(t)

	router := gin.New()
	router.Use(Recovery(logger))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/boom", func(*gin.Context) { panic("store exploded") })

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/ok", nil).Code)

	w := serve(router, http.MethodGet, "/boom", http.Header{HeaderRequestID: {"req-9"}})

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrorCodeInternal, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "store exploded")
	assert.Equal(t, "req-9", resp.TraceID)

	got := records()
	require.Len(t, got, 1)
	assert.Equal(t, "panic recovered", got[0]["msg"])
	assert.Equal(t, "store exploded", got[0]["panic"])
	assert.Contains(t, got[0]["stack"], "runtime/debug.Stack")
}

func TestRecovery_AfterPartialWrite(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(discardLogger()))
	router.GET("/partial", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late failure")
	})

	w := serve(router, http.MethodGet, "/partial", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "partial", w.Body.String())
}

func TestTimeout_SetsDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool

	router := gin.New()
	router.Use(Timeout(5 * time.Second))
	router.GET("/quotes", func(c *gin.Context) {
		deadline, ok = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})

	w := serve(router, http.MethodGet, "/quotes", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(5*time.Second), deadline, time.Second)
}

func TestTimeout_RespondsWhenHandlerGaveUp(t *testing.T) {
	router := gin.New()
	router.Use(Timeout(20 * time.Millisecond))
	router.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})

	w := serve(router, http.MethodGet, "/slow", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrorCodeTimeout, resp.Error.Code)
}

func TestTimeout_KeepsHandlerResponse(t *testing.T) {
	router := gin.New()
	router.Use(Timeout(20 * time.Millisecond))
	router.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
		c.JSON(http.StatusServiceUnavailable, gin.H{"handled": true})
	})

	w := serve(router, http.MethodGet, "/slow", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"handled":true}`, w.Body.String())
}

func TestTimeout_SkipPathsAndDisabled(t *testing.T) {
	for _, mw := range []gin.HandlerFunc{Timeout(time.Second, "/sync"), Timeout(0)} {
		var hasDeadline bool

		router := gin.New()
		router.Use(mw)
		router.POST("/sync", func(c *gin.Context) {
			_, hasDeadline = c.Request.Context().Deadline()
			c.Status(http.StatusOK)
		})

		serve(router, http.MethodPost, "/sync", nil)

		assert.False(t, hasDeadline)
	}
}
