package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// findRequestLog returns the "HTTP Request" entry from recorded logs
func findRequestLog(t *testing.T, recorded *observer.ObservedLogs) *observer.LoggedEntry {
	t.Helper()
	for _, entry := range recorded.All() {
		if entry.Message == "HTTP Request" {
			e := entry
			return &e
		}
	}
	require.FailNow(t, "HTTP Request log entry not found")
	return nil
}

func serveLogged(level zapcore.Level, register func(*gin.Engine), req *http.Request) (*httptest.ResponseRecorder, *observer.ObservedLogs) {
	core, recorded := observer.New(level)
	router := gin.New()
	router.Use(GinMiddleware(zap.New(core)))
	register(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w, recorded
}

func TestGinMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/stock/receipts", nil)
	w, recorded := serveLogged(zapcore.InfoLevel, func(r *gin.Engine) {
		r.GET("/api/v1/stock/receipts", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "ok"})
		})
	}, req)

	assert.Equal(t, http.StatusOK, w.Code)
	entry := findRequestLog(t, recorded)
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
}

func TestGinMiddleware_RequestIDPropagated(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("request_id", "req-abc-123")
		c.Next()
	})
	router.Use(GinMiddleware(zap.New(core)))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))

	entry := findRequestLog(t, recorded)
	fields := fieldMap(entry)
	require.Contains(t, fields, "request_id")
	assert.Equal(t, "req-abc-123", fields["request_id"].String)
}

func TestGinMiddleware_ClientErrorLogsWarn(t *testing.T) {
	req := httptest.NewRequest("POST", "/allocations", nil)
	w, recorded := serveLogged(zapcore.WarnLevel, func(r *gin.Engine) {
		r.POST("/allocations", func(c *gin.Context) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "insufficient stock"})
		})
	}, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	entry := findRequestLog(t, recorded)
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
}

func TestGinMiddleware_ServerErrorLogsError(t *testing.T) {
	req := httptest.NewRequest("GET", "/boom", nil)
	w, recorded := serveLogged(zapcore.ErrorLevel, func(r *gin.Engine) {
		r.GET("/boom", func(c *gin.Context) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		})
	}, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	entry := findRequestLog(t, recorded)
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
}

func TestGinMiddleware_QueryLogged(t *testing.T) {
	req := httptest.NewRequest("GET", "/allocations?sale_line_id=s-1&page=1", nil)
	_, recorded := serveLogged(zapcore.InfoLevel, func(r *gin.Engine) {
		r.GET("/allocations", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "ok"})
		})
	}, req)

	entry := findRequestLog(t, recorded)
	fields := fieldMap(entry)
	require.Contains(t, fields, "query")
	assert.Contains(t, fields["query"].String, "sale_line_id=s-1")
}

func TestGinMiddleware_StandardFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/receipts", nil)
	req.Header.Set("User-Agent", "pos-client/1.0")
	_, recorded := serveLogged(zapcore.InfoLevel, func(r *gin.Engine) {
		r.POST("/receipts", func(c *gin.Context) {
			c.JSON(http.StatusCreated, gin.H{"id": "r-1"})
		})
	}, req)

	entry := findRequestLog(t, recorded)
	fields := fieldMap(entry)
	for _, key := range []string{"status", "latency", "client_ip", "user_agent", "method", "path"} {
		assert.Contains(t, fields, key)
	}
}

func TestRecovery(t *testing.T) {
	core, recorded := observer.New(zapcore.ErrorLevel)
	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) {
		panic("allocation blew up")
	})

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		router.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	logs := recorded.All()
	require.NotEmpty(t, logs)
	assert.Contains(t, logs[0].Message, "Panic recovered")
}

func TestGetGinLogger(t *testing.T) {
	var retrieved *zap.Logger

	core, _ := observer.New(zapcore.InfoLevel)
	router := gin.New()
	router.Use(GinMiddleware(zap.New(core)))
	router.GET("/test", func(c *gin.Context) {
		retrieved = GetGinLogger(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.NotNil(t, retrieved)
}

func TestGetGinLogger_NotSet(t *testing.T) {
	var retrieved *zap.Logger

	router := gin.New()
	router.GET("/test", func(c *gin.Context) {
		retrieved = GetGinLogger(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	// Falls back to a no-op logger rather than nil
	require.NotNil(t, retrieved)
	assert.NotPanics(t, func() {
		retrieved.Info("test")
	})
}

// fieldMap indexes a log entry's fields by key
func fieldMap(entry *observer.LoggedEntry) map[string]zapcore.Field {
	fields := make(map[string]zapcore.Field, len(entry.Context))
	for _, f := range entry.Context {
		fields[f.Key] = f
	}
	return fields
}
