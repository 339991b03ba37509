package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/infrastructure/auth"
	"github.com/retailpos/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService(expiration time.Duration) *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-for-middleware-tests",
		AccessTokenExpiration: expiration,
		Issuer:                "pos-backend-test",
	})
}

func issueTestToken(t *testing.T, svc *auth.JWTService, tenantID, userID uuid.UUID) string {
	t.Helper()
	token, err := svc.GenerateAccessToken(auth.GenerateTokenInput{
		TenantID: tenantID,
		UserID:   userID,
		Username: "cashier-7",
	})
	require.NoError(t, err)
	return token.Token
}

func TestJWTAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := newTestJWTService(time.Hour)
	tenantID := uuid.New()
	userID := uuid.New()

	newRouter := func(cfg JWTMiddlewareConfig) *gin.Engine {
		router := gin.New()
		router.Use(JWTAuthMiddlewareWithConfig(cfg))
		router.GET("/protected", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"tenant_id": GetJWTTenantID(c),
				"user_id":   GetJWTUserID(c),
				"username":  GetJWTUsername(c),
			})
		})
		router.GET("/health", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})
		return router
	}

	t.Run("valid token passes and populates context", func(t *testing.T) {
		router := newRouter(JWTMiddlewareConfig{JWTService: svc})
		token := issueTestToken(t, svc, tenantID, userID)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), tenantID.String())
		assert.Contains(t, w.Body.String(), userID.String())
		assert.Contains(t, w.Body.String(), "cashier-7")
	})

	t.Run("missing authorization header", func(t *testing.T) {
		router := newRouter(JWTMiddlewareConfig{JWTService: svc})

		req := httptest.NewRequest("GET", "/protected", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
	})

	t.Run("malformed authorization header", func(t *testing.T) {
		router := newRouter(JWTMiddlewareConfig{JWTService: svc})

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set(AuthHeaderKey, "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		expiredSvc := newTestJWTService(-time.Minute)
		router := newRouter(JWTMiddlewareConfig{JWTService: expiredSvc})
		token := issueTestToken(t, expiredSvc, tenantID, userID)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "TOKEN_EXPIRED")
	})

	t.Run("token signed with wrong secret", func(t *testing.T) {
		otherSvc := auth.NewJWTService(config.JWTConfig{
			Secret:                "a-different-secret",
			AccessTokenExpiration: time.Hour,
			Issuer:                "pos-backend-test",
		})
		router := newRouter(JWTMiddlewareConfig{JWTService: svc})
		token := issueTestToken(t, otherSvc, tenantID, userID)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("skip paths bypass authentication", func(t *testing.T) {
		router := newRouter(JWTMiddlewareConfig{
			JWTService: svc,
			SkipPaths:  []string{"/health"},
		})

		req := httptest.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("skip path prefixes bypass authentication", func(t *testing.T) {
		router := gin.New()
		router.Use(JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{
			JWTService:       svc,
			SkipPathPrefixes: []string{"/public"},
		}))
		router.GET("/public/info", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})

		req := httptest.NewRequest("GET", "/public/info", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("custom error handler", func(t *testing.T) {
		var handlerCalled bool
		router := newRouter(JWTMiddlewareConfig{
			JWTService: svc,
			OnError: func(c *gin.Context, err error) {
				handlerCalled = true
				c.AbortWithStatus(http.StatusTeapot)
			},
		})

		req := httptest.NewRequest("GET", "/protected", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusTeapot, w.Code)
	})
}

func TestOptionalJWTAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := newTestJWTService(time.Hour)
	tenantID := uuid.New()
	userID := uuid.New()

	router := gin.New()
	router.Use(OptionalJWTAuthMiddleware(svc))
	router.GET("/maybe", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant_id": GetJWTTenantID(c)})
	})

	t.Run("no token still passes", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/maybe", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"tenant_id":""`)
	})

	t.Run("invalid token still passes without claims", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/maybe", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+"garbage")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"tenant_id":""`)
	})

	t.Run("valid token populates claims", func(t *testing.T) {
		token := issueTestToken(t, svc, tenantID, userID)

		req := httptest.NewRequest("GET", "/maybe", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), tenantID.String())
	})
}

func TestGetJWTClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("returns nil when not set", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		assert.Nil(t, GetJWTClaims(c))
	})

	t.Run("returns claims when set", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		claims := &auth.Claims{TenantID: "t1", UserID: "u1"}
		c.Set(JWTClaimsKey, claims)

		got := GetJWTClaims(c)
		require.NotNil(t, got)
		assert.Equal(t, "t1", got.TenantID)
	})
}
