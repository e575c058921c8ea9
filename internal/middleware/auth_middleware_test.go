package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripline/booking-backend/pkg/jwt"
)

func setupRouter(jwtService *jwt.Service, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(jwtService)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		userCtx, _ := GetUserContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userCtx.UserID})
	})
	router.GET("/protected", handlers...)
	return router
}

func TestAuthMiddleware(t *testing.T) {
	jwtService := jwt.NewService("test-secret", time.Hour)
	router := setupRouter(jwtService)

	t.Run("Valid Token", func(t *testing.T) {
		token, err := jwtService.Generate("user-1", []string{"customer"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "user-1")
	})

	t.Run("Missing Header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Malformed Header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Expired Token", func(t *testing.T) {
		expiredService := jwt.NewService("test-secret", -time.Minute)
		token, err := expiredService.Generate("user-1", []string{"customer"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "token_expired")
	})
}

func TestRequireRole(t *testing.T) {
	jwtService := jwt.NewService("test-secret", time.Hour)
	router := setupRouter(jwtService, RequireRole("admin", "operator"))

	t.Run("Role Granted", func(t *testing.T) {
		token, err := jwtService.Generate("admin-1", []string{"operator"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Role Denied", func(t *testing.T) {
		token, err := jwtService.Generate("user-1", []string{"customer"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestRequireCapability(t *testing.T) {
	jwtService := jwt.NewService("test-secret", time.Hour)
	checker := NewRoleChecker(map[string][]string{
		"ticket_check_in": {"admin", "operator", "conductor"},
		"reconcile":       {"admin"},
	})
	router := setupRouter(jwtService, RequireCapability(checker, "reconcile"))

	t.Run("Capability Granted", func(t *testing.T) {
		token, err := jwtService.Generate("admin-1", []string{"admin"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Capability Denied", func(t *testing.T) {
		token, err := jwtService.Generate("conductor-1", []string{"conductor"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestRoleChecker(t *testing.T) {
	checker := NewRoleChecker(map[string][]string{
		"manual_sale": {"admin", "operator"},
	})

	assert.True(t, checker.Can("operator", "manual_sale"))
	assert.False(t, checker.Can("conductor", "manual_sale"))
	assert.False(t, checker.Can("admin", "unknown_action"))
}
