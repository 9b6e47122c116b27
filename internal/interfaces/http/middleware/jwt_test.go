package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/interfaces/http/dto"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret: "test-secret-key-at-least-32-chars",
		Issuer: "storefront-identity",
	})
}

func issue(t *testing.T, svc *auth.JWTService, p shared.Principal, ttl time.Duration) string {
	t.Helper()
	token, err := svc.Issue(p, ttl)
	require.NoError(t, err)
	return token
}

func authRouter(svc *auth.JWTService, admin bool) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), JWTAuth(JWTMiddlewareConfig{Validator: svc, SkipPaths: []string{"/health"}}))
	if admin {
		router.Use(RequireAdmin())
	}
	handler := func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		c.JSON(http.StatusOK, gin.H{
			"ok":      ok,
			"user_id": p.UserID.String(),
			"logged":  c.GetString(logger.GinUserIDKey),
			"ctx":     logger.GetUserID(c.Request.Context()),
		})
	}
	router.GET("/test", handler)
	router.GET("/health", handler)
	return router
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp
}

func TestJWTAuth_ValidToken(t *testing.T) {
	svc := newTestJWTService()
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+issue(t, svc, shared.Principal{UserID: userID}, time.Hour))
	w := httptest.NewRecorder()
	authRouter(svc, false).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, userID.String(), body["user_id"])
	assert.Equal(t, userID.String(), body["logged"])
	assert.Equal(t, userID.String(), body["ctx"])
}

func TestJWTAuth_Rejections(t *testing.T) {
	svc := newTestJWTService()
	other := auth.NewJWTService(config.JWTConfig{Secret: "another-secret-key-of-32-characters", Issuer: "storefront-identity"})
	p := shared.Principal{UserID: uuid.New()}

	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"missing header", "", dto.ErrCodeUnauthorized},
		{"basic scheme", "Basic dXNlcjpwYXNz", dto.ErrCodeUnauthorized},
		{"empty bearer", "Bearer ", dto.ErrCodeUnauthorized},
		{"garbage", "Bearer not-a-jwt", dto.ErrCodeTokenInvalid},
		{"wrong secret", BearerPrefix + issue(t, other, p, time.Hour), dto.ErrCodeTokenInvalid},
		{"expired", BearerPrefix + issue(t, svc, p, -time.Hour), dto.ErrCodeTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			authRouter(svc, false).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			resp := decodeError(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, w.Header().Get(HeaderRequestID), resp.RequestID)
			assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestJWTAuth_SkipPaths(t *testing.T) {
	w := httptest.NewRecorder()
	authRouter(newTestJWTService(), false).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":false`)
}

func TestRequireAdmin(t *testing.T) {
	svc := newTestJWTService()

	t.Run("admin passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+issue(t, svc, shared.Principal{UserID: uuid.New(), Roles: []string{shared.RoleAdmin}}, time.Hour))
		w := httptest.NewRecorder()
		authRouter(svc, true).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("customer is forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+issue(t, svc, shared.Principal{UserID: uuid.New(), Roles: []string{"customer"}}, time.Hour))
		w := httptest.NewRecorder()
		authRouter(svc, true).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, dto.ErrCodeForbidden, decodeError(t, w).Error.Code)
	})

	t.Run("no principal is unauthorized", func(t *testing.T) {
		router := gin.New()
		router.Use(RequireAdmin())
		router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestGetPrincipal_NotSet(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetPrincipal(c)
	assert.False(t, ok)
}
