package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	xerrors "cpaas-console/internal/pkg/errors"
	"cpaas-console/internal/pkg/jwt"
	"cpaas-console/internal/pkg/session"

	"github.com/gin-gonic/gin"
	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeValidator struct {
	expires time.Time
}

func (f fakeValidator) ValidateToken(_ context.Context, token string) (*jwt.Claims, *session.SessionData, error) {
	if token != "good" {
		return nil, nil, xerrors.ErrUnauthorized
	}
	claims := &jwt.Claims{OperatorID: "op-1", Provider: "google"}
	claims.RegisteredClaims = gjwt.RegisteredClaims{ID: "jti-1", ExpiresAt: gjwt.NewNumericDate(f.expires)}
	return claims, &session.SessionData{BackendToken: "backend-tok"}, nil
}

func TestAuthSetsContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	expires := time.Now().Add(time.Hour).Truncate(time.Second)

	r := gin.New()
	r.GET("/me", NewAuthMiddleware(fakeValidator{expires: expires}).Auth(), func(c *gin.Context) {
		token, _ := GetBackendToken(c)
		c.JSON(http.StatusOK, gin.H{
			"operator": MustGetOperatorID(c),
			"jti":      MustGetJTI(c),
			"backend":  token,
			"provider": GetProvider(c),
			"expires":  GetTokenExpiry(c).Unix(),
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"operator":"op-1","jti":"jti-1","backend":"backend-tok","provider":"google","expires":`+
		strconv.FormatInt(expires.Unix(), 10)+`}`, w.Body.String())

	// query fallback
	req = httptest.NewRequest(http.MethodGet, "/me?token=good", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", NewAuthMiddleware(fakeValidator{}).Auth(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, header := range []string{"", "Bearer bad", "Basic good"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}
}

func TestRequestIDAndRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), RecoveryMiddleware(zap.NewNop()), LoggingMiddleware(zap.NewNop()))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Contains(t, w.Body.String(), `"error":"internal server error"`)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Body.String())
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware("https://console.example"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://console.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
