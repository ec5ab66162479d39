package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	xerrors "cpaas-console/internal/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{xerrors.Validation("body is required"), http.StatusBadRequest},
		{fmt.Errorf("login: %w", xerrors.ErrAuthentication), http.StatusUnauthorized},
		{xerrors.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("flow done: %w", xerrors.ErrConflict), http.StatusConflict},
		{xerrors.ErrRateLimited, http.StatusTooManyRequests},
		{fmt.Errorf("roles: %w", xerrors.ErrUpstream), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), "%v", tc.err)
	}
}

func TestFromErrorWritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	FromError(c, "send failed", xerrors.Validation("recipients list is empty"))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, c.IsAborted())

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "send failed", body.Message)
	assert.Contains(t, body.Error, "recipients list is empty")
}

func TestShortcutHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name  string
		write func(c *gin.Context)
		code  int
		error string
	}{
		{"validation", func(c *gin.Context) { ValidationError(c, "invalid request", errors.New("email is required")) }, http.StatusBadRequest, "email is required"},
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "invalid or expired token", xerrors.ErrUnauthorized) }, http.StatusUnauthorized, xerrors.ErrUnauthorized.Error()},
		{"not found", func(c *gin.Context) { NotFound(c, "route not found") }, http.StatusNotFound, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tc.write(c)

			require.Equal(t, tc.code, w.Code)
			var body Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tc.error, body.Error)
		})
	}
}
