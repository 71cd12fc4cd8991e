package delivery

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"waiting-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProtectedRouter(uc usecase.AuthUsecase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(uc), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserID))
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	uc := usecase.NewAuthUsecase("secret", time.Hour, nil)
	token, err := uc.IssueToken("u1", "me@contoso.com")
	require.NoError(t, err)
	r := newProtectedRouter(uc)

	tests := []struct {
		name   string
		url    string
		header string
		status int
		body   string
	}{
		{name: "bearer header", url: "/me", header: "Bearer " + token, status: http.StatusOK, body: "u1"},
		{name: "query token", url: "/me?token=" + token, status: http.StatusOK, body: "u1"},
		{name: "missing", url: "/me", status: http.StatusUnauthorized},
		{name: "wrong scheme", url: "/me", header: "Basic " + token, status: http.StatusUnauthorized},
		{name: "garbage", url: "/me", header: "Bearer nope", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}
