package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mautops/procurement-gin/internal/api"
	"github.com/mautops/procurement-gin/internal/config"
	"github.com/mautops/procurement-gin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRequestIDMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(api.RequestIDMiddleware())
	router.GET("/ping", func(c *gin.Context) {
		assert.Equal(t, c.GetString(api.ContextRequestID), service.GetRequestID(c.Request.Context()))
		c.String(http.StatusOK, "pong")
	})

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Len(t, w.Header().Get(api.HeaderRequestID), 36)
	})

	t.Run("reused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(api.HeaderRequestID, "req-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, "req-123", w.Header().Get(api.HeaderRequestID))
	})

	t.Run("too long", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(api.HeaderRequestID, strings.Repeat("x", 65))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Len(t, w.Header().Get(api.HeaderRequestID), 36)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(api.RateLimitMiddleware(1, 1))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests", decodeError(t, w).Message)
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	router := gin.New()
	router.Use(api.RateLimitMiddleware(0, 0))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(api.CORSMiddleware(config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
		req.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
	})
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(api.SecurityHeadersMiddleware(true))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestI18nMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(api.I18nMiddleware())
	router.GET("/lang", func(c *gin.Context) {
		c.String(http.StatusOK, api.GetLanguage(c))
	})

	tests := []struct {
		name   string
		url    string
		header string
		want   string
	}{
		{name: "default", url: "/lang", want: "en"},
		{name: "accept language", url: "/lang", header: "th-TH,th;q=0.9,en;q=0.8", want: "th"},
		{name: "query wins", url: "/lang?lang=en", header: "th", want: "en"},
		{name: "unsupported", url: "/lang?lang=fr", want: "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Accept-Language", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Body.String())
		})
	}
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
		wantDetail bool
	}{
		{
			name:       "validation",
			err:        service.ValidationError(service.CodeNoValidItems, "no items"),
			wantStatus: http.StatusBadRequest,
			wantReason: service.CodeNoValidItems,
			wantDetail: true,
		},
		{
			name:       "authorization",
			err:        service.AuthorizationError(service.CodeNotAuthorized, "level 0"),
			wantStatus: http.StatusForbidden,
			wantReason: service.CodeNotAuthorized,
			wantDetail: true,
		},
		{
			name:       "not found",
			err:        service.NotFoundError("purchase request", "x"),
			wantStatus: http.StatusNotFound,
			wantReason: service.CodeNotFound,
			wantDetail: true,
		},
		{
			name:       "conflict",
			err:        service.ConflictError(service.CodeInvalidTransition, "not pending"),
			wantStatus: http.StatusConflict,
			wantReason: service.CodeInvalidTransition,
			wantDetail: true,
		},
		{
			name:       "store",
			err:        errors.New("connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantReason: service.CodeStoreFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(api.RequestIDMiddleware(), api.I18nMiddleware())
			router.GET("/fail", func(c *gin.Context) { api.HandleServiceError(c, tt.err) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.wantReason, resp.Reason)
			assert.NotEmpty(t, resp.RequestID)
			assert.NotEqual(t, "error."+tt.wantReason, resp.Message)
			if tt.wantDetail {
				assert.NotEmpty(t, resp.Detail)
			} else {
				assert.NotContains(t, w.Body.String(), "connection refused")
			}
		})
	}
}

func TestHandleServiceError_Localized(t *testing.T) {
	router := gin.New()
	router.Use(api.I18nMiddleware())
	router.GET("/fail", func(c *gin.Context) {
		api.HandleServiceError(c, service.ValidationError(service.CodeVendorRequired, "vendor required"))
	})

	req := httptest.NewRequest(http.MethodGet, "/fail?lang=th", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "กรุณาเลือกผู้ขาย", decodeError(t, w).Message)
}

func TestErrorHandlerMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(api.ErrorHandlerMiddleware())
	router.GET("/api-error", func(c *gin.Context) {
		_ = c.Error(api.WrapError(errors.New("boom"), http.StatusBadGateway, "upstream failed"))
	})
	router.GET("/service-error", func(c *gin.Context) {
		_ = c.Error(service.NotFoundError("project", "p1"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api-error", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/service-error", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, service.CodeNotFound, decodeError(t, w).Reason)
}
