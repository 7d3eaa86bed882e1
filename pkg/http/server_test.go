package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routesFunc func(e *echo.Echo)

func (f routesFunc) RegisterRoutes(e *echo.Echo) { f(e) }

type sampleRequest struct {
	Name  string `json:"name" default:"anon" validate:"max=5"`
	Level string `json:"level" validate:"omitempty,oneof=low high"`
}

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	h := routesFunc(func(e *echo.Echo) {
		e.GET("/boom", func(echo.Context) error { panic("kaboom") })
		e.GET("/conflict", func(c echo.Context) error {
			return AppErrorResponse(c, ConflictError("busy"))
		})
		e.POST("/sample", func(c echo.Context) error {
			var req sampleRequest
			if errs := ReadAndValidateRequest(c, &req); errs != nil {
				return BadRequestResponse(c, errs)
			}
			return SuccessResponse(c, req)
		})
	})
	opts = append([]ServerOption{WithMetrics("/metrics", prometheus.NewRegistry())}, opts...)
	return NewServer(h, opts...)
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestServer_Healthz(t *testing.T) {
	s := newTestServer(t)
	rec := do(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)

	down := newTestServer(t, WithHealthCheck(func(context.Context) error { return errors.New("redis down") }))
	rec = do(down, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_UNAVAILABLE")
}

func TestServer_RecoversPanics(t *testing.T) {
	s := newTestServer(t)
	rec := do(s, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_AppErrorEnvelope(t *testing.T) {
	s := newTestServer(t)
	rec := do(s, http.MethodGet, "/conflict", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusConflict, resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "ERR_CONFLICT", resp.Data[0].Code)
	assert.Equal(t, "busy", resp.Data[0].Message)
}

func TestServer_ValidationUsesJSONNames(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, http.MethodPost, "/sample", `{"level":"mid"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Data []ValidationError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "ERR_ONEOF", resp.Data[0].Code)
	assert.Equal(t, "level", resp.Data[0].Field)

	rec = do(s, http.MethodPost, "/sample", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"anon"`)

	rec = do(s, http.MethodPost, "/sample", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_MALFORMED")
}

func TestServer_MetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	do(s, http.MethodGet, "/conflict", "")

	rec := do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/conflict",status="409"} 1`)
}

func TestServer_CORSPreflight(t *testing.T) {
	s := newTestServer(t, WithCORSOrigins("https://web.telegram.org"))

	req := httptest.NewRequest(http.MethodOptions, "/sample", nil)
	req.Header.Set(echo.HeaderOrigin, "https://web.telegram.org")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, "https://web.telegram.org", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(echo.HeaderOrigin, "https://evil.example")
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
