package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/api/internal/apperr"
	"taskboard/api/internal/models"
	"taskboard/api/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeResolver struct {
	tokens map[string]models.User
	err    error
}

func (f fakeResolver) Resolve(_ context.Context, token string) (models.User, error) {
	if f.err != nil {
		return models.User{}, f.err
	}
	user, ok := f.tokens[token]
	if !ok {
		return models.User{}, service.ErrUnauthenticated
	}
	return user, nil
}

type fakeLicenses struct {
	status models.LicenseStatus
	err    error
}

func (f fakeLicenses) Status(context.Context, int64) (models.LicenseStatus, error) {
	return f.status, f.err
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) apperr.Body {
	t.Helper()
	var body apperr.Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer   abc "))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken("Bearer"))
	assert.Equal(t, "", bearerToken(""))
}

func TestAuthMiddleware(t *testing.T) {
	resolver := fakeResolver{tokens: map[string]models.User{"good": {ID: 5, Username: "alice"}}}

	router := gin.New()
	router.GET("/me", Auth(resolver), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": user.ID})
	})

	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Token good",
		"unknown token":  "Bearer bad",
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.Equal(t, "unauthenticated", decodeBody(t, rec).Error, name)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":5}`, rec.Body.String())
}

func TestAuthMiddlewareStoreFailure(t *testing.T) {
	router := gin.New()
	router.GET("/me", Auth(fakeResolver{err: apperr.Internal(errors.New("db down"), "resolve")}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestRequireLicense(t *testing.T) {
	user := models.User{ID: 1}
	withUser := func(c *gin.Context) {
		c.Set(currentUserKey, user)
		c.Next()
	}
	feature := "pro"

	cases := []struct {
		name     string
		checker  fakeLicenses
		status   int
		errorKey string
	}{
		{"licensed", fakeLicenses{status: models.LicenseStatus{Licensed: true, Feature: &feature}}, http.StatusOK, ""},
		{"not licensed", fakeLicenses{}, http.StatusForbidden, "license_required"},
		{"lookup failed", fakeLicenses{err: apperr.Internal(errors.New("boom"), "status")}, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		router := gin.New()
		router.GET("/export", withUser, RequireLicense(tc.checker), func(c *gin.Context) {
			status, ok := CurrentLicense(c)
			require.True(t, ok)
			c.String(http.StatusOK, *status.Feature)
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export", nil))
		assert.Equal(t, tc.status, rec.Code, tc.name)
		if tc.errorKey != "" {
			assert.Equal(t, tc.errorKey, decodeBody(t, rec).Error, tc.name)
		} else {
			assert.Equal(t, "pro", rec.Body.String())
		}
	}

	router := gin.New()
	router.GET("/export", RequireLicense(fakeLicenses{}), func(c *gin.Context) { c.Status(http.StatusOK) })
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestIDAndCORS(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), CORS([]string{"https://app.example"}))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set(requestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "req-1", rec.Header().Get(requestIDHeader))
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://app.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecoveryRendersInternalError(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), Logger(zerolog.Nop()), Recovery(zerolog.Nop()))
	router.GET("/boom", func(c *gin.Context) { panic("secret detail") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeBody(t, rec).Error)
	assert.NotContains(t, rec.Body.String(), "secret detail")
}

type observed struct {
	method string
	route  string
	status int
}

type fakeObserver struct {
	mu    sync.Mutex
	calls []observed
}

func (f *fakeObserver) ObserveRequest(method, route string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, observed{method, route, status})
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	observer := &fakeObserver{}
	router := gin.New()
	router.Use(Metrics(observer))
	router.GET("/tasks/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tasks/42", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	require.Len(t, observer.calls, 2)
	assert.Equal(t, observed{"GET", "/tasks/:id", http.StatusNoContent}, observer.calls[0])
	assert.Equal(t, "", observer.calls[1].route)
	assert.Equal(t, http.StatusNotFound, observer.calls[1].status)
}
