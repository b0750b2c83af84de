package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lunaugust/plantracker/internal/auth"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenResolverMock struct {
	sessions map[string]string
	err      error
}

var _ tokenResolver = (*tokenResolverMock)(nil)

func (m *tokenResolverMock) UserForToken(_ context.Context, token string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	userID, ok := m.sessions[token]
	if !ok {
		return "", redis.Nil
	}
	return userID, nil
}

func scopeCaptureHandler(capturedScope *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*capturedScope = ScopeFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthCheck_NoTokenRunsAsGuest(t *testing.T) {
	resolver := &tokenResolverMock{sessions: map[string]string{}}
	handler := NewAuthMiddlewareHandler(resolver)

	var capturedScope string
	middleware := handler.AuthCheck()(scopeCaptureHandler(&capturedScope))

	req := httptest.NewRequest(http.MethodGet, "/plans", nil)
	rec := httptest.NewRecorder()
	middleware.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, auth.GuestUser, capturedScope)
}

func TestAuthCheck_ValidTokenResolvesScope(t *testing.T) {
	resolver := &tokenResolverMock{sessions: map[string]string{
		"token-abc": "user-77",
	}}
	handler := NewAuthMiddlewareHandler(resolver)

	var capturedScope string
	middleware := handler.AuthCheck()(scopeCaptureHandler(&capturedScope))

	req := httptest.NewRequest(http.MethodGet, "/plans", nil)
	req.Header.Set(AuthTokenHeader, "token-abc")
	rec := httptest.NewRecorder()
	middleware.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-77", capturedScope)
}

func TestAuthCheck_UnknownTokenRejected(t *testing.T) {
	resolver := &tokenResolverMock{sessions: map[string]string{}}
	handler := NewAuthMiddlewareHandler(resolver)

	var capturedScope string
	middleware := handler.AuthCheck()(scopeCaptureHandler(&capturedScope))

	req := httptest.NewRequest(http.MethodGet, "/plans", nil)
	req.Header.Set(AuthTokenHeader, "token-unknown")
	rec := httptest.NewRecorder()
	middleware.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, capturedScope)
}

func TestAuthCheck_ExpiredSessionRejected(t *testing.T) {
	resolver := &tokenResolverMock{err: auth.ErrSessionExpired}
	handler := NewAuthMiddlewareHandler(resolver)

	var capturedScope string
	middleware := handler.AuthCheck()(scopeCaptureHandler(&capturedScope))

	req := httptest.NewRequest(http.MethodGet, "/plans", nil)
	req.Header.Set(AuthTokenHeader, "token-old")
	rec := httptest.NewRecorder()
	middleware.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, capturedScope)
}

func TestAuthCheck_Options(t *testing.T) {
	handler := NewAuthMiddlewareHandler(&tokenResolverMock{})
	middleware := handler.AuthCheck()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next handler must not run for OPTIONS")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/plans", nil)
	rec := httptest.NewRecorder()
	middleware.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Allow"), "OPTIONS")
}

func TestScopeFromContext_Default(t *testing.T) {
	assert.Equal(t, auth.GuestUser, ScopeFromContext(context.Background()))
}
