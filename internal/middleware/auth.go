package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/lunaugust/plantracker/internal/auth"
	"github.com/lunaugust/plantracker/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

// AuthTokenHeader carries the session token; a non-standard header, so
// browsers send a preflight/OPTIONS request for it:
//	https://developer.mozilla.org/en-US/docs/Web/HTTP/CORS#preflighted_requests
const AuthTokenHeader = "X-PLANTRACKER-TOKEN"

type scopeContextKey struct{}

// ScopeFromContext returns the data scope resolved for the request, the
// guest sentinel when none was set.
func ScopeFromContext(ctx context.Context) string {
	if scope, ok := ctx.Value(scopeContextKey{}).(string); ok && scope != "" {
		return scope
	}
	return auth.GuestUser
}

func ContextWithScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

type tokenResolver interface {
	UserForToken(ctx context.Context, token string) (string, error)
}

type AuthMiddlewareHandler struct {
	loginChecker tokenResolver
}

func NewAuthMiddlewareHandler(loginChecker tokenResolver) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		loginChecker: loginChecker,
	}
}

// AuthCheck resolves the session token into a user scope and stores it in the
// request context. A request without a token runs as guest; a token that is
// present but invalid or expired gets a 401, never a downgrade to guest.
func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, PUT, DELETE, OPTIONS")
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			authToken := r.Header.Get(AuthTokenHeader)
			if authToken == "" {
				span.SetStatus(codes.Ok, "guest")
				next.ServeHTTP(w, r.WithContext(ContextWithScope(ctx, auth.GuestUser)))
				return
			}

			userID, err := h.loginChecker.UserForToken(ctx, authToken)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrSessionExpired), errors.Is(err, redis.Nil):
					log.Tracef("[invalid token] [auth middleware] unauthorized => %s", r.URL.Path)
					span.SetStatus(codes.Error, "not-logged")
				default:
					log.Errorf("[failed login check] => %s: %s", r.URL.Path, err)
					span.SetStatus(codes.Error, "check-logged-err")
					span.RecordError(err)
				}
				http.Error(w, "no can do", http.StatusUnauthorized)
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(ContextWithScope(ctx, userID)))
		})
	}
}
