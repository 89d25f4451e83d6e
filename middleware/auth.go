package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2/jwt"
	log "github.com/sirupsen/logrus"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/metrics"
	"buildInPublicAPI/internal/response"
	"buildInPublicAPI/internal/types/user"
)

type contextKey string

const UserIDKey contextKey = "userID"
const ClerkIDKey contextKey = "clerkID"

// VerifyFunc checks a session token and returns its subject (the Clerk user id).
type VerifyFunc func(ctx context.Context, token string) (string, error)

// ClerkVerify verifies tokens against Clerk's JWKS. clerk.SetKey must run first.
func ClerkVerify(ctx context.Context, token string) (string, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{Token: token})
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// UserResolver maps a verified Clerk id to the local user, provisioning it on first sight.
type UserResolver interface {
	EnsureUser(ctx context.Context, clerkID string) (*user.User, error)
}

type Authenticator struct {
	verify VerifyFunc
	users  UserResolver
}

func NewAuthenticator(verify VerifyFunc, users UserResolver) *Authenticator {
	if verify == nil {
		verify = ClerkVerify
	}
	return &Authenticator{verify: verify, users: users}
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", apperr.Unauthorized("Authorization header required")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader || token == "" {
		return "", apperr.Unauthorized("Invalid authorization format. Use 'Bearer <token>'")
	}
	return token, nil
}

// authenticate resolves the request's caller and stores both ids in the context.
func (a *Authenticator) authenticate(r *http.Request) (context.Context, error) {
	token, err := bearerToken(r)
	if err != nil {
		return nil, err
	}

	clerkID, err := a.verify(r.Context(), token)
	if err != nil {
		log.WithError(err).Debug("auth: token verification failed")
		metrics.AuthRejections.WithLabelValues("invalid_token").Inc()
		return nil, apperr.Unauthorized("Invalid or expired token")
	}

	u, err := a.users.EnsureUser(r.Context(), clerkID)
	if err != nil {
		return nil, err
	}

	ctx := context.WithValue(r.Context(), ClerkIDKey, clerkID)
	ctx = context.WithValue(ctx, UserIDKey, u.ID)
	return ctx, nil
}

// Require rejects requests without a valid bearer token.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := a.authenticate(r)
		if err != nil {
			response.Error(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional identifies the caller when a valid token is present and otherwise
// serves the request anonymously.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			if ctx, err := a.authenticate(r); err == nil {
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// GetClerkID extracts Clerk user ID from context
func GetClerkID(ctx context.Context) (string, bool) {
	clerkID, ok := ctx.Value(ClerkIDKey).(string)
	return clerkID, ok
}

// GetUserID extracts internal user ID from context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// WithUserID is used by tests and internal callers that already know the user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
