package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/swasthya/hms-backend/internal/infrastructure/observability"
	"github.com/swasthya/hms-backend/pkg/config"
)

// DevUserID is the caller assumed in dev mode when no token is sent
const DevUserID int64 = 1

type userIDKey struct{}

// WithUserID stores the authenticated user id in ctx
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the authenticated user id set by the auth middleware
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey{}).(int64)
	return id, ok
}

// Authenticator resolves the caller from an HS256 bearer token whose subject is
// the numeric user id.
type Authenticator struct {
	key     []byte
	issuer  string
	devMode bool
}

// NewAuthenticator creates an authenticator from the auth configuration
func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	return &Authenticator{
		key:     []byte(cfg.JWTSigningKey),
		issuer:  cfg.JWTIssuer,
		devMode: cfg.DevMode,
	}
}

// Require rejects requests without a valid bearer token
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" && a.devMode {
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), DevUserID)))
			return
		}

		userID, err := a.authenticate(header)
		if err != nil {
			observability.LoggerFromContext(r.Context()).Debug().Err(err).Msg("Rejected bearer token")
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func (a *Authenticator) authenticate(header string) (int64, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, errors.New("missing bearer token")
	}
	if len(a.key) == 0 {
		return 0, errors.New("no signing key configured")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return a.key, nil
	}, opts...)
	if err != nil {
		return 0, err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return 0, err
	}
	userID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("invalid subject %q", subject)
	}
	return userID, nil
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}
