package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrJamesThe3rd/expenso/internal/http/respond"
	"github.com/MrJamesThe3rd/expenso/internal/session"
)

type contextKey int

const (
	userKey contextKey = iota
	sessionKey
)

var ErrUnauthorized = errors.New("unauthorized")

// Sessions resolves the per-user session a request works on.
type Sessions interface {
	Get(ctx context.Context, userID string) (*session.Session, error)
}

// Verifier turns a bearer token into a user id. With no secret every request
// belongs to the fallback user.
type Verifier struct {
	secret   []byte
	fallback string
}

func NewVerifier(secret, fallbackUser string) *Verifier {
	return &Verifier{secret: []byte(secret), fallback: fallbackUser}
}

func (v *Verifier) UserID(r *http.Request) (string, error) {
	if len(v.secret) == 0 {
		return v.fallback, nil
	}

	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		// Browsers cannot set headers on websocket upgrades.
		raw = r.URL.Query().Get("access_token")
	}

	if raw == "" {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}

	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}

	return subject, nil
}

// Middleware authenticates the request and attaches the user's session.
func Middleware(v *Verifier, sessions Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := v.UserID(r)
			if err != nil {
				slog.Debug("request rejected", "path", r.URL.Path, "error", err)
				respond.Text(w, http.StatusUnauthorized, "unauthorized")

				return
			}

			sess, err := sessions.Get(r.Context(), userID)
			if err != nil {
				slog.Error("failed to open session", "user_id", userID, "error", err)
				respond.Text(w, http.StatusInternalServerError, "internal error")

				return
			}

			ctx := context.WithValue(r.Context(), userKey, userID)
			next.ServeHTTP(w, r.WithContext(WithSession(ctx, sess)))
		})
	}
}

func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// Session returns the session attached by Middleware. Handlers mounted
// behind it can rely on it being set.
func Session(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey).(string)
	return id
}
