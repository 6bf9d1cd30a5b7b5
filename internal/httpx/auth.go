package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront-commerce.git/internal/redisx"
)

var ErrUnauthorized = errors.New("unauthorized")

// IdentityLookup: kontrak kolaborator identity. Session diterbitkan oleh
// auth service di luar repo ini; di sini cuma resolve token -> user id.
type IdentityLookup interface {
	UserID(ctx context.Context, token string) (string, error)
}

type SessionStore struct{ Redis *redis.Client }

func (s *SessionStore) UserID(ctx context.Context, token string) (string, error) {
	uid, err := s.Redis.Get(ctx, fmt.Sprintf(redisx.KeySession, token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrUnauthorized
	}
	if err != nil {
		return "", err
	}
	return uid, nil
}

type ctxKey int

const userIDKey ctxKey = 0

// Authenticate resolve "Authorization: Bearer <token>" dan taruh user id
// di context; tanpa identity -> 401 tanpa efek samping.
func Authenticate(id IdentityLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || token == r.Header.Get("Authorization") {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			uid, err := id.UserID(r.Context(), token)
			if errors.Is(err, ErrUnauthorized) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, uid)))
		})
	}
}

func userID(r *http.Request) string {
	uid, _ := r.Context().Value(userIDKey).(string)
	return uid
}
