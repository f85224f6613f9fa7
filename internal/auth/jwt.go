package auth

import (
	"context"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var ErrUnauthorized = errors.New("unauthorized")

type actorKey struct{}

// WithActor stores the authenticated operator in context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the operator set by Middleware, if any.
func ActorFromContext(ctx context.Context) (string, bool) {
	a, ok := ctx.Value(actorKey{}).(string)
	return a, ok && a != ""
}

// ParseBearer validates an "Authorization: Bearer <jwt>" header value (HS256)
// and returns the token subject as the actor.
func ParseBearer(header, secret string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.Wrap(ErrUnauthorized, "invalid authorization header")
	}
	return parseJWT(strings.TrimSpace(parts[1]), secret)
}

func parseJWT(tokenStr, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}

	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", errors.Wrapf(ErrUnauthorized, "parse token: %v", err)
	}
	if !tok.Valid || claims.Subject == "" {
		return "", errors.Wrap(ErrUnauthorized, "invalid claims")
	}
	return claims.Subject, nil
}

// Middleware требует Bearer JWT на запросах, меняющих состояние, и кладёт subject в контекст.
// Пустой secret отключает проверку.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			actor, err := ParseBearer(r.Header.Get("Authorization"), secret)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// IssueHS256 signs a token for subject; used by operator tooling and tests.
func IssueHS256(secret, subject string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = subject
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	return s, errors.Wrap(err, "sign token")
}
