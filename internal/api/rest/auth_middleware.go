package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	apperrors "github.com/itrc/evaluation-workflow/internal/domain/errors"
	"github.com/itrc/evaluation-workflow/internal/domain/user"
)

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret   []byte
	Issuer      string
	TokenExpiry time.Duration
}

// Claims represents JWT claims
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}

// UserDirectory resolves token subjects to directory entries.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// Authenticator issues and verifies HS256 bearer tokens.
type Authenticator struct {
	config AuthConfig
	users  UserDirectory
	tracer trace.Tracer
	now    func() time.Time
}

// NewAuthenticator creates an authenticator. When users is non-nil every
// request re-reads the directory, so deactivated users and role changes take
// effect before their tokens expire.
func NewAuthenticator(config AuthConfig, users UserDirectory) *Authenticator {
	return &Authenticator{
		config: config,
		users:  users,
		tracer: otel.Tracer("api.rest.auth"),
		now:    time.Now,
	}
}

// GenerateToken mints a token for the actor.
func (a *Authenticator) GenerateToken(actor authz.Actor, name string) (string, error) {
	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.config.Issuer,
			Subject:   actor.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.TokenExpiry)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Role: actor.Role.String(),
		Name: name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.config.JWTSecret)
}

// Authenticate verifies a raw token and returns the actor it names.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (authz.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.config.JWTSecret, nil
	},
		jwt.WithIssuer(a.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return authz.Actor{}, apperrors.NewUnauthorizedError("invalid or expired token").WithCause(err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return authz.Actor{}, apperrors.NewUnauthorizedError("invalid token subject")
	}
	role, err := authz.ParseRole(claims.Role)
	if err != nil {
		return authz.Actor{}, apperrors.NewUnauthorizedError("invalid token role")
	}
	actor := authz.Actor{ID: id, Role: role}

	if a.users == nil {
		return actor, nil
	}
	u, err := a.users.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return authz.Actor{}, apperrors.NewUnauthorizedError("unknown user")
		}
		return authz.Actor{}, err
	}
	if !u.Active {
		return authz.Actor{}, apperrors.NewUnauthorizedError("user account is not active")
	}
	return u.Actor(), nil
}

// Middleware rejects requests without a valid bearer token and stores the
// actor in the request context.
func (a *Authenticator) Middleware(base *BaseHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := a.tracer.Start(r.Context(), "auth.middleware")
			defer span.End()

			raw, err := extractToken(r)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				base.writeError(w, r, apperrors.NewUnauthorizedError(err.Error()))
				return
			}
			actor, err := a.Authenticate(ctx, raw)
			if err != nil {
				span.RecordError(err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				base.writeError(w, r, err)
				return
			}
			span.SetAttributes(
				attribute.String("user.id", actor.ID.String()),
				attribute.String("user.role", actor.Role.String()),
			)
			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
		})
	}
}

func extractToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("no authorization token provided")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}
