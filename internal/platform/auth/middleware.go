package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor || r == RoleAdmin
}

// Identity is the authenticated caller.
type Identity struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Claims carries the caller's role next to the standard claims; the
// subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
	// Skipper lets public routes through without an identity.
	Skipper func(c echo.Context) bool
}

// IssueToken signs an HS256 token for id.
func IssueToken(cfg JWTConfig, id Identity, ttl time.Duration) (string, error) {
	if len(cfg.SigningKey) == 0 {
		return "", fmt.Errorf("signing key is not configured")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: id.Role,
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.SigningKey)
}

func parseToken(cfg JWTConfig, header string) (Identity, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
	}
	if !claims.Role.Valid() {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token role")
	}
	return Identity{ID: uid, Role: claims.Role}, nil
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			id, err := parseToken(cfg, header)
			if err != nil {
				return err
			}
			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			c.Set("user_id", id.ID.String())
			return next(c)
		}
	}
}

const (
	DevUserHeader = "X-Dev-User"
	DevRoleHeader = "X-Dev-Role"
)

// DevUserID is the identity used when a development request names no user.
var DevUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// DevAuthMiddleware lets development requests pick their identity with
// X-Dev-User and X-Dev-Role. Requests without them act as an admin. A bearer
// token is still honored when a signing key is configured.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			req := c.Request()
			if header := req.Header.Get(echo.HeaderAuthorization); header != "" && len(cfg.SigningKey) > 0 {
				id, err := parseToken(cfg, header)
				if err != nil {
					return err
				}
				c.SetRequest(req.WithContext(WithIdentity(req.Context(), id)))
				c.Set("user_id", id.ID.String())
				return next(c)
			}

			id := Identity{ID: DevUserID, Role: RoleAdmin}
			if v := req.Header.Get(DevUserHeader); v != "" {
				uid, err := uuid.Parse(v)
				if err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, "invalid "+DevUserHeader)
				}
				id.ID = uid
			}
			if v := req.Header.Get(DevRoleHeader); v != "" {
				id.Role = Role(strings.ToLower(v))
				if !id.Role.Valid() {
					return echo.NewHTTPError(http.StatusBadRequest, "invalid "+DevRoleHeader)
				}
			}
			c.SetRequest(req.WithContext(WithIdentity(req.Context(), id)))
			c.Set("user_id", id.ID.String())
			return next(c)
		}
	}
}
