// Package middleware holds the fiber middleware shared by the API routes.
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
)

// UserContext is the authenticated principal extracted from a bearer token.
type UserContext struct {
	Subject     string
	Permissions []string
}

// HasPermission reports whether the principal carries perm.
func (u *UserContext) HasPermission(perm string) bool {
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

type tokenClaims struct {
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Auth validates the bearer token (or, for websocket upgrades, the `token`
// query parameter) against the signing secret and stores the principal in
// request locals.
func Auth(secret string) fiber.Handler {
	return func(c fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status": "error",
				"error":  "missing bearer token",
			})
		}

		user, err := validateToken(token, secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status": "error",
				"error":  "invalid or expired token",
			})
		}

		c.Locals("user", user)
		return c.Next()
	}
}

// RequirePermission rejects authenticated principals that lack perm. It must
// run after Auth.
func RequirePermission(perm string) fiber.Handler {
	return func(c fiber.Ctx) error {
		user := GetUser(c)
		if user == nil || !user.HasPermission(perm) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"status": "error",
				"error":  "insufficient permissions",
			})
		}
		return c.Next()
	}
}

// GetUser retrieves the authenticated principal from request locals.
func GetUser(c fiber.Ctx) *UserContext {
	if user, ok := c.Locals("user").(*UserContext); ok {
		return user
	}
	return nil
}

func bearerToken(c fiber.Ctx) string {
	header := c.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func validateToken(token, secret string) (*UserContext, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return &UserContext{
		Subject:     claims.Subject,
		Permissions: claims.Permissions,
	}, nil
}
