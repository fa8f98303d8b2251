package server

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/adpulse/adpulse/internal/wire"
)

// defaultPermissions is granted to dashboard sessions that present no prior
// credential. Write access always requires an upstream-issued token.
var defaultPermissions = []string{
	"campaigns:read",
	"segments:read",
	"candidates:read",
	"job_openings:read",
	"notifications:read",
}

type issuedClaims struct {
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// handleTokenRefresh issues a fresh signed token. A valid bearer credential
// carries its subject and permissions forward; otherwise a read-only
// dashboard credential is issued.
func (s *Server) handleTokenRefresh(c fiber.Ctx) error {
	if s.cfg.TokenSecret == "" {
		return fail(c, fiber.StatusServiceUnavailable, "token issuing is not configured")
	}

	subject := "dashboard"
	permissions := defaultPermissions

	if prior := bearerFromHeader(c.Get("Authorization")); prior != "" {
		var claims issuedClaims
		parsed, err := jwt.ParseWithClaims(prior, &claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(s.cfg.TokenSecret), nil
		})
		if err == nil && parsed.Valid {
			if claims.Subject != "" {
				subject = claims.Subject
			}
			if len(claims.Permissions) > 0 {
				permissions = claims.Permissions
			}
		}
	}

	ttl := s.cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, issuedClaims{
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}).SignedString([]byte(s.cfg.TokenSecret))
	if err != nil {
		s.logger.Error("token signing failed", "error", err)
		return fail(c, fiber.StatusInternalServerError, "token signing failed")
	}

	return c.JSON(wire.TokenResponse{
		Status:      "success",
		Token:       token,
		ExpiresIn:   int64(ttl.Seconds()),
		Permissions: permissions,
	})
}

func bearerFromHeader(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
