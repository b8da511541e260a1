package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/learnfox/LearnFox/app/models"
	"github.com/learnfox/LearnFox/internal/pkg/env"
	"github.com/learnfox/LearnFox/internal/pkg/usercontext"
)

// Claims carried in the platform's access tokens.
type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// UserContextMiddleware resolves the bearer token (when present) into a user
// context. It never rejects: route guards below decide what anonymous
// requests may do.
func UserContextMiddleware(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return c.Next()
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(env.GetEnv("JWT_SECRET", "")), nil
	})
	if err != nil || !parsed.Valid || claims.UserID == 0 {
		return c.Next()
	}

	usercontext.SetUserContext(c, usercontext.UserContext{
		UserID:     claims.UserID,
		Email:      claims.Email,
		IsLoggedIn: true,
		IsAdmin:    claims.Role == models.ROLE_ADMIN,
	})
	return c.Next()
}

// RequireAuth rejects anonymous requests.
func RequireAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "Missing or invalid authentication",
		})
	}
	return c.Next()
}

// RequireAdmin rejects everything but authenticated admins.
func RequireAdmin(c *fiber.Ctx) error {
	ctx := usercontext.GetUserContext(c)
	if !ctx.IsLoggedIn || !ctx.IsAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "Admin access required",
		})
	}
	return c.Next()
}

func bearerToken(c *fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
