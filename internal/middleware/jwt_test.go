package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func jwtApp() *fiber.App {
	app := fiber.New()
	app.Use(JWTProtected("secret"))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"id": c.Locals("user_id"), "role": c.Locals("user_role")})
	})
	return app
}

func TestJWTProtectedSetsIdentity(t *testing.T) {
	token := signedToken(t, jwt.SigningMethodHS256, "secret", jwt.MapClaims{
		"sub":  "42",
		"role": []interface{}{"Student"},
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := jwtApp().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	cases := map[string]string{
		"missing":      "",
		"no bearer":    "Token abc",
		"wrong secret": "Bearer " + signedToken(t, jwt.SigningMethodHS256, "other", jwt.MapClaims{"sub": "1"}),
		"wrong alg":    "Bearer " + signedToken(t, jwt.SigningMethodHS512, "secret", jwt.MapClaims{"sub": "1"}),
		"no subject":   "Bearer " + signedToken(t, jwt.SigningMethodHS256, "secret", jwt.MapClaims{"role": "student"}),
		"expired": "Bearer " + signedToken(t, jwt.SigningMethodHS256, "secret", jwt.MapClaims{
			"sub": "1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := jwtApp().Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}
