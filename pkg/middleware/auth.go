package middleware

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Jerry-OC/mission-control/pkg/context"
)

// BearerAuthConfig holds the credentials the API accepts. Tokens are
// base64(code:secret); the code must be on the allow list and the secret
// must equal the shared session secret.
type BearerAuthConfig struct {
	AllowedUsers []string
	Secret       string
}

// BearerAuth validates the Authorization header on every request and stores
// the authenticated user code on the request context.
func BearerAuth(cfg BearerAuthConfig) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(cfg.AllowedUsers))
	for _, code := range cfg.AllowedUsers {
		code = strings.TrimSpace(code)
		if code != "" {
			allowed[code] = true
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			code, ok := authenticate(c.Request().Header.Get(echo.HeaderAuthorization), allowed, cfg.Secret)
			if !ok {
				return httperror.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			req := c.Request()
			ctx := context.SetUserCode(req.Context(), code)
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}

func authenticate(header string, allowed map[string]bool, secret string) (string, bool) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", false
	}

	// Split on the first colon only. Codes never contain colons but the
	// secret might.
	code, got, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", false
	}

	if !allowed[code] || got != secret {
		return "", false
	}

	return code, true
}
