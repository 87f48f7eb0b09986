package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	appctx "github.com/Jerry-OC/mission-control/pkg/context"
)

func token(code, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(code + ":" + secret))
}

func TestBearerAuth(t *testing.T) {
	cfg := BearerAuthConfig{
		AllowedUsers: []string{"alice", "bob"},
		Secret:       "top:secret",
	}

	do := func(authorization string) (int, string) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if authorization != "" {
			req.Header.Set(echo.HeaderAuthorization, authorization)
		}
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		var userCode string
		handler := BearerAuth(cfg)(func(c echo.Context) error {
			userCode = appctx.GetUserCode(c.Request().Context())
			return c.NoContent(http.StatusOK)
		})

		if err := handler(c); err != nil {
			return http.StatusUnauthorized, ""
		}
		return rec.Code, userCode
	}

	t.Run("accepts an allow-listed code with the shared secret", func(t *testing.T) {
		code, user := do("Bearer " + token("alice", "top:secret"))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "alice", user)
	})

	t.Run("secret may contain colons, code may not", func(t *testing.T) {
		code, user := do("Bearer " + token("bob", "top:secret"))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "bob", user)
	})

	t.Run("rejects a code not on the allow list", func(t *testing.T) {
		code, _ := do("Bearer " + token("mallory", "top:secret"))
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("rejects a wrong secret", func(t *testing.T) {
		code, _ := do("Bearer " + token("alice", "wrong"))
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		code, _ := do("")
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("rejects a non-bearer scheme", func(t *testing.T) {
		code, _ := do("Basic " + token("alice", "top:secret"))
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("rejects invalid base64", func(t *testing.T) {
		code, _ := do("Bearer not-base64!!!")
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("rejects a token without a separator", func(t *testing.T) {
		code, _ := do("Bearer " + base64.StdEncoding.EncodeToString([]byte("alice")))
		assert.Equal(t, http.StatusUnauthorized, code)
	})
}
