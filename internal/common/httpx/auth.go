package httpx

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	userIDKey    = "user_id"
	UserIDHeader = "X-User-ID"
)

// Identity resolves the caller. With a secret it requires an HS256 bearer
// token and takes the `sub` claim; without one it trusts X-User-ID.
func Identity(secret string, skip func(echo.Context) bool) echo.MiddlewareFunc {
	if skip == nil {
		skip = func(echo.Context) bool { return false }
	}
	if secret == "" {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				c.Set(userIDKey, c.Request().Header.Get(UserIDHeader))
				return next(c)
			}
		}
	}
	return echojwt.WithConfig(echojwt.Config{
		Skipper:       skip,
		SigningKey:    []byte(secret),
		SigningMethod: "HS256",
		NewClaimsFunc: func(echo.Context) jwt.Claims { return new(jwt.RegisteredClaims) },
		SuccessHandler: func(c echo.Context) {
			tok, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return
			}
			if claims, ok := tok.Claims.(*jwt.RegisteredClaims); ok {
				c.Set(userIDKey, claims.Subject)
			}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return WriteProblem(c, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
		},
	})
}

// UserID is the caller id resolved by Identity, or "" for anonymous callers.
func UserID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}

// Actor names the caller in status logs.
func Actor(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anonymous"
}
