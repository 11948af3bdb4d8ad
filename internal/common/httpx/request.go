package httpx

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"good-food/internal/domain"
)

// IfMatch reads the optional version precondition. Both `3` and `"3"` are
// accepted.
func IfMatch(c echo.Context) (*int, error) {
	raw := strings.TrimSpace(c.Request().Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return nil, nil
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return nil, &domain.ValidationError{Field: "If-Match", Reason: "must be a positive version number"}
	}
	return &v, nil
}

// SetVersion exposes the entity version as the ETag for the next If-Match.
func SetVersion(c echo.Context, version int) {
	c.Response().Header().Set("ETag", strconv.Quote(strconv.Itoa(version)))
}

// Bind decodes the JSON body, reporting decode failures as validation errors.
func Bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return &domain.ValidationError{Field: "body", Reason: "malformed JSON"}
	}
	return nil
}
