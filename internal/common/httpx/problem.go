package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"good-food/internal/domain"
)

// RetryAfterSeconds is advertised with 503 responses for lock timeouts.
const RetryAfterSeconds = 1

// Problem is a simplified RFC 7807 body.
type Problem struct {
	Type       string             `json:"type"`
	Title      string             `json:"title"`
	Status     int                `json:"status"`
	Detail     string             `json:"detail"`
	Shortfalls []domain.Shortfall `json:"shortfalls,omitempty"`
}

func WriteProblem(c echo.Context, code int, typ, detail string) error {
	return writeProblem(c, Problem{Type: typ, Title: http.StatusText(code), Status: code, Detail: detail})
}

func writeProblem(c echo.Context, p Problem) error {
	return c.JSON(p.Status, p)
}

// ProblemFor maps an engine error onto its HTTP problem.
func ProblemFor(err error) Problem {
	var (
		ve   *domain.ValidationError
		du   *domain.DishUnavailableError
		it   *domain.InvalidTransitionError
		onm  *domain.OrderNotMutableError
		cnm  *domain.CommandNotMutableError
		ise  *domain.InsufficientStockError
		nf   *domain.NotFoundError
		cm   *domain.ConcurrentModificationError
		rt   *domain.ReservationTimeoutError
		ce   *domain.ConflictError
		code int
		typ  string
	)
	switch {
	case errors.As(err, &ve):
		code, typ = http.StatusBadRequest, "validation_error"
	case errors.As(err, &du):
		code, typ = http.StatusBadRequest, "dish_unavailable"
	case errors.As(err, &it):
		code, typ = http.StatusBadRequest, "invalid_transition"
	case errors.As(err, &onm), errors.As(err, &cnm):
		code, typ = http.StatusBadRequest, "not_mutable"
	case errors.As(err, &ise):
		return Problem{
			Type: "insufficient_stock", Title: http.StatusText(http.StatusBadRequest), Status: http.StatusBadRequest,
			Detail: err.Error(), Shortfalls: ise.Shortfalls,
		}
	case errors.As(err, &nf):
		code, typ = http.StatusNotFound, "not_found"
	case errors.As(err, &cm):
		code, typ = http.StatusConflict, "concurrent_modification"
	case errors.As(err, &ce):
		code, typ = http.StatusConflict, "conflict"
	case errors.As(err, &rt):
		code, typ = http.StatusServiceUnavailable, "reservation_timeout"
	default:
		return Problem{
			Type: "internal_error", Title: http.StatusText(http.StatusInternalServerError),
			Status: http.StatusInternalServerError, Detail: "internal error",
		}
	}
	return Problem{Type: typ, Title: http.StatusText(code), Status: code, Detail: err.Error()}
}

// Fail writes err as a problem response. For 5xx it also returns err so the
// request logger records the cause; ErrorHandler skips the committed response.
func Fail(c echo.Context, err error) error {
	p := ProblemFor(err)
	if p.Status == http.StatusServiceUnavailable {
		c.Response().Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
	}
	if werr := writeProblem(c, p); werr != nil {
		return werr
	}
	if p.Status >= http.StatusInternalServerError {
		return err
	}
	return nil
}

// ErrorHandler renders router and middleware errors (unknown route, bad
// token, rate limit) in the same problem shape.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		_ = Fail(c, err)
		return
	}
	detail := http.StatusText(he.Code)
	if msg, ok := he.Message.(string); ok {
		detail = msg
	}
	_ = WriteProblem(c, he.Code, "http_error", detail)
}
