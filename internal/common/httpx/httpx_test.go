package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"good-food/internal/domain"
)

func TestProblemMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
		typ  string
	}{
		{&domain.ValidationError{Field: "items", Reason: "empty"}, 400, "validation_error"},
		{&domain.DishUnavailableError{DishID: "d"}, 400, "dish_unavailable"},
		{&domain.InvalidTransitionError{Entity: "order", From: "ready", To: "draft"}, 400, "invalid_transition"},
		{&domain.OrderNotMutableError{OrderID: "o"}, 400, "not_mutable"},
		{&domain.CommandNotMutableError{CommandID: "c"}, 400, "not_mutable"},
		{&domain.InsufficientStockError{FranchiseID: "f"}, 400, "insufficient_stock"},
		{fmt.Errorf("load: %w", &domain.NotFoundError{Entity: "order", ID: "o"}), 404, "not_found"},
		{&domain.ConcurrentModificationError{Entity: "order", ID: "o"}, 409, "concurrent_modification"},
		{&domain.ConflictError{Entity: "dish_ingredient", ID: "d/i"}, 409, "conflict"},
		{&domain.ReservationTimeoutError{FranchiseID: "f"}, 503, "reservation_timeout"},
		{errors.New("connection reset"), 500, "internal_error"},
	}
	for _, tt := range tests {
		p := ProblemFor(tt.err)
		if p.Status != tt.code || p.Type != tt.typ {
			t.Errorf("%v: got %d/%s, want %d/%s", tt.err, p.Status, p.Type, tt.code, tt.typ)
		}
	}
}

func TestFailCarriesShortfallsAndRetryAfter(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = Fail(c, &domain.InsufficientStockError{FranchiseID: "f", Shortfalls: []domain.Shortfall{
		{IngredientID: "a", Required: 5, Available: 1},
		{IngredientID: "b", Required: 2, Available: 0},
	}})
	var p Problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if rec.Code != 400 || len(p.Shortfalls) != 2 {
		t.Fatalf("code = %d body = %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	timeout := &domain.ReservationTimeoutError{FranchiseID: "f"}
	if err := Fail(c, timeout); err != timeout {
		t.Fatalf("Fail returned %v, want the cause", err)
	}
	if rec.Code != 503 || rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("code = %d retry-after = %q", rec.Code, rec.Header().Get("Retry-After"))
	}
}

func TestFailReturnsOnlyServerErrors(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	cause := errors.New("disk on fire")
	e.GET("/boom", func(c echo.Context) error { return Fail(c, cause) })
	e.GET("/bad", func(c echo.Context) error {
		if err := Fail(c, &domain.ValidationError{Field: "x", Reason: "y"}); err != nil {
			t.Errorf("4xx returned %v", err)
		}
		return nil
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	var p Problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("body %q: %v", rec.Body, err)
	}
	if rec.Code != 500 || p.Detail != "internal error" {
		t.Fatalf("code = %d body = %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bad", nil))
	if rec.Code != 400 {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestIfMatch(t *testing.T) {
	e := echo.New()
	for raw, want := range map[string]int{`3`: 3, `"4"`: 4, `W/"5"`: 5} {
		req := httptest.NewRequest(http.MethodPatch, "/", nil)
		req.Header.Set("If-Match", raw)
		v, err := IfMatch(e.NewContext(req, httptest.NewRecorder()))
		if err != nil || v == nil || *v != want {
			t.Errorf("%s: got %v, %v", raw, v, err)
		}
	}

	req := httptest.NewRequest(http.MethodPatch, "/", nil)
	if v, err := IfMatch(e.NewContext(req, httptest.NewRecorder())); v != nil || err != nil {
		t.Errorf("absent header: %v, %v", v, err)
	}
	req.Header.Set("If-Match", "abc")
	var ve *domain.ValidationError
	if _, err := IfMatch(e.NewContext(req, httptest.NewRecorder())); !errors.As(err, &ve) {
		t.Errorf("garbage header: %v", err)
	}
}

func whoami(c echo.Context) error { return c.String(http.StatusOK, UserID(c)) }

func TestIdentityFromHeader(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, Identity("", nil))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(UserIDHeader, "u-42")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Body.String() != "u-42" {
		t.Fatalf("body = %q", rec.Body)
	}
}

func TestIdentityFromToken(t *testing.T) {
	const secret = "test-secret"
	e := echo.New()
	e.GET("/me", whoami, Identity(secret, nil))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u-7"}).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signed)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "u-7" {
		t.Fatalf("code = %d body = %q", rec.Code, rec.Body)
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: code = %d", rec.Code)
	}
}
