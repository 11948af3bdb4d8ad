package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"good-food/internal/common/httpx"
	"good-food/internal/domain"
	"good-food/internal/idempotency"
	"good-food/internal/microservices/order/service"
	stock "good-food/internal/microservices/stock/service"
	"good-food/internal/repository/memory"
)

const (
	shopID   = "6f1d4c3e-3a8a-4c55-9b0e-2f6c1d9a7b10"
	pizzaID  = "0b7e6f2a-8d5c-4a1e-9c3b-5e2f7a1d4c60"
	cheeseID = "a3c9e5d1-2b4f-4e6a-8c0d-9f1b3e5a7c20"
)

type api struct {
	e     *echo.Echo
	store *memory.Store
}

func newAPI(t *testing.T, cheese int64) *api {
	t.Helper()
	s := memory.New(time.Second)
	s.AddFranchise(domain.Franchise{ID: shopID, Name: "Downtown"})
	s.AddIngredient(domain.Ingredient{ID: cheeseID, Name: "cheese", UnitPrice: 150})
	s.AddDish(domain.Dish{ID: pizzaID, FranchiseID: shopID, Name: "Margherita", BasePrice: 900, Available: true},
		domain.DishIngredient{IngredientID: cheeseID, QuantityRequired: 2})
	s.SeedStock(shopID, cheeseID, cheese)

	svc := service.New(s, stock.NewLedger(s), nil, nil, service.WithIdempotency(idempotency.NewMemoryGuard(time.Hour)))
	e := echo.New()
	e.HTTPErrorHandler = httpx.ErrorHandler
	e.Use(httpx.Identity("", nil))
	New(svc).Register(e)
	return &api{e: e, store: s}
}

func (a *api) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body, err)
	}
	return v
}

func orderBody(qty int) string {
	return `{"shopId":"` + shopID + `","items":[{"itemId":"` + pizzaID + `","quantity":` +
		strconv.Itoa(qty) + `,"unitPrice":"9.50","selectedOptions":[{"optionId":"x","name":"extra","additionalPrice":0.5}]}]}`
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	a := newAPI(t, 10)

	rec := a.do(t, http.MethodPost, "/orders", orderBody(2), httpx.UserIDHeader, "u1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	o := decode[domain.OrderResponse](t, rec)
	if o.Status != domain.OrderDraft || o.Total != "20.00" || o.UserID != "u1" || rec.Header().Get("ETag") != `"1"` {
		t.Fatalf("order = %+v etag = %s", o, rec.Header().Get("ETag"))
	}

	rec = a.do(t, http.MethodPatch, "/orders/"+o.ID+"/status", `{"status":"confirmed"}`, "If-Match", `"1"`)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", rec.Code, rec.Body)
	}
	if got := decode[domain.OrderResponse](t, rec); got.Status != domain.OrderConfirmed || got.Version != 2 {
		t.Fatalf("confirmed = %+v", got)
	}
	st, _ := a.store.GetStock(t.Context(), shopID, cheeseID)
	if st.Quantity != 6 {
		t.Fatalf("cheese = %d", st.Quantity)
	}

	rec = a.do(t, http.MethodPatch, "/orders/"+o.ID+"/items", `{"items":[{"itemId":"`+pizzaID+`","quantity":1,"unitPrice":1}]}`)
	if p := decode[httpx.Problem](t, rec); rec.Code != http.StatusBadRequest || p.Type != "not_mutable" {
		t.Fatalf("update confirmed: %d %s", rec.Code, rec.Body)
	}
	if rec = a.do(t, http.MethodDelete, "/orders/"+o.ID, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("delete confirmed: %d", rec.Code)
	}
	if rec = a.do(t, http.MethodPatch, "/orders/"+o.ID+"/status", `{"status":"canceled"}`, "If-Match", "1"); rec.Code != http.StatusConflict {
		t.Fatalf("stale if-match: %d %s", rec.Code, rec.Body)
	}
}

func TestConfirmShortfallReturnsEveryIngredient(t *testing.T) {
	a := newAPI(t, 3)
	o := decode[domain.OrderResponse](t, a.do(t, http.MethodPost, "/orders", orderBody(2)))

	rec := a.do(t, http.MethodPatch, "/orders/"+o.ID+"/status", `{"status":"confirmed"}`)
	p := decode[httpx.Problem](t, rec)
	if rec.Code != http.StatusBadRequest || p.Type != "insufficient_stock" || len(p.Shortfalls) != 1 {
		t.Fatalf("%d %s", rec.Code, rec.Body)
	}
	if sf := p.Shortfalls[0]; sf.IngredientID != cheeseID || sf.Required != 4 || sf.Available != 3 {
		t.Fatalf("shortfall = %+v", sf)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	a := newAPI(t, 10)
	for name, body := range map[string]string{
		"malformed":  `{"shopId":`,
		"no items":   `{"shopId":"` + shopID + `","items":[]}`,
		"bad shop":   `{"shopId":"downtown","items":[{"itemId":"` + pizzaID + `","quantity":1,"unitPrice":1}]}`,
		"sub-cent":   `{"shopId":"` + shopID + `","items":[{"itemId":"` + pizzaID + `","quantity":1,"unitPrice":"1.005"}]}`,
		"zero count": `{"shopId":"` + shopID + `","items":[{"itemId":"` + pizzaID + `","quantity":0,"unitPrice":1}]}`,
	} {
		rec := a.do(t, http.MethodPost, "/orders", body)
		if p := decode[httpx.Problem](t, rec); rec.Code != http.StatusBadRequest || p.Type != "validation_error" {
			t.Errorf("%s: %d %s", name, rec.Code, rec.Body)
		}
	}
}

func TestIdempotencyKeyReplaysOrder(t *testing.T) {
	a := newAPI(t, 10)
	first := decode[domain.OrderResponse](t, a.do(t, http.MethodPost, "/orders", orderBody(1), IdempotencyHeader, "k-1"))
	second := decode[domain.OrderResponse](t, a.do(t, http.MethodPost, "/orders", orderBody(1), IdempotencyHeader, "k-1"))
	if first.ID == "" || first.ID != second.ID {
		t.Fatalf("first = %s second = %s", first.ID, second.ID)
	}
}

func TestDeleteDraft(t *testing.T) {
	a := newAPI(t, 10)
	o := decode[domain.OrderResponse](t, a.do(t, http.MethodPost, "/orders", orderBody(1)))
	if rec := a.do(t, http.MethodDelete, "/orders/"+o.ID, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body)
	}
	if rec := a.do(t, http.MethodDelete, "/orders/"+o.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", rec.Code)
	}
}
