package handler

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"good-food/internal/common/httpx"
	"good-food/internal/domain"
	"good-food/internal/microservices/tracker/models"
	"good-food/internal/microservices/tracker/service"
)

const defaultTimelineLimit = 50

type TrackerHandler struct {
	service service.TrackerServiceInterface
}

func NewTrackerHandler(svc service.TrackerServiceInterface) *TrackerHandler {
	return &TrackerHandler{service: svc}
}

// GetOrder --> GET /orders/:id
func (h *TrackerHandler) GetOrder(c echo.Context) error {
	id, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	o, err := h.service.GetOrder(c.Request().Context(), id)
	if err != nil {
		return httpx.Fail(c, err)
	}
	httpx.SetVersion(c, o.Version)
	return c.JSON(http.StatusOK, domain.NewOrderResponse(o))
}

// GetCommand --> GET /commands/:id
func (h *TrackerHandler) GetCommand(c echo.Context) error {
	id, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	cmd, err := h.service.GetCommand(c.Request().Context(), id)
	if err != nil {
		return httpx.Fail(c, err)
	}
	httpx.SetVersion(c, cmd.Version)
	return c.JSON(http.StatusOK, domain.NewCommandResponse(cmd))
}

// Timeline serves GET /orders/:id/timeline and GET /commands/:id/timeline.
func (h *TrackerHandler) Timeline(entity string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := domain.ParseID("id", c.Param("id"))
		if err != nil {
			return httpx.Fail(c, err)
		}
		limit := atoiDefault(c.QueryParam("limit"), defaultTimelineLimit)
		offset := atoiDefault(c.QueryParam("offset"), 0)
		tl, err := h.service.GetTimeline(c.Request().Context(), entity, id, limit, offset)
		if err != nil {
			return httpx.Fail(c, err)
		}
		return c.JSON(http.StatusOK, tl)
	}
}

// ListStock --> GET /franchises/:id/stock
func (h *TrackerHandler) ListStock(c echo.Context) error {
	franchiseID, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	list, err := h.service.ListStock(c.Request().Context(), franchiseID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// GetStock --> GET /franchises/:id/stock/:ingredientId
func (h *TrackerHandler) GetStock(c echo.Context) error {
	franchiseID, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	ingredientID, err := domain.ParseID("ingredientId", c.Param("ingredientId"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	st, err := h.service.GetStock(c.Request().Context(), franchiseID, ingredientID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Health runs every check with a short deadline --> GET /health
func Health(service string, checks map[string]models.HealthCheck) echo.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		resp := models.Health{Status: "ok", Service: service, Time: time.Now().UTC(), Checks: map[string]string{}}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Status = "degraded"
				resp.Checks[name] = err.Error()
				continue
			}
			resp.Checks[name] = "ok"
		}
		code := http.StatusOK
		if resp.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, resp)
	}
}

// atoiDefault parses a non-negative int, falling back to d.
func atoiDefault(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return d
	}
	return n
}
