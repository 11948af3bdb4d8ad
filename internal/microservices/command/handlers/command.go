package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"good-food/internal/common/httpx"
	"good-food/internal/domain"
	"good-food/internal/microservices/command/service"
)

type CommandHandler struct {
	service service.CommandServiceInterface
}

func NewCommandHandler(s service.CommandServiceInterface) *CommandHandler {
	return &CommandHandler{service: s}
}

func respond(c echo.Context, code int, cmd domain.Command) error {
	httpx.SetVersion(c, cmd.Version)
	return c.JSON(code, domain.NewCommandResponse(cmd))
}

// AddCommand creates a draft supplier command --> POST /commands
func (ch *CommandHandler) AddCommand(c echo.Context) error {
	var req domain.CreateCommandRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Fail(c, err)
	}
	franchiseID, err := domain.ParseID("franchise_id", req.FranchiseID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	items, err := domain.ConvertCommandItems(req.Items)
	if err != nil {
		return httpx.Fail(c, err)
	}
	userID := req.UserID
	if userID == "" {
		userID = httpx.UserID(c)
	}
	cmd, err := ch.service.CreateCommand(c.Request().Context(), service.NewCommand{
		FranchiseID: franchiseID, UserID: userID, Items: items,
	})
	if err != nil {
		return httpx.Fail(c, err)
	}
	return respond(c, http.StatusCreated, cmd)
}

// UpdateCommand applies a partial update --> PUT /commands/:id
func (ch *CommandHandler) UpdateCommand(c echo.Context) error {
	id, version, err := target(c)
	if err != nil {
		return httpx.Fail(c, err)
	}
	var req domain.UpdateCommandRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Fail(c, err)
	}
	upd := service.CommandUpdate{UserID: req.UserID}
	if req.Status != nil {
		st := domain.CommandStatus(*req.Status)
		upd.Status = &st
	}
	if req.Items != nil {
		items, err := domain.ConvertCommandItems(*req.Items)
		if err != nil {
			return httpx.Fail(c, err)
		}
		upd.Items = &items
	}
	cmd, err := ch.service.Update(c.Request().Context(), id, upd, version, httpx.Actor(c))
	if err != nil {
		return httpx.Fail(c, err)
	}
	return respond(c, http.StatusOK, cmd)
}

// AddItem --> POST /commands/:id/items
func (ch *CommandHandler) AddItem(c echo.Context) error {
	id, version, err := target(c)
	if err != nil {
		return httpx.Fail(c, err)
	}
	var req domain.CommandItemRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Fail(c, err)
	}
	items, err := domain.ConvertCommandItems([]domain.CommandItemRequest{req})
	if err != nil {
		return httpx.Fail(c, err)
	}
	cmd, err := ch.service.AddItem(c.Request().Context(), id, items[0], version)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return respond(c, http.StatusOK, cmd)
}

// UpdateItem --> PATCH /commands/:id/items/:ingredientId
func (ch *CommandHandler) UpdateItem(c echo.Context) error {
	id, version, err := target(c)
	if err != nil {
		return httpx.Fail(c, err)
	}
	ingredientID, err := domain.ParseID("ingredientId", c.Param("ingredientId"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	var req domain.UpdateCommandItemRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Fail(c, err)
	}
	cmd, err := ch.service.UpdateItem(c.Request().Context(), id, ingredientID, req.Quantity, version)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return respond(c, http.StatusOK, cmd)
}

// RemoveItem --> DELETE /commands/:id/items/:ingredientId
func (ch *CommandHandler) RemoveItem(c echo.Context) error {
	id, version, err := target(c)
	if err != nil {
		return httpx.Fail(c, err)
	}
	ingredientID, err := domain.ParseID("ingredientId", c.Param("ingredientId"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	cmd, err := ch.service.RemoveItem(c.Request().Context(), id, ingredientID, version)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return respond(c, http.StatusOK, cmd)
}

func target(c echo.Context) (string, *int, error) {
	id, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return "", nil, err
	}
	version, err := httpx.IfMatch(c)
	if err != nil {
		return "", nil, err
	}
	return id, version, nil
}
