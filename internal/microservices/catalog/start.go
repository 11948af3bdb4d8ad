package catalog

import (
	"github.com/labstack/echo/v4"

	"good-food/internal/common/logger"
	"good-food/internal/microservices/catalog/handlers"
	"good-food/internal/microservices/catalog/service"
	"good-food/internal/repository"
)

func Mount(e *echo.Echo, store repository.CatalogStore, lg *logger.Logger) {
	handlers.NewCatalogHandler(service.NewCatalogService(store, lg)).Register(e)
}
