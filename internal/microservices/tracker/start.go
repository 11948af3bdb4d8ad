package tracker

import (
	"github.com/labstack/echo/v4"

	"good-food/internal/microservices/tracker/handler"
	"good-food/internal/microservices/tracker/models"
	"good-food/internal/microservices/tracker/service"
	"good-food/internal/repository"
)

// Mount registers the read side and the health endpoint.
func Mount(e *echo.Echo, store repository.Store, serviceName string, checks map[string]models.HealthCheck) {
	svc := service.NewService(store)
	handler.Router(e, handler.New(svc.TrackerService))
	e.GET("/health", handler.Health(serviceName, checks))
}
