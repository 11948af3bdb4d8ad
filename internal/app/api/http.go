package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"good-food/internal/app"
	"good-food/internal/common/httpx"
	"good-food/internal/common/logger"
	"good-food/internal/config"
	"good-food/internal/microservices/catalog"
	"good-food/internal/microservices/command"
	commandsvc "good-food/internal/microservices/command/service"
	"good-food/internal/microservices/order"
	ordersvc "good-food/internal/microservices/order/service"
	"good-food/internal/microservices/stock"
	"good-food/internal/microservices/tracker"
)

// NewRouter builds the echo instance with every endpoint of the service.
func NewRouter(d *app.Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpx.ErrorHandler

	e.Use(middleware.Recover())
	e.Use(requestLogger(d.Log))
	if d.Cfg.HTTP.RateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(rateLimiter(d.Cfg.HTTP)))
	}
	e.Use(httpx.Identity(d.Cfg.Auth.JWTSecret, func(c echo.Context) bool { return c.Path() == "/health" }))

	catalog.Mount(e, d.Store, d.Log)
	ledger := stock.Mount(e, d.Store)
	order.Mount(e, d.Store, ledger, d.Publisher, d.Log,
		ordersvc.WithRetry(d.RetryPolicy()), ordersvc.WithIdempotency(d.Guard))
	command.Mount(e, d.Store, ledger, d.Publisher, d.Log, commandsvc.WithRetry(d.RetryPolicy()))
	tracker.Mount(e, d.Store, d.Cfg.Service, d.Checks)
	return e
}

func Run(ctx context.Context, d *app.Deps) error {
	addr := ":" + strconv.Itoa(d.Cfg.HTTP.Port)
	d.Log.Info("http_listening", map[string]any{"addr": addr})
	srv := httpx.New(addr, NewRouter(d), d.Cfg.HTTP.ShutdownTimeout)
	return srv.Run(ctx)
}

func rateLimiter(cfg config.HTTPConfig) middleware.RateLimiterConfig {
	deny := func(c echo.Context, _ string, _ error) error {
		return httpx.WriteProblem(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
	}
	return middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimit),
				Burst:     cfg.Burst,
				ExpiresIn: 3 * time.Minute,
			}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error { return deny(c, "", err) },
		DenyHandler:  deny,
	}
}

func requestLogger(lg *logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := map[string]any{
				"method": v.Method, "uri": v.URI, "status": v.Status, "duration_ms": v.Latency.Milliseconds(),
			}
			if v.Status >= http.StatusInternalServerError {
				lg.Error("http_request", v.Error, fields)
				return nil
			}
			lg.Debug("http_request", fields)
			return nil
		},
	})
}
