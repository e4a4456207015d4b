package api

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pilacorp/go-vc-issuer/issuer"
	"github.com/pilacorp/go-vc-issuer/issuer/log"
)

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// BodyLimit caps request bodies, e.g. "1M". Empty means no limit.
	BodyLimit string
	// Gatherer is exposed on GET /metrics when set.
	Gatherer prometheus.Gatherer
}

// NewServer creates the echo server serving the issuer routes.
func NewServer(service *issuer.Service, config ServerConfig) *echo.Echo {
	logger := log.APILogger()

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.HTTPErrorHandler = createHTTPErrorHandler(logger)
	// Reverse proxies must set the X-Forwarded-For header to the original client IP.
	echoServer.IPExtractor = echo.ExtractIPFromXFFHeader()

	echoServer.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	echoServer.Use(requestLoggerMiddleware(func(c echo.Context) bool {
		return c.Path() == "/health" || c.Path() == "/metrics"
	}, logger))
	echoServer.Use(middleware.Recover())
	echoServer.Use(echo.WrapMiddleware(otelhttp.NewMiddleware("vc-issuer")))
	if config.BodyLimit != "" {
		echoServer.Use(middleware.BodyLimit(config.BodyLimit))
	}

	wrapper := &Wrapper{Service: service}
	wrapper.Routes(echoServer)
	if config.Gatherer != nil {
		echoServer.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{})))
	}
	return echoServer
}
