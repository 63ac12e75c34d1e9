package server

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/static"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/corsproxy/corsproxy/internal/config"
)

// ProxyPath 是代理入口，目标 URL 通过 ?url= 传入。
const ProxyPath = "/proxy"

// ProxyHandler describes the component responsible for the /proxy endpoint.
// It allows injecting fake handlers during tests.
type ProxyHandler interface {
	Handle(fiber.Ctx) error
}

// ProxyHandlerFunc adapts a function to the ProxyHandler interface.
type ProxyHandlerFunc func(fiber.Ctx) error

// Handle makes ProxyHandlerFunc satisfy ProxyHandler.
func (f ProxyHandlerFunc) Handle(c fiber.Ctx) error {
	return f(c)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger    *logrus.Logger
	Proxy     ProxyHandler
	ServeRoot string
	CORS      config.CORSConfig
}

const contextKeyRequestID = "_corsproxy_request_id"

// NewApp builds a Fiber application that proxies /proxy?url= requests and
// serves every other GET path from ServeRoot.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Proxy == nil {
		return nil, errors.New("proxy handler is required")
	}
	if strings.TrimSpace(opts.ServeRoot) == "" {
		return nil, errors.New("serve root is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(requestContextMiddleware())
	app.Use(corsMiddleware(opts.CORS))
	app.Use(recover.New())

	app.Get(ProxyPath, func(c fiber.Ctx) error {
		return opts.Proxy.Handle(c)
	})

	app.Get("/*", static.New(opts.ServeRoot, static.Config{
		Browse: true,
		Next: func(c fiber.Ctx) bool {
			return isDiagnosticsPath(c.Path())
		},
	}))

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID；路由重启时沿用已有的 ID。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := RequestID(c)
		if reqID == "" {
			reqID = uuid.NewString()
			c.Locals(contextKeyRequestID, reqID)
		}
		c.Set(fiber.HeaderXRequestID, reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
