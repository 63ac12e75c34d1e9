package server

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/corsproxy/corsproxy/internal/config"
)

// corsMiddleware 在处理链结束后覆盖写入跨域头，保证上游转发来的同名头不会
// 与本地配置并存；OPTIONS 预检直接返回 204。
func corsMiddleware(cfg config.CORSConfig) fiber.Handler {
	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")
	wildcard := len(cfg.AllowOrigins) == 0
	allowed := make(map[string]struct{}, len(cfg.AllowOrigins))
	for _, origin := range cfg.AllowOrigins {
		if origin == "*" {
			wildcard = true
		}
		allowed[origin] = struct{}{}
	}

	apply := func(c fiber.Ctx) {
		switch {
		case wildcard:
			c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		default:
			origin := c.Get(fiber.HeaderOrigin)
			if _, ok := allowed[origin]; ok {
				c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
			} else {
				c.Response().Header.Del(fiber.HeaderAccessControlAllowOrigin)
			}
			c.Vary(fiber.HeaderOrigin)
		}
		if methods != "" {
			c.Set(fiber.HeaderAccessControlAllowMethods, methods)
		}
		if headers != "" {
			c.Set(fiber.HeaderAccessControlAllowHeaders, headers)
		}
	}

	return func(c fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			apply(c)
			return c.SendStatus(fiber.StatusNoContent)
		}
		err := c.Next()
		apply(c)
		return err
	}
}
