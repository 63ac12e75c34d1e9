package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/corsproxy/corsproxy/internal/cache"
	"github.com/corsproxy/corsproxy/internal/fetcher"
	"github.com/corsproxy/corsproxy/internal/logging"
	"github.com/corsproxy/corsproxy/internal/server"
)

// 响应头 X-Served-From 的取值，标记正文来源。
const (
	HeaderServedFrom = "X-Served-From"
	ServedFromCache  = "cache"
	ServedFromOrigin = "origin"
)

const cachedContentType = "application/octet-stream"

// Handler 负责 orchestrate “读缓存 → 回源 → 写缓存” 的全流程，
// 对外暴露 Fiber handler，内部复用 Fetcher 与磁盘缓存。
type Handler struct {
	fetcher fetcher.Fetcher
	logger  *logrus.Logger
	store   cache.Store
	flights singleflight.Group
}

// NewHandler constructs a proxy handler with shared fetcher/logger/store.
func NewHandler(f fetcher.Fetcher, logger *logrus.Logger, store cache.Store) *Handler {
	return &Handler{
		fetcher: f,
		logger:  logger,
		store:   store,
	}
}

// Handle 解析 ?url=，无 scheme 时回落到本地文件，否则命中缓存或回源；
// 任何阶段出错都转换为 HTTP 错误响应并输出结构化日志。
func (h *Handler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)

	rawTarget := strings.Clone(c.Query("url"))
	if strings.TrimSpace(rawTarget) == "" {
		return h.writeError(c, fiber.StatusBadRequest, "url_required")
	}

	target, err := url.Parse(rawTarget)
	if err != nil {
		return h.writeError(c, fiber.StatusBadRequest, "invalid_url")
	}
	if target.Scheme == "" {
		return h.serveLocal(c, target, requestID)
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	content, err := h.store.Read(ctx, rawTarget)
	switch {
	case err == nil:
		return h.serveCache(c, rawTarget, content, requestID, started)
	case errors.Is(err, cache.ErrNotFound):
		// miss, continue
	default:
		h.logResult(rawTarget, requestID, fiber.StatusInternalServerError, false, 0, started, err)
		return h.writeMessage(c, fiber.StatusInternalServerError, fmt.Sprintf("cache_read_failed: %v", err))
	}

	return h.fetchAndServe(c, ctx, rawTarget, requestID, started)
}

// serveLocal 把 url 的路径改写为本地请求路径并重新路由，交给静态文件处理。
func (h *Handler) serveLocal(c fiber.Ctx, target *url.URL, requestID string) error {
	rel := strings.TrimPrefix(target.Path, "/")
	h.logger.WithFields(logrus.Fields{
		"action":     "serve_local",
		"path":       rel,
		"request_id": requestID,
	}).Debug("proxy_local_fallback")

	c.Path("/" + rel)
	c.Request().URI().SetQueryString("")
	return c.RestartRouting()
}

func (h *Handler) serveCache(c fiber.Ctx, target string, content []byte, requestID string, started time.Time) error {
	c.Set(fiber.HeaderContentType, cachedContentType)
	c.Set(HeaderServedFrom, ServedFromCache)
	c.Status(fiber.StatusOK)

	err := c.Send(content)
	h.logResult(target, requestID, fiber.StatusOK, true, len(content), started, err)
	return err
}

func (h *Handler) fetchAndServe(c fiber.Ctx, ctx context.Context, target, requestID string, started time.Time) error {
	resp, err := h.fetchAndStore(ctx, target)
	if err != nil {
		h.logResult(target, requestID, fiber.StatusInternalServerError, false, 0, started, err)
		if errors.Is(err, cache.ErrIO) {
			return h.writeMessage(c, fiber.StatusInternalServerError, fmt.Sprintf("cache_write_failed: %v", err))
		}
		return h.writeMessage(c, fiber.StatusInternalServerError, fmt.Sprintf("Error proxying request: %v", err))
	}

	copyResponseHeaders(c, resp.Headers)
	c.Set(HeaderServedFrom, ServedFromOrigin)
	c.Status(resp.StatusCode)

	err = c.Send(resp.Body)
	h.logResult(target, requestID, resp.StatusCode, false, len(resp.Body), started, err)
	return err
}

// fetchAndStore 对同一 URL 的并发回源做合并：只有一个请求真正回源并写缓存，
// 其余请求共享结果。回源不随单个客户端断开而取消。
func (h *Handler) fetchAndStore(ctx context.Context, target string) (*fetcher.Response, error) {
	flightCtx := context.WithoutCancel(ctx)
	value, err, shared := h.flights.Do(target, func() (interface{}, error) {
		resp, err := h.fetcher.Fetch(flightCtx, target)
		if err != nil {
			return nil, err
		}
		if _, err := h.store.Write(flightCtx, target, resp.Body); err != nil {
			return nil, err
		}
		return resp, nil
	})
	if shared {
		h.logger.WithFields(logrus.Fields{"action": "fetch", "url": target}).Debug("fetch_coalesced")
	}
	if err != nil {
		return nil, err
	}
	return value.(*fetcher.Response), nil
}

// copyResponseHeaders 按原顺序转发上游头（保留同名重复项），跳过编码/分块相关头。
func copyResponseHeaders(c fiber.Ctx, headers []fetcher.Header) {
	for _, header := range headers {
		if server.IsStrippedHeader(header.Name) {
			continue
		}
		c.Response().Header.Add(header.Name, header.Value)
	}
}

func (h *Handler) writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (h *Handler) writeMessage(c fiber.Ctx, status int, message string) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(status).SendString(message)
}

func (h *Handler) logResult(
	target string,
	requestID string,
	status int,
	cacheHit bool,
	size int,
	started time.Time,
	err error,
) {
	fields := logging.RequestFields(target, requestID, cacheHit)
	fields["action"] = "proxy"
	fields["status"] = status
	fields["bytes"] = size
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if cacheHit {
		fields["served_from"] = ServedFromCache
	} else {
		fields["served_from"] = ServedFromOrigin
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("proxy_failed")
		return
	}
	h.logger.WithFields(fields).Info("proxy_complete")
}
