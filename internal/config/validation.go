package config

import (
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.EffectiveLogLevel()); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别: "+g.LogLevel)
	}
	switch g.LogFormat {
	case LogFormatJSON, LogFormatText, LogFormatAuto:
	default:
		return newFieldError("Global.LogFormat", "仅支持 json/text/auto")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.CacheTTL.DurationValue() <= 0 {
		return newFieldError("Global.CacheTTL", "必须大于 0")
	}
	switch g.CacheKeyMode {
	case KeyModeFlat, KeyModeHash:
	default:
		return newFieldError("Global.CacheKeyMode", "仅支持 flat/hash")
	}
	switch g.Fetcher {
	case FetcherHTTP, FetcherCurl:
	default:
		return newFieldError("Global.Fetcher", "仅支持 http/curl")
	}
	if g.Fetcher == FetcherCurl && strings.TrimSpace(g.CurlPath) == "" {
		return newFieldError("Global.CurlPath", "使用 curl 回源时不能为空")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}

	if len(c.CORS.AllowOrigins) == 0 {
		return newFieldError("CORS.AllowOrigins", "至少需要一个来源")
	}
	for _, origin := range c.CORS.AllowOrigins {
		if strings.TrimSpace(origin) == "" {
			return newFieldError("CORS.AllowOrigins", "不允许空字符串")
		}
	}

	return nil
}

// EffectiveCacheTTL 返回缓存使用的 TTL。
func (c *Config) EffectiveCacheTTL() time.Duration {
	return c.Global.CacheTTL.DurationValue()
}
