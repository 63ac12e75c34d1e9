package server

import (
	"net"
	"net/http"
	"net/textproto"
	"time"

	"github.com/corsproxy/corsproxy/internal/config"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewUpstreamClient 返回共享 http.Client，用于所有回源请求；重定向不会被跟随。
func NewUpstreamClient(cfg *config.Config) *http.Client {
	timeout := 30 * time.Second
	if cfg != nil && cfg.Global.UpstreamTimeout.DurationValue() > 0 {
		timeout = cfg.Global.UpstreamTimeout.DurationValue()
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// strippedHeaders 描述服务端不会逐字节复现的编码/分块方式，转发时必须去掉，
// 否则客户端会按错误的编码解码正文。
var strippedHeaders = map[string]struct{}{
	"Transfer-Encoding": {},
	"Content-Encoding":  {},
}

// IsStrippedHeader reports whether an upstream header must be dropped when
// forwarding a fetched response.
func IsStrippedHeader(key string) bool {
	_, ok := strippedHeaders[textproto.CanonicalMIMEHeaderKey(key)]
	return ok
}
