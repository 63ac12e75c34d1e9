package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

var (
	// ErrTransport 表示回源本身失败（网络错误、超时、curl 非零退出）。
	ErrTransport = errors.New("fetch transport failed")
	// ErrParse 表示上游响应的状态行无法解析。
	ErrParse = errors.New("response parse failed")
)

// Header 是保序的响应头键值对，同名头会重复出现。
type Header struct {
	Name  string
	Value string
}

// Response 是一次完整回源的结果：状态码、保序头列表与完整正文。
type Response struct {
	StatusCode int
	Headers    []Header
	Body       []byte
}

// Values 返回指定头（大小写不敏感）的全部取值。
func (r *Response) Values(name string) []string {
	var values []string
	for _, h := range r.Headers {
		if http.CanonicalHeaderKey(h.Name) == http.CanonicalHeaderKey(name) {
			values = append(values, h.Value)
		}
	}
	return values
}

// Fetcher 抓取一个远程 URL 并返回解析后的响应；任何失败都不返回部分结果。
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
}

// OriginOf 由 URL 的 scheme 与 host[:port] 推导出上游请求的 Origin 头。
func OriginOf(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

// Options 描述 New 构造回源实现所需的参数。
type Options struct {
	// Kind 取值 http 或 curl。
	Kind string
	// Client 供 http 实现使用；nil 时使用 http.DefaultClient 的副本。
	Client *http.Client
	// CurlPath 是 curl 可执行文件路径。
	CurlPath  string
	UserAgent string
}

// New 根据 Kind 选择原生 HTTP 客户端或外部 curl 进程。
func New(opts Options) (Fetcher, error) {
	switch opts.Kind {
	case "", "http":
		return NewHTTPFetcher(opts.Client, opts.UserAgent), nil
	case "curl":
		if opts.CurlPath == "" {
			return nil, errors.New("curl path required")
		}
		return NewCommandFetcher(opts.CurlPath), nil
	default:
		return nil, fmt.Errorf("unsupported fetcher: %s", opts.Kind)
	}
}

func parseTarget(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: url %q must be absolute", ErrTransport, rawURL)
	}
	return u, nil
}
