package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// 回源实现与缓存键模式的可选值。
const (
	FetcherHTTP = "http"
	FetcherCurl = "curl"

	KeyModeFlat = "flat"
	KeyModeHash = "hash"

	LogFormatJSON = "json"
	LogFormatText = "text"
	LogFormatAuto = "auto"
)

// GlobalConfig 描述全局运行时行为：监听端口、日志、缓存目录与回源方式。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFormat       string   `mapstructure:"LogFormat"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	Verbose         bool     `mapstructure:"Verbose"`
	StoragePath     string   `mapstructure:"StoragePath"`
	CacheTTL        Duration `mapstructure:"CacheTTL"`
	CacheKeyMode    string   `mapstructure:"CacheKeyMode"`
	ServeRoot       string   `mapstructure:"ServeRoot"`
	Fetcher         string   `mapstructure:"Fetcher"`
	CurlPath        string   `mapstructure:"CurlPath"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// CORSConfig 决定每个响应附带的跨域头。
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"AllowOrigins"`
	AllowMethods []string `mapstructure:"AllowMethods"`
	AllowHeaders []string `mapstructure:"AllowHeaders"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	CORS   CORSConfig   `mapstructure:"CORS"`
}

// Overrides 记录 CLI 显式传入的参数，零值表示未指定。
type Overrides struct {
	ListenPort int
	CacheTTL   time.Duration
	ServeRoot  string
	Verbose    bool
}

// Apply 将 CLI 覆盖项写回配置，随后需重新 Validate。
func (c *Config) Apply(o Overrides) {
	if o.ListenPort != 0 {
		c.Global.ListenPort = o.ListenPort
	}
	if o.CacheTTL != 0 {
		c.Global.CacheTTL = Duration(o.CacheTTL)
	}
	if o.ServeRoot != "" {
		c.Global.ServeRoot = o.ServeRoot
	}
	if o.Verbose {
		c.Global.Verbose = true
	}
}

// EffectiveLogLevel 在 Verbose 打开时强制 debug。
func (g GlobalConfig) EffectiveLogLevel() string {
	if g.Verbose {
		return "debug"
	}
	return g.LogLevel
}
