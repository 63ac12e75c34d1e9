package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量覆盖的前缀，例如 CORSPROXY_LISTENPORT。
const EnvPrefix = "CORSPROXY"

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
// path 为空时仅使用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyCORSDefaults(&cfg.CORS)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.absPaths(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Finalize 在 CLI 覆盖之后重新校验并规范化路径。
func (c *Config) Finalize() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return c.absPaths()
}

func (c *Config) absPaths() error {
	absStorage, err := filepath.Abs(c.Global.StoragePath)
	if err != nil {
		return fmt.Errorf("无法解析缓存目录: %w", err)
	}
	c.Global.StoragePath = absStorage

	absRoot, err := filepath.Abs(c.Global.ServeRoot)
	if err != nil {
		return fmt.Errorf("无法解析静态目录: %w", err)
	}
	c.Global.ServeRoot = absRoot
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 8000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", LogFormatJSON)
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("Verbose", false)
	v.SetDefault("StoragePath", "./cache")
	v.SetDefault("CacheTTL", 3600)
	v.SetDefault("CacheKeyMode", KeyModeFlat)
	v.SetDefault("ServeRoot", ".")
	v.SetDefault("Fetcher", FetcherHTTP)
	v.SetDefault("CurlPath", "curl")
	v.SetDefault("UpstreamTimeout", "30s")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 8000
	}
	if g.CacheTTL.DurationValue() == 0 {
		g.CacheTTL = Duration(time.Hour)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
	g.LogFormat = strings.ToLower(strings.TrimSpace(g.LogFormat))
	if g.LogFormat == "" {
		g.LogFormat = LogFormatJSON
	}
	g.CacheKeyMode = strings.ToLower(strings.TrimSpace(g.CacheKeyMode))
	if g.CacheKeyMode == "" {
		g.CacheKeyMode = KeyModeFlat
	}
	g.Fetcher = strings.ToLower(strings.TrimSpace(g.Fetcher))
	if g.Fetcher == "" {
		g.Fetcher = FetcherHTTP
	}
	if strings.TrimSpace(g.CurlPath) == "" {
		g.CurlPath = "curl"
	}
	if g.ServeRoot == "" {
		g.ServeRoot = "."
	}
}

func applyCORSDefaults(c *CORSConfig) {
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"*"}
	}
	if len(c.AllowMethods) == 0 {
		c.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(c.AllowHeaders) == 0 {
		c.AllowHeaders = []string{"X-Requested-With", "Content-Type", "Authorization"}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
