package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testConfigPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join("testdata", name)
}

// writeTempConfig 将 TOML 片段写入临时目录，返回文件路径。
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corsproxy.toml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

// validConfig 返回一份可以通过 Validate 的最小配置，供各用例按需修改。
func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:      8000,
			LogLevel:        "info",
			LogFormat:       LogFormatJSON,
			StoragePath:     "./cache",
			CacheTTL:        Duration(time.Hour),
			CacheKeyMode:    KeyModeFlat,
			ServeRoot:       ".",
			Fetcher:         FetcherHTTP,
			CurlPath:        "curl",
			UpstreamTimeout: Duration(time.Second),
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Content-Type"},
		},
	}
}
