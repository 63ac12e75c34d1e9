package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/corsproxy/corsproxy/internal/config"
)

func TestConfigureDefaultsToStdout(t *testing.T) {
	logger, err := InitLogger(config.GlobalConfig{LogLevel: "info"})
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	if logger.Out != os.Stdout {
		t.Fatalf("未指定文件时应输出到 stdout")
	}
	if _, ok := logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("默认应使用 JSON 格式，得到 %T", logger.Formatter)
	}
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := InitLogger(config.GlobalConfig{LogLevel: "loud"}); err == nil {
		t.Fatalf("非法日志级别应返回错误")
	}
}

func TestVerboseForcesDebug(t *testing.T) {
	logger, err := InitLogger(config.GlobalConfig{LogLevel: "warn", Verbose: true})
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("Verbose 应启用 debug，得到 %s", logger.GetLevel())
	}
}

func TestInitLoggerFallbackOnPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root 用户不受目录权限限制")
	}
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.Chmod(blocked, 0o000); err != nil {
		t.Fatalf("设置目录权限失败: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(blocked, 0o755) })

	cfg := config.GlobalConfig{
		LogLevel:    "info",
		LogFilePath: filepath.Join(blocked, "sub", "corsproxy.log"),
	}
	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("初始化不应失败: %v", err)
	}
	if logger.Out != os.Stdout {
		t.Fatalf("fallback 时应退回 stdout")
	}
}

func TestConfigureCreatesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corsproxy.log")
	cfg := config.GlobalConfig{LogLevel: "debug", LogFilePath: path}
	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	logger.Info("test")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("预期创建日志文件: %v", err)
	}
}

func TestBuildFormatter(t *testing.T) {
	if _, ok := buildFormatter(config.LogFormatText, &bytes.Buffer{}).(*logrus.TextFormatter); !ok {
		t.Fatalf("text 格式应返回 TextFormatter")
	}
	if _, ok := buildFormatter(config.LogFormatAuto, &bytes.Buffer{}).(*logrus.JSONFormatter); !ok {
		t.Fatalf("非终端输出在 auto 模式下应回退 JSON")
	}
}

func TestRequestFields(t *testing.T) {
	fields := RequestFields("http://example.test/a", "req-1", true)
	if fields["url"] != "http://example.test/a" || fields["cache_hit"] != true || fields["request_id"] != "req-1" {
		t.Fatalf("字段不完整: %v", fields)
	}
	if _, ok := RequestFields("x", "", false)["request_id"]; ok {
		t.Fatalf("空请求 ID 不应写入字段")
	}
}
