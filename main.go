package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/corsproxy/corsproxy/internal/cache"
	"github.com/corsproxy/corsproxy/internal/config"
	"github.com/corsproxy/corsproxy/internal/fetcher"
	"github.com/corsproxy/corsproxy/internal/logging"
	"github.com/corsproxy/corsproxy/internal/proxy"
	"github.com/corsproxy/corsproxy/internal/server"
	"github.com/corsproxy/corsproxy/internal/server/routes"
	"github.com/corsproxy/corsproxy/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	overrides   config.Overrides
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, opts)
	stop()
	os.Exit(code)
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
// ctx 结束时 HTTP 服务优雅退出，返回 0。
func run(ctx context.Context, opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}
	cfg.Apply(opts.overrides)
	if err := cfg.Finalize(); err != nil {
		fmt.Fprintf(stdErr, "参数校验失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["listen_port"] = cfg.Global.ListenPort
		fields["cache_ttl_seconds"] = int64(cfg.EffectiveCacheTTL() / time.Second)
		fields["fetcher"] = cfg.Global.Fetcher
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 磁盘缓存 → 回源实现 → 代理 handler → Fiber server，
	// 所有请求共享同一份缓存与上游客户端。
	store, err := cache.NewStore(cfg.Global.StoragePath, cache.Options{
		TTL:     cfg.EffectiveCacheTTL(),
		KeyMode: cfg.Global.CacheKeyMode,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	upstream, err := fetcher.New(fetcher.Options{
		Kind:      cfg.Global.Fetcher,
		Client:    server.NewUpstreamClient(cfg),
		CurlPath:  cfg.Global.CurlPath,
		UserAgent: version.UserAgent(),
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化回源实现失败: %v\n", err)
		return 1
	}

	proxyHandler := proxy.NewHandler(upstream, logger, store)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["storage_path"] = cfg.Global.StoragePath
	fields["serve_root"] = cfg.Global.ServeRoot
	fields["cache_ttl_seconds"] = int64(cfg.EffectiveCacheTTL() / time.Second)
	fields["fetcher"] = cfg.Global.Fetcher
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(ctx, cfg, store, proxyHandler, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// printVersion 输出产品名、版本与提交信息。
func printVersion() {
	fmt.Fprintln(stdOut, version.Full())
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("corsproxy", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		port       int
		ttlSeconds int
		root       string
		verbose    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（可被 CORSPROXY_CONFIG 指定，为空时仅使用默认值）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.IntVar(&port, "port", 0, "监听端口")
	fs.IntVar(&port, "p", 0, "监听端口（简写）")
	fs.IntVar(&ttlSeconds, "cache-duration", 0, "缓存有效期（秒）")
	fs.IntVar(&ttlSeconds, "c", 0, "缓存有效期（秒，简写）")
	fs.StringVar(&root, "root", "", "本地静态文件目录")
	fs.StringVar(&root, "d", "", "本地静态文件目录（简写）")
	fs.BoolVar(&verbose, "verbose", false, "输出 debug 日志")
	fs.BoolVar(&verbose, "v", false, "输出 debug 日志（简写）")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}
	if fs.NArg() > 0 {
		return cliOptions{}, fmt.Errorf("解析参数失败: 未知参数 %v", fs.Args())
	}
	if port < 0 || port > 65535 {
		return cliOptions{}, fmt.Errorf("解析参数失败: 端口超出范围 %d", port)
	}
	if ttlSeconds < 0 {
		return cliOptions{}, fmt.Errorf("解析参数失败: 缓存有效期不能为负数 %d", ttlSeconds)
	}

	path := os.Getenv("CORSPROXY_CONFIG")
	if configFlag != "" {
		path = configFlag
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		overrides: config.Overrides{
			ListenPort: port,
			CacheTTL:   time.Duration(ttlSeconds) * time.Second,
			ServeRoot:  root,
			Verbose:    verbose,
		},
	}, nil
}

func startHTTPServer(ctx context.Context, cfg *config.Config, store cache.Store, proxyHandler server.ProxyHandler, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:    logger,
		Proxy:     proxyHandler,
		ServeRoot: cfg.Global.ServeRoot,
		CORS:      cfg.CORS,
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnosticsRoutes(app, store)

	logger.WithFields(logrus.Fields{
		"action":     "listen",
		"port":       port,
		"serve_root": cfg.Global.ServeRoot,
	}).Info("Fiber 服务启动")
	logger.Infof("Use http://localhost:%d%s?url=YOUR_URL", port, server.ProxyPath)

	err = app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	})
	if err != nil {
		return err
	}
	logger.WithField("action", "shutdown").Info("Fiber 服务已停止")
	return nil
}
