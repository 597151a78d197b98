package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/getcharzp/go-clickseg/sam"
	"github.com/getcharzp/go-clickseg/server"
	"github.com/getcharzp/go-clickseg/session"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := server.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := server.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer server.Sync()
	logger := server.Logger

	logger.Info("starting clickseg server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch))

	// 初始化推理引擎
	engineConfig, err := cfg.EngineConfig()
	if err != nil {
		logger.Fatal("invalid model config", zap.Error(err))
	}
	engine, err := sam.NewEngine(engineConfig, logger.Named("sam"))
	if err != nil {
		logger.Fatal("failed to create sam engine", zap.Error(err))
	}
	defer engine.Destroy()

	// 初始化会话
	opts, err := cfg.SessionOptions(engine.Contract())
	if err != nil {
		logger.Fatal("invalid render config", zap.Error(err))
	}
	if opts.Annotator != nil {
		defer opts.Annotator.Close()
	}
	opts.Logger = logger.Named("session")
	opts.OnStatus = func(state session.State, status string) {
		logger.Debug("session status", zap.Stringer("state", state), zap.String("status", status))
	}
	sess := session.New(engine, opts)

	// 初始化特征缓存
	cache, closeCache := newCache(cfg, logger)
	defer closeCache()

	uploadHandler := server.NewHandler(cfg, sess, engine, cache, engineConfig.Variant)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)
	r := server.NewRouter(uploadHandler, server.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

// newCache Redis 可用时使用 Redis, 否则退回内存缓存
func newCache(cfg *server.Config, logger *zap.Logger) (sam.Cache, func()) {
	memory := sam.NewMemoryCache(cfg.Redis.MemorySize)
	if !cfg.Redis.Enabled {
		return memory, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis connection failed, using memory cache", zap.Error(err))
		_ = client.Close()
		return memory, func() {}
	}
	logger.Info("redis connected successfully", zap.String("addr", cfg.Redis.Addr))
	return sam.NewRedisCache(client, cfg.Redis.TTL), func() { _ = client.Close() }
}
