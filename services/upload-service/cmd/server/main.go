package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	applog "terminal-terrace/logger"
	"terminal-terrace/upload-service/config"
	"terminal-terrace/upload-service/internal/database"
	"terminal-terrace/upload-service/internal/file"
	"terminal-terrace/upload-service/internal/grpc"
	"terminal-terrace/upload-service/internal/ledger"
	"terminal-terrace/upload-service/internal/lock"
	"terminal-terrace/upload-service/internal/route"
	"terminal-terrace/upload-service/internal/upload"
)

// @title Upload Service API
// @version 1.0
// @description plupload 分块上传服务
// @BasePath /api/v1
func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 加载配置
	config.MustLoad(*configPath)
	conf := config.Conf

	// 2. 初始化日志
	if err := applog.Init(applog.Config{
		Level:      conf.Log.Level,
		Format:     conf.Log.Format,
		Output:     conf.Log.Output,
		Path:       conf.Log.Path,
		MaxSize:    conf.Log.MaxSize,
		MaxBackups: conf.Log.MaxBackups,
		MaxAge:     conf.Log.MaxAge,
	}); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer applog.Sync()

	if err := run(conf); err != nil {
		applog.L().Fatal("服务异常退出", zap.Error(err))
	}
}

func run(conf *config.AppConfig) error {
	logger := applog.L()

	// 3. 初始化数据库
	if err := database.InitDatabase(); err != nil {
		return fmt.Errorf("初始化数据库失败: %w", err)
	}
	defer database.Close()

	// 4. 组装上传服务
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(conf.Upload.TargetDir, 0o777); err != nil {
		return fmt.Errorf("创建上传目录失败: %w", err)
	}

	var files file.Repository
	if conf.Upload.RegisterFiles {
		files = file.NewRepository(database.PostgresDB)
	}

	svc := upload.NewService(upload.Options{
		TargetDir:    conf.Upload.TargetDir,
		StagedWrites: conf.Upload.StagedWrites,
		VerifyChunks: conf.Upload.VerifyChunks,
		LockTimeout:  conf.Upload.LockTimeoutDuration(),
	}, fs, newLocker(conf), newLedger(conf), files, logger)

	if conf.Server.Mode != "" {
		gin.SetMode(conf.Server.Mode)
	}
	r := route.SetupRouter(route.Dependencies{
		Upload: svc,
		UploadOptions: upload.HandlerOptions{
			FileField:    conf.Upload.FileField,
			MaxChunkSize: conf.Upload.MaxChunkSize,
			StrictParams: conf.Upload.StrictParams,
		},
		Files:       files,
		Fs:          fs,
		JWTSecret:   conf.JWT.Secret,
		RequireAuth: conf.Upload.RequireAuth,
		FrontendURL: conf.FrontendURL,
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", conf.Server.Host, conf.Server.Port),
		Handler:      r,
		ReadTimeout:  conf.Server.ReadTimeout,
		WriteTimeout: conf.Server.WriteTimeout,
	}

	var grpcServer *grpc.Server
	if conf.GRPC.Port > 0 {
		var err error
		if grpcServer, err = grpc.NewServer(conf.GRPC.Port, logger); err != nil {
			return err
		}
		grpcServer.SetServing(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	// 5. 启动服务
	g.Go(func() error {
		logger.Info("HTTP 服务启动", zap.String("addr", httpServer.Addr), zap.String("upload_dir", conf.Upload.TargetDir))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if grpcServer != nil {
		g.Go(func() error {
			logger.Info("gRPC 服务启动", zap.String("addr", grpcServer.GetAddr()))
			return grpcServer.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			grpcServer.Stop()
			return nil
		})
	}

	// 6. 收到信号后优雅退出
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("正在关闭服务")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLocker(conf *config.AppConfig) lock.Locker {
	switch conf.Upload.Lock {
	case "redis":
		return lock.NewRedisLocker(database.RedisDB.Client, lock.WithExpiry(conf.Upload.LockExpiryDuration()))
	case "none":
		return lock.NopLocker{}
	default:
		return lock.NewLocalLocker()
	}
}

func newLedger(conf *config.AppConfig) ledger.Ledger {
	if database.RedisDB != nil {
		return ledger.NewRedisLedger(database.RedisDB.Client, conf.Upload.SessionTTLDuration())
	}
	return ledger.NewMemoryLedger(conf.Upload.SessionTTLDuration())
}
