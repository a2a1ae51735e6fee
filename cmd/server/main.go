package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"image-enhancer/internal/auth"
	"image-enhancer/internal/config"
	apphttp "image-enhancer/internal/http"
	"image-enhancer/internal/repository/sqlite"
	"image-enhancer/internal/service"
	"image-enhancer/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using %s", cfg.Log.Level, logger.GetLevel())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := sqlite.Migrate(ctx, db); err != nil {
		logger.Fatalf("migrate database: %v", err)
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.TokenTTL())
	if err != nil {
		logger.Fatalf("setup tokens: %v", err)
	}

	uploads, outputs, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	userService := service.NewUserService(sqlite.NewUserRepository(db), logger)
	enhanceService := service.NewEnhanceService(service.EnhanceConfig{
		Uploads:       uploads,
		Outputs:       outputs,
		History:       sqlite.NewHistoryRepository(db),
		StrictFilters: cfg.Enhance.StrictFilters,
		MaxPixels:     cfg.Enhance.MaxPixels,
		Logger:        logger,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Config{
		Users:          userService,
		Enhance:        enhanceService,
		Tokens:         tokens,
		Uploads:        uploads,
		Outputs:        outputs,
		TemplatesDir:   cfg.Server.TemplatesDir,
		StaticDir:      cfg.Server.StaticDir,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Logger:         logger,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, storage.Service, error) {
	if cfg.Storage.Backend == config.StorageBackendLocal {
		up, err := storage.NewLocalService(cfg.Storage.UploadDir)
		if err != nil {
			return nil, nil, err
		}
		out, err := storage.NewLocalService(cfg.Storage.OutputDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("using local storage (uploads %s, outputs %s)", up.Root(), out.Root())
		return up, out, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})

	up, err := storage.NewS3Service(client, cfg.Storage.Bucket, path.Join(cfg.Storage.KeyPrefix, "uploads"))
	if err != nil {
		return nil, nil, err
	}
	out, err := storage.NewS3Service(client, cfg.Storage.Bucket, path.Join(cfg.Storage.KeyPrefix, "outputs"))
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return up, out, nil
}
