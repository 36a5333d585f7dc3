package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nitesh/civictrack/internal/api"
	"github.com/nitesh/civictrack/internal/config"
	"github.com/nitesh/civictrack/internal/location"
	"github.com/nitesh/civictrack/internal/service"
	"github.com/nitesh/civictrack/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		conn, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer conn.Close() //nolint:errcheck

		// ensure tables exist (run migrations)
		if err := store.RunMigrations(ctx, conn); err != nil {
			return err
		}

		locations, closeLocations, err := locationProvider(ctx)
		if err != nil {
			return err
		}
		defer closeLocations()

		svc := service.NewService(store.NewSQLStore(conn), locations, newGeocoder())
		handler := api.NewHandler(svc, cfg.DefaultRadius())

		var writes []gin.HandlerFunc
		if cfg.RateLimit.RPS > 0 {
			writes = append(writes, api.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware())
		}

		if cfg.Log.Format != "console" {
			gin.SetMode(gin.ReleaseMode)
		}
		router := gin.New()
		router.Use(gin.Recovery(), api.RequestLogger())
		api.RegisterRoutes(router, handler, writes...)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server",
				zap.Int("port", port),
				zap.String("store", cfg.Store.Driver),
				zap.String("locations", cfg.Location.Backend),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

// locationProvider builds the configured per-session location backend.
func locationProvider(ctx context.Context) (location.Provider, func(), error) {
	switch cfg.Location.Backend {
	case config.BackendMemory:
		return location.MemoryProvider(), func() {}, nil
	case config.BackendFile:
		fs, err := localStore()
		if err != nil {
			return nil, nil, err
		}
		zap.L().Warn("file location backend shares one location across all sessions", zap.String("path", fs.Path()))
		return single(fs), func() {}, nil
	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			zap.L().Warn("redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		return location.RedisProvider(rdb), func() { _ = rdb.Close() }, nil
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
