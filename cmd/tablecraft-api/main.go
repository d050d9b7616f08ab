package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TableCraftLab/tablecraft/backend/internal/activation"
	"github.com/TableCraftLab/tablecraft/backend/internal/audit"
	"github.com/TableCraftLab/tablecraft/backend/internal/auth"
	"github.com/TableCraftLab/tablecraft/backend/internal/config"
	"github.com/TableCraftLab/tablecraft/backend/internal/database"
	"github.com/TableCraftLab/tablecraft/backend/internal/layout"
	"github.com/TableCraftLab/tablecraft/backend/internal/logging"
	"github.com/TableCraftLab/tablecraft/backend/internal/registry"
	"github.com/TableCraftLab/tablecraft/backend/internal/server"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tablecraft-api",
		Short: "TableCraft floor layout backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Bearer token signing secret (overrides env)")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Bearer token TTL in minutes")
	cmd.PersistentFlags().String("redis-addr", defaults.GetString("redis.addr"), "Redis address for the status mirror (optional)")
	cmd.PersistentFlags().String("amqp-url", defaults.GetString("amqp.url"), "AMQP URL for audit events (optional)")
	cmd.PersistentFlags().String("tenant-id", defaults.GetString("tenant.id"), "Tenant identifier stamped on audit entries")
	cmd.PersistentFlags().Float64("floor-width", defaults.GetFloat64("floor.width"), "Default floor width")
	cmd.PersistentFlags().Float64("floor-height", defaults.GetFloat64("floor.height"), "Default floor height")
	cmd.PersistentFlags().Float64("grid-size", defaults.GetFloat64("grid.size"), "Default grid size")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "redis.addr", "redis-addr")
	bindFlag(cmd, "amqp.url", "amqp-url")
	bindFlag(cmd, "tenant.id", "tenant-id")
	bindFlag(cmd, "floor.width", "floor-width")
	bindFlag(cmd, "floor.height", "floor-height")
	bindFlag(cmd, "grid.size", "grid-size")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var redisClient *redis.Client
	if appConfig.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unavailable, status mirror disabled", zap.Error(err))
			redisClient = nil
		}
		cancel()
	}

	statusRegistry, err := registry.NewStore(registry.StoreConfig{
		Database: db,
		Redis:    redisClient,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	auditSinks := audit.MultiSink{audit.NewDatabaseSink(db)}
	if appConfig.AMQPURL != "" {
		auditSinks = append(auditSinks, audit.NewQueuePublisher(appConfig.AMQPURL, logger))
	}

	workflow, err := activation.NewService(activation.ServiceConfig{
		Database:   db,
		IDProvider: layout.NewUUIDProvider(),
		Registry:   statusRegistry,
		AuditSink:  auditSinks,
		TenantID:   appConfig.TenantID,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	tokenManager := auth.NewTokenManager(auth.TokenManagerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.TokenIssuer,
		Audience:      appConfig.TokenAudience,
		TokenTTL:      appConfig.TokenTTL,
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenValidator: tokenManager,
		Workflow:       workflow,
		Registry:       statusRegistry,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
