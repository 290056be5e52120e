package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/rl1809/catalog-sync/internal/adapter/handler"
	"github.com/rl1809/catalog-sync/internal/adapter/handler/rpc"
	"github.com/rl1809/catalog-sync/internal/config"
	"github.com/rl1809/catalog-sync/internal/core/service"
	"github.com/rl1809/catalog-sync/internal/logging"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and builds the logger it describes.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

var rootCmd = &cobra.Command{
	Use:          "catalog",
	Short:        "Catalog data-access and sync service",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and gRPC servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if err := applyServeFlags(cmd, cfg); err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, logger)
	},
}

func registerServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("http-addr", "", "HTTP listen address (overrides config)")
	cmd.Flags().String("grpc-addr", "", "gRPC listen address, empty disables gRPC (overrides config)")
	cmd.Flags().Bool("allow-open-mutations", false, "Start without auth.jwt_secret, leaving mutation routes unauthenticated")
}

// applyServeFlags overlays explicitly set flags on cfg and revalidates it.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("http-addr") {
		cfg.Server.HTTPAddr, _ = flags.GetString("http-addr")
	}
	if flags.Changed("grpc-addr") {
		cfg.Server.GRPCAddr, _ = flags.GetString("grpc-addr")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if allowOpen, _ := flags.GetBool("allow-open-mutations"); cfg.Auth.JWTSecret == "" && !allowOpen {
		return errors.New("auth.jwt_secret is empty; set it (or CATALOG_JWT_SECRET) or pass --allow-open-mutations")
	}
	return nil
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sellers, categories and subcategories from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		path, _ := cmd.Flags().GetString("file")
		f, err := readSeedFile(path)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := seedCatalog(ctx, a.catalog, f)
		if err != nil {
			return fmt.Errorf("seeding: %w", err)
		}
		fmt.Printf("Seeded %d sellers, %d categories, %d subcategories\n",
			stats.Sellers, stats.Categories, stats.Subcategories)
		return nil
	},
}

var flushCacheCmd = &cobra.Command{
	Use:   "flush-cache",
	Short: "Drop every cached catalog view",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Cache.Type != config.CacheRedis {
			return fmt.Errorf("cache type %q is process-local; use POST /admin/cache/flush on the running server", cfg.Cache.Type)
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		a.catalog.FlushCache(ctx)
		fmt.Printf("Flushed namespaces: %v\n", service.AllNamespaces)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to catalog.toml (defaults only when empty)")

	registerServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)

	seedCmd.Flags().StringP("file", "f", "catalog.json", "Seed file")
	rootCmd.AddCommand(seedCmd)

	rootCmd.AddCommand(flushCacheCmd)
}

func serve(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Auth.JWTSecret == "" {
		logger.Warn(ctx, "auth.jwt_secret is empty, mutation routes are unauthenticated")
	}

	errCh := make(chan error, 2)

	// gRPC
	var grpcServer *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", cfg.Server.GRPCAddr, err)
		}
		grpcServer = grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryInterceptor(logger)))
		rpc.RegisterCatalogServer(grpcServer, handler.NewGRPCHandler(a.catalog))

		go func() {
			logger.Info(ctx, "gRPC server listening", "addr", cfg.Server.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	// HTTP
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler.NewHTTPHandler(a.catalog, logger).Routes(cfg.Auth.JWTSecret),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "shutting down")
	case err := <-errCh:
		logger.Error(context.Background(), "server failed", "error", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "HTTP shutdown failed", "error", err)
	}
	logger.Info(shutdownCtx, "HTTP server stopped")

	if grpcServer != nil {
		grpcServer.GracefulStop()
		logger.Info(shutdownCtx, "gRPC server stopped")
	}
	return nil
}
