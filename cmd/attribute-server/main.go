// Package main provides the attribute registry server entry point.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/campushub/attribute-registry/internal/config"
	"github.com/campushub/attribute-registry/internal/db"
	"github.com/campushub/attribute-registry/internal/db/service"
	"github.com/campushub/attribute-registry/internal/domains"
	"github.com/campushub/attribute-registry/internal/server"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to server config file")
	flag.Parse()

	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		glog.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("starting attribute registry",
		"listen", cfg.Listen,
		"database", cfg.Database.Type,
		"schema", cfg.SchemaPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	gormDB, err := db.Connect(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	provisioner := service.NewProvisioner(gormDB, logger)
	registry := service.NewDefinitionRegistry(gormDB, cfg.Cache.TTL, cfg.Cache.Size)

	applySchema := func() error {
		specs, err := config.LoadSchema(cfg.SchemaPath)
		if err != nil {
			return err
		}
		if err := provisioner.Apply(specs); err != nil {
			return err
		}
		registry.ClearCache()
		return nil
	}

	if cfg.SchemaPath != "" {
		if err := applySchema(); err != nil {
			glog.Fatalf("Failed to apply schema: %v", err)
		}
		logger.Info("schema applied", "path", cfg.SchemaPath)
	} else {
		// No schema document: migrate engine tables only, definitions are
		// managed out of band.
		if err := service.Migrate(gormDB, nil); err != nil {
			glog.Fatalf("Failed to migrate: %v", err)
		}
	}

	audit := service.NewAuditTrail(gormDB, logger)
	values := service.NewValueStore(gormDB, registry, audit)
	grouped := service.NewGroupedStore(values)
	members := service.NewUserRoleStore(gormDB)
	permissions := service.NewPermissionService(values, members, cfg.PermissionPrefix)
	migrator := service.NewMigrator(values, grouped)

	if !audit.TableExists() {
		logger.Warn("audit table absent, attribute changes will not be audited")
	}

	router := server.Router(server.Services{
		DB:          gormDB,
		Values:      values,
		Audit:       audit,
		Users:       domains.NewUserService(values),
		Roles:       domains.NewRoleService(values, permissions, members),
		Facilities:  domains.NewFacilityService(values, grouped, migrator),
		Instructors: domains.NewInstructorService(values, grouped),
		Assessments: domains.NewAssessmentService(values),
	})

	if cfg.WatchSchema && cfg.SchemaPath != "" {
		watcher := config.NewSchemaWatcher(cfg.SchemaPath, logger, applySchema)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("schema watcher stopped", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: router,
	}

	go func() {
		logger.Info("attribute registry ready", "listen", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("attribute registry stopped")
}
