package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/vecindex/internal/repository"
	"github.com/vecindex/internal/scheduler"
	"github.com/vecindex/internal/server"
	"github.com/vecindex/internal/service"
	"github.com/vecindex/internal/storage"
	"github.com/vecindex/pkg/config"
	"github.com/vecindex/pkg/telemetry"
	"github.com/vecindex/pkg/utils"
)

var (
	configPath = flag.String("c", "", "Path to configuration file")
	version    = flag.Bool("v", false, "Print version and exit")
)

// Version information (set by build flags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("vecindex-server version %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		os.Exit(0)
	}

	logger := utils.NewDefaultLogger(utils.LevelInfo, os.Stdout)
	utils.SetGlobalLogger(logger)

	logger.Info("Starting vecindex service...")
	logger.Info("Version: %s, Commit: %s, Built: %s", Version, GitCommit, BuildTime)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	logger.Info("Database: %s", cfg.Database.Type)
	logger.Info("Storage: %s", cfg.Storage.Type)
	logger.Info("Build workers: %d", cfg.Scheduler.WorkerCount)

	if err := cfg.EnsureDataDir(); err != nil {
		logger.Error("Failed to create data directory: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx)
	if err != nil {
		logger.Warn("Failed to initialize telemetry: %v", err)
	} else {
		defer shutdownTelemetry(context.Background())
	}

	db, err := repository.NewGormDB(&cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to catalog database: %v", err)
		os.Exit(1)
	}
	repos := repository.NewRepositories(db)
	if err := repos.Migrate(); err != nil {
		logger.Error("Failed to migrate catalog schema: %v", err)
		os.Exit(1)
	}
	defer repos.Close()

	store, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		logger.Error("Failed to initialize storage: %v", err)
		os.Exit(1)
	}

	manager := service.New(cfg, logger).WithRepositories(repos)

	api := server.New(manager, repos.BuildTasks, cfg.Server.Port, logger)
	processor := scheduler.NewProcessor(store, manager, cfg.Index.DataDir, logger)
	sched := scheduler.New(scheduler.FromConfig(&cfg.Scheduler, cfg.Index.DataDir),
		repos.BuildTasks, processor, logger)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return api.Start()
	})
	group.Go(func() error {
		<-ctx.Done()
		return api.Shutdown(context.Background())
	})
	group.Go(func() error {
		err := sched.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Error("Service exited with error: %v", err)
		os.Exit(1)
	}
	logger.Info("Service stopped")
}
