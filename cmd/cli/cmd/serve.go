package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vecindex/internal/repository"
	"github.com/vecindex/internal/scheduler"
	"github.com/vecindex/internal/server"
	"github.com/vecindex/internal/service"
	"github.com/vecindex/internal/storage"
	"github.com/vecindex/pkg/config"
)

var (
	// Serve command flags
	serveConfigPath string
	servePort       int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the index service: HTTP API and build scheduler",
	Long: `Start the vecindex service daemon.

The daemon serves the JSON HTTP API over the index registry and, when a
catalog database is configured, polls the build-task queue and runs
streaming builds against the configured object storage.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	binName := BinName()
	serveCmd.Example = `  # Serve with defaults (sqlite catalog, local storage, port 8080)
  ` + binName + ` serve

  # Serve with a config file
  ` + binName + ` serve -c ./configs/config.yaml -p 9090`

	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to configuration file")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := GetLogger()

	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}

	manager := service.New(cfg, log)

	var repos *repository.Repositories
	db, err := repository.NewGormDB(&cfg.Database)
	if err != nil {
		log.Warn("catalog database unavailable, continuing without it: %v", err)
	} else {
		repos = repository.NewRepositories(db)
		if err := repos.Migrate(); err != nil {
			return err
		}
		defer repos.Close()
		manager.WithRepositories(repos)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	var api *server.Server
	if repos != nil {
		api = server.New(manager, repos.BuildTasks, cfg.Server.Port, log)
	} else {
		api = server.New(manager, nil, cfg.Server.Port, log)
	}

	group.Go(func() error {
		return api.Start()
	})
	group.Go(func() error {
		<-ctx.Done()
		return api.Shutdown(context.Background())
	})

	if repos != nil {
		store, err := storage.NewStorage(&cfg.Storage)
		if err != nil {
			return err
		}
		processor := scheduler.NewProcessor(store, manager, cfg.Index.DataDir, log)
		sched := scheduler.New(scheduler.FromConfig(&cfg.Scheduler, cfg.Index.DataDir),
			repos.BuildTasks, processor, log)
		group.Go(func() error {
			err := sched.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	return group.Wait()
}
