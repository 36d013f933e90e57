package main

import (
	"context"
	"drivescore/internal/archive"
	"drivescore/internal/configuration"
	"drivescore/internal/journal"
	"drivescore/internal/score"
	"drivescore/internal/score/verdict"
	"drivescore/internal/server"
	"drivescore/internal/session"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scoring API and page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "/etc/drivescore/config.yaml", "configuration file")

	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	config, err := configuration.LoadConfig(configPath)
	if err != nil {
		return exitError(1, "Unable to load configuration: %v", err)
	}
	prepareLogger(config.Logger.Level)

	profile, err := config.Scoring.BuildProfile()
	if err != nil {
		return exitError(1, "Unable to build score profile: %v", err)
	}

	var verdicts *verdict.Rules
	if config.Scoring.Verdicts != "" {
		verdicts, err = verdict.LoadFromFile(config.Scoring.Verdicts)
		if err != nil {
			return exitError(1, "Unable to load verdict rules: %v", err)
		}
		slog.Info("Verdict rules loaded", "count", verdicts.Len())
	}

	var events journal.Journal = journal.Nop{}
	if config.Journal.File != "" {
		events = journal.NewFileJournal(config.Journal.File, config.Journal.Size, config.Journal.Amount)
	}
	defer events.Close()

	var runs server.RunArchive
	if config.Archive.Path != "" {
		store, err := archive.Open(config.Archive.Path)
		if err != nil {
			return exitError(1, "Unable to open archive: %v", err)
		}
		defer store.Close()
		runs = store
	}

	sessions := session.NewRepository(
		func(id string) (*score.Aggregator, error) {
			return score.NewAggregator(profile, score.WithObserver(events.Observer(id)))
		},
		config.Scoring.Weights,
		verdicts,
		config.Sessions.History,
		config.Sessions.TTL,
	)
	go sessions.Serve()
	defer sessions.Stop()

	appCtx, appCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer appCancel()

	srv := server.NewServer(
		config.Server.Address,
		config.Server.Static,
		config.Scoring.Profile,
		sessions,
		runs,
	)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			appCancel()
		}
	}()
	slog.Info("Server listening " + config.Server.Address)
	<-appCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second*10)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown", "error", err)
	}
	slog.Info("Server stopped")

	return nil
}
