package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"retodo/internal/client"
	"retodo/internal/config"
	"retodo/internal/controller"
	"retodo/internal/logging"
	"retodo/internal/todo"
	"retodo/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.ResolveConfigPath(), "path to config.toml")
	serverURL := flag.String("server", "", "backend URL (overrides server_url)")
	flag.Parse()

	cfg, err := config.LoadOrCreate(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}

	logFile, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := logging.New(logFile, cfg.LogLevel, "todo")

	api, err := client.New(cfg.ServerURL, time.Duration(cfg.RequestTimeout))
	if err != nil {
		return err
	}

	opts, err := controllerOptions(cfg)
	if err != nil {
		return err
	}
	opts.Logger = logger
	ctrl := controller.New(api, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting", "server", cfg.ServerURL, "config", *configPath)
	if err := ui.Run(ctx, ctrl, cfg); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

func controllerOptions(cfg config.Config) (controller.Options, error) {
	status, err := todo.ParseStatusFilter(cfg.DefaultFilter)
	if err != nil {
		return controller.Options{}, err
	}
	priority, err := todo.ParsePriorityFilter(cfg.DefaultPriorityFilter)
	if err != nil {
		return controller.Options{}, err
	}
	view, err := todo.ParseViewMode(cfg.DefaultView)
	if err != nil {
		return controller.Options{}, err
	}
	return controller.Options{Status: status, Priority: priority, View: view}, nil
}
