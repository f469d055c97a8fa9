package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jamesainslie/offload/pkg/offload/config"
	"github.com/jamesainslie/offload/pkg/offload/logging"
	"github.com/jamesainslie/offload/pkg/offload/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// initializeLogging is the root command's PersistentPreRunE hook. It makes
// sure the config and state directories exist and brings up the logging
// system before any command body runs.
func initializeLogging(_ *cobra.Command, _ []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	if err := config.EnsureStateDir(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := logging.Config{
		Level:      viper.GetString("logging.level"),
		Path:       cfg.Logging.Path,
		Rotation:   parseRotationConfig(cfg.Logging.Rotation),
		Components: cfg.Logging.Components,
	}
	if getVerbose() {
		// Mirror the file log on stderr while debugging.
		logCfg.ConsoleLevel = "debug"
	}

	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	return nil
}

// parseRotationConfig converts the string-typed rotation settings from the
// config file into the logging package's byte-counted form. An empty or
// unparseable max_size falls back to the rotation default.
func parseRotationConfig(rc config.RotationConfig) logging.RotationConfig {
	out := logging.RotationConfig{
		MaxSize:    logging.DefaultRotationConfig().MaxSize,
		MaxAge:     rc.MaxAge,
		MaxBackups: rc.MaxBackups,
		Daily:      rc.Daily,
	}
	if rc.MaxSize != "" {
		if size, err := types.ParseSize(rc.MaxSize); err == nil {
			out.MaxSize = size
		}
	}
	return out
}

// interruptContext returns a context cancelled on SIGINT or SIGTERM. The
// returned flag reports whether a signal arrived; it is safe to read after
// the stage using the context has returned.
func interruptContext(stage string) (context.Context, context.CancelFunc, *bool) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	interrupted := new(bool)
	go func() {
		select {
		case <-sigChan:
			printInfo("\nInterrupted, stopping %s...", stage)
			*interrupted = true
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel, interrupted
}
