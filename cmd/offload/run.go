package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jamesainslie/offload/pkg/offload/cleaner"
	"github.com/jamesainslie/offload/pkg/offload/linker"
	"github.com/jamesainslie/offload/pkg/offload/migrator"
	"github.com/jamesainslie/offload/pkg/offload/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run [path...]",
	Short: "Run the full pipeline: scan, migrate, clean, link",
	Long: `Run all four stages in order, each gated on the previous stage's
artifact: scan the roots, migrate the candidates, delete the migrated
sources, and replace them with symlinks.

An interrupt stops the pipeline at the next stage boundary; whatever was
already migrated is recorded, so a later run resumes from the artifacts.
The link stage creates symlinks, so the whole pipeline requires elevated
privileges up front.`,
	Args: cobra.ArbitraryArgs,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runPipeline executes scan, migrate, clean, and link in order.
func runPipeline(_ *cobra.Command, args []string) error {
	// Check the link stage's privilege requirement before moving any data,
	// so a run never strands sources deleted but not yet linked.
	if os.Geteuid() != 0 {
		return errors.New("run requires elevated privileges (the link stage creates symlinks), re-run with sudo")
	}
	if viper.GetString("migrate.target") == "" {
		return errors.New("no migration target configured (set migrate.target or pass --target)")
	}

	scanOpts, closeCache, err := buildScanOptions(args)
	if err != nil {
		return err
	}
	defer closeCache()

	formatter, err := formatterFromFlags()
	if err != nil {
		return err
	}

	ctx, cancel, interrupted := interruptContext("pipeline")
	defer cancel()

	report, err := performScan(ctx, scanOpts)
	if err != nil {
		return err
	}
	if *interrupted || report.Count() == 0 {
		return printResult(formatter, report, *interrupted)
	}

	var stages []output.StageSummary

	migOpts, err := buildMigrateOptions(report)
	if err != nil {
		return err
	}
	m, err := migrator.New(migOpts)
	if err != nil {
		return err
	}
	mp, migRes, err := m.Migrate(ctx)
	if migRes != nil {
		stages = append(stages, migrateSummary(migRes))
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return printResult(formatter, report, true, stages...)
		}
		return err
	}

	msg, prog := stageSinks()
	c, err := cleaner.New(cleaner.Options{
		Mapping:       mp,
		Retries:       viper.GetInt("clean.retries"),
		RetryInterval: viper.GetDuration("clean.retry_interval"),
		ForceUnlock:   viper.GetBool("clean.force_unlock"),
		OnMessage:     msg,
		OnProgress:    prog,
	})
	if err != nil {
		return err
	}
	cleanRes, err := c.Clean(ctx)
	stages = append(stages, cleanSummary(cleanRes))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return printResult(formatter, report, true, stages...)
		}
		return err
	}

	l, err := linker.New(linker.Options{
		Mapping:      mp,
		Elevated:     true,
		CheckTimeout: viper.GetDuration("link.check_timeout"),
		OnMessage:    msg,
		OnProgress:   prog,
	})
	if err != nil {
		return err
	}
	linkRes, err := l.CreateLinks(ctx)
	if linkRes != nil {
		stages = append(stages, linkSummary(linkRes))
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return printResult(formatter, report, true, stages...)
		}
		return err
	}

	if err := printResult(formatter, report, *interrupted, stages...); err != nil {
		return err
	}

	failures := len(migRes.Failed) + len(cleanRes.Failed) + len(linkRes.Failed)
	if failures > 0 {
		return fmt.Errorf("pipeline finished with %d failed paths", failures)
	}
	return nil
}

// cleanSummary converts a cleaner result for the output formatters.
func cleanSummary(res *cleaner.Result) output.StageSummary {
	return output.StageSummary{
		Stage:    "clean",
		Done:     res.Cleaned,
		Skipped:  res.Skipped,
		Failed:   res.Failed,
		Duration: res.Duration,
	}
}

// linkSummary converts a linker result for the output formatters.
func linkSummary(res *linker.Result) output.StageSummary {
	return output.StageSummary{
		Stage:    "link",
		Done:     res.Linked,
		Skipped:  res.Skipped,
		Failed:   res.Failed,
		Duration: res.Duration,
	}
}
