package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jamesainslie/offload/pkg/offload/config"
	"github.com/jamesainslie/offload/pkg/offload/migrator"
	"github.com/jamesainslie/offload/pkg/offload/output"
	"github.com/jamesainslie/offload/pkg/offload/scanner"
	"github.com/jamesainslie/offload/pkg/offload/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Archive and transfer candidates to the destination volume",
	Long: `Move the candidates from the last scan report to the destination
volume and write the path mapping.

Directories travel as gzip archives through a staging area and are
re-materialized at the destination; files are copied in chunks. Every
transfer is verified before the source is recorded in the mapping, which
is the input artifact for 'offload clean' and 'offload link'.

The destination volume root comes from --target or the migrate.target
configuration key.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// runMigrate executes the migrate stage against the persisted scan report.
func runMigrate(_ *cobra.Command, _ []string) error {
	rp := reportPath()
	report, err := scanner.LoadReport(rp)
	if err != nil {
		if errors.Is(err, types.ErrNoReport) {
			return fmt.Errorf("%w (run 'offload scan' first)", err)
		}
		return err
	}
	printVerbose("Loaded scan report %s: %d candidates", rp, report.Count())

	opts, err := buildMigrateOptions(report)
	if err != nil {
		return err
	}

	formatter, err := formatterFromFlags()
	if err != nil {
		return err
	}

	ctx, cancel, interrupted := interruptContext("migration")
	defer cancel()

	m, err := migrator.New(opts)
	if err != nil {
		return err
	}

	_, res, err := m.Migrate(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if err := printResult(formatter, report, *interrupted, migrateSummary(res)); err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("migration finished with %d failed candidates", len(res.Failed))
	}
	return nil
}

// buildMigrateOptions assembles the migrate stage options from flags and
// config.
func buildMigrateOptions(report *scanner.Report) (migrator.Options, error) {
	target := viper.GetString("migrate.target")
	if target == "" {
		return migrator.Options{}, errors.New("no migration target configured (set migrate.target or pass --target)")
	}
	target, err := config.ExpandPath(target)
	if err != nil {
		return migrator.Options{}, err
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return migrator.Options{}, fmt.Errorf("failed to resolve target: %w", err)
	}

	staging := viper.GetString("migrate.staging")
	if staging != "" {
		if staging, err = config.ExpandPath(staging); err != nil {
			return migrator.Options{}, err
		}
	}

	chunkSize, err := parseSizeKey("migrate.chunk_size")
	if err != nil {
		return migrator.Options{}, err
	}
	chunkThreshold, err := parseSizeKey("migrate.chunk_threshold")
	if err != nil {
		return migrator.Options{}, err
	}

	msg, prog := stageSinks()
	return migrator.Options{
		Report:         report,
		Target:         absTarget,
		Staging:        staging,
		MappingPath:    mappingPath(),
		Workers:        viper.GetInt("migrate.workers"),
		CPULimit:       viper.GetFloat64("migrate.cpu_limit"),
		MemoryLimit:    viper.GetFloat64("migrate.memory_limit"),
		ChunkSize:      chunkSize,
		ChunkThreshold: chunkThreshold,
		ThrottleWait:   viper.GetDuration("migrate.throttle_wait"),
		OnMessage:      msg,
		OnProgress:     prog,
	}, nil
}

// migrateSummary converts a migrator result for the output formatters.
func migrateSummary(res *migrator.Result) output.StageSummary {
	return output.StageSummary{
		Stage:    "migrate",
		Done:     res.Migrated,
		Skipped:  res.Skipped,
		Failed:   res.Failed,
		Bytes:    res.Bytes,
		Duration: res.Duration,
	}
}
