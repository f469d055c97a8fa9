package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jamesainslie/offload/pkg/offload/scanner"
	"github.com/jamesainslie/offload/pkg/offload/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path...]",
	Short: "Find migration candidates above the size threshold",
	Long: `Scan directories for oversized items and write the scan report.

Paths on the command line override the configured scan roots. The report
is the input artifact for 'offload migrate'; scanning again replaces it.

Machine-readable output works best with --quiet:
  offload scan -q -o json ~/models`,
	Args: cobra.ArbitraryArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

// runScan executes the scan stage and persists the report.
func runScan(_ *cobra.Command, args []string) error {
	opts, closeCache, err := buildScanOptions(args)
	if err != nil {
		return err
	}
	defer closeCache()

	formatter, err := formatterFromFlags()
	if err != nil {
		return err
	}

	ctx, cancel, interrupted := interruptContext("scan")
	defer cancel()

	report, err := performScan(ctx, opts)
	if err != nil {
		return err
	}

	return printResult(formatter, report, *interrupted)
}

// buildScanOptions assembles the scan stage options from flags and config.
// The returned closer releases the size cache when one is open.
func buildScanOptions(args []string) (scanner.Options, func(), error) {
	noop := func() {}

	roots, err := buildRoots(args)
	if err != nil {
		return scanner.Options{}, noop, err
	}

	minSize, err := minSizeFromFlags()
	if err != nil {
		return scanner.Options{}, noop, err
	}

	c, err := openScanCache()
	if err != nil {
		return scanner.Options{}, noop, err
	}
	closer := noop
	if c != nil {
		closer = func() { _ = c.Close() }
	}

	msg, prog := stageSinks()
	return scanner.Options{
		Roots:      roots,
		MinSize:    minSize,
		Exclude:    viper.GetStringSlice("scan.exclude"),
		Workers:    viper.GetInt("scan.workers"),
		Cache:      c,
		OnMessage:  msg,
		OnProgress: prog,
	}, closer, nil
}

// performScan runs the scanner and saves the report. A cancelled scan still
// persists whatever was collected, so a later migrate can move it.
func performScan(ctx context.Context, opts scanner.Options) (*scanner.Report, error) {
	if len(opts.Roots) == 1 {
		printInfo("Scanning %s for items >= %s...", opts.Roots[0].Path, types.FormatSize(opts.MinSize))
	} else {
		printInfo("Scanning %d roots for items >= %s...", len(opts.Roots), types.FormatSize(opts.MinSize))
	}

	s, err := scanner.New(opts)
	if err != nil {
		return nil, err
	}

	report, err := s.Scan(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	path := reportPath()
	if err := report.Save(path); err != nil {
		return nil, err
	}
	printVerbose("Scan report written to %s", path)

	return report, nil
}
