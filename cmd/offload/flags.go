package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/offload/pkg/offload/cache"
	"github.com/jamesainslie/offload/pkg/offload/config"
	"github.com/jamesainslie/offload/pkg/offload/output"
	"github.com/jamesainslie/offload/pkg/offload/scanner"
	"github.com/jamesainslie/offload/pkg/offload/types"
	"github.com/spf13/viper"
)

// buildRoots resolves the scan roots. Paths on the command line win;
// otherwise the configured scan.roots apply. Each path is expanded, made
// absolute, and must be an existing directory.
func buildRoots(args []string) ([]config.Root, error) {
	var roots []config.Root
	if len(args) > 0 {
		for _, arg := range args {
			roots = append(roots, config.Root{Path: arg, MaxDepth: maxDepth})
		}
	} else if err := viper.UnmarshalKey("scan.roots", &roots); err != nil {
		return nil, fmt.Errorf("invalid scan.roots configuration: %w", err)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("no scan roots: pass a directory or configure scan.roots")
	}

	for i := range roots {
		expanded, err := config.ExpandPath(roots[i].Path)
		if err != nil {
			return nil, fmt.Errorf("failed to expand path: %w", err)
		}

		absPath, err := filepath.Abs(expanded)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path: %w", err)
		}

		info, err := os.Stat(absPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("path does not exist: %s", absPath)
			}
			return nil, fmt.Errorf("cannot access path: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("path is not a directory: %s", absPath)
		}
		roots[i].Path = absPath
	}

	return roots, nil
}

// minSizeFromFlags parses the candidate threshold.
func minSizeFromFlags() (int64, error) {
	minSizeStr := viper.GetString("scan.min_size")
	if minSizeStr == "" {
		minSizeStr = config.DefaultMinSize
	}

	minSize, err := types.ParseSize(minSizeStr)
	if err != nil {
		return 0, fmt.Errorf("invalid minimum size %q: %w", minSizeStr, err)
	}
	return minSize, nil
}

// parseSizeKey parses a byte-size configuration value such as "1MB".
// An empty value returns zero so the stage default applies.
func parseSizeKey(key string) (int64, error) {
	s := viper.GetString(key)
	if s == "" {
		return 0, nil
	}

	size, err := types.ParseSize(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return size, nil
}

// reportPath returns the scan report artifact path.
func reportPath() string {
	if p := viper.GetString("scan.report"); p != "" {
		return p
	}
	return config.DefaultReportPath()
}

// mappingPath returns the path mapping artifact path.
func mappingPath() string {
	if p := viper.GetString("migrate.mapping"); p != "" {
		return p
	}
	return config.DefaultMappingPath()
}

// openScanCache opens the size cache when --cache is enabled. The caller
// closes the returned cache after the scan; a nil cache means caching is
// off.
func openScanCache() (*cache.Cache, error) {
	if !viper.GetBool("scan.cache") {
		return nil, nil
	}
	if err := config.EnsureCacheDir(); err != nil {
		return nil, err
	}

	c, err := cache.Open(sizeCachePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open size cache: %w", err)
	}
	return c, nil
}

// stageSinks returns the message and progress callbacks wired to the
// terminal. Stage messages narrate the run; percentage ticks only show in
// verbose mode.
func stageSinks() (types.MessageFunc, types.ProgressFunc) {
	msg := types.MessageFunc(func(m string) { printInfo("%s", m) })
	prog := types.ProgressFunc(func(pct int) { printVerbose("progress: %d%%", pct) })
	return msg, prog
}

// formatterFromFlags resolves the output formatter from the output.format
// key before any stage runs, so a bad format fails fast.
func formatterFromFlags() (output.Formatter, error) {
	name := viper.GetString("output.format")
	if name == "" {
		name = "pretty"
	}
	return output.Get(name)
}

// printResult renders the scan report and any stage summaries with the
// selected formatter.
func printResult(formatter output.Formatter, report *scanner.Report, interrupted bool, stages ...output.StageSummary) error {
	result := output.FromReport(report)
	result.Interrupted = interrupted
	for _, s := range stages {
		result.AddStage(s)
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, result); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(buf.String())

	return nil
}
