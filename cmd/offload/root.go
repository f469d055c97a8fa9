package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/offload/pkg/offload/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	maxDepth int
	rootCmd  = &cobra.Command{
		Use:   "offload",
		Short: "Move oversized data off a constrained volume",
		Long: `Offload moves oversized directories and files to an alternate volume,
replacing each original path with a symbolic link so dependent software
keeps working unmodified.

The pipeline runs in four stages, each gated on the artifact the previous
stage persisted:

  scan     find candidates above the size threshold, write the scan report
  migrate  archive and transfer candidates, write the path mapping
  clean    remove migrated sources, breaking file locks where needed
  link     install and verify replacement symlinks (requires root)

Examples:
  offload scan ~/models              # Find items >= 500MB under ~/models
  offload scan -s 1G --max-depth 3   # Larger threshold, bounded depth
  offload migrate -t /mnt/bulk       # Move candidates to /mnt/bulk
  offload clean                      # Delete migrated sources
  sudo offload link                  # Replace sources with symlinks
  sudo offload run ~/models -t /mnt/bulk   # All four stages in order
  offload config show                # Show configuration`,
		SilenceUsage:      true,
		PersistentPreRunE: initializeLogging,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/offload/config.yaml)")
	rootCmd.PersistentFlags().StringP("min-size", "s", "", "candidate size threshold (e.g., 500M, 2G)")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "override worker count (0=auto)")
	rootCmd.PersistentFlags().StringSliceP("exclude", "e", nil, "directory names to exclude (can be specified multiple times)")
	rootCmd.PersistentFlags().IntVar(&maxDepth, "max-depth", 0, "traversal depth bound for roots given on the command line (0=unbounded)")
	rootCmd.PersistentFlags().StringP("target", "t", "", "destination volume root for migrated data")
	rootCmd.PersistentFlags().String("staging", "", "staging directory for transient archives (default: <target>/.offload-staging)")
	rootCmd.PersistentFlags().String("report", "", "scan report artifact path")
	rootCmd.PersistentFlags().String("mapping", "", "path mapping artifact path")
	rootCmd.PersistentFlags().Bool("cache", false, "reuse cached directory sizes between scans")
	rootCmd.PersistentFlags().Float64("cpu-limit", config.DefaultCPULimit, "fraction of total CPU the migrator may use")
	rootCmd.PersistentFlags().Float64("memory-limit", config.DefaultMemoryLimit, "memory usage fraction above which submissions pause")
	rootCmd.PersistentFlags().Int("retries", config.DefaultRetries, "delete attempts per path")
	rootCmd.PersistentFlags().Duration("retry-interval", config.DefaultRetryInterval, "pause between delete attempts")
	rootCmd.PersistentFlags().Bool("force-unlock", true, "terminate processes holding locks on delete targets")
	rootCmd.PersistentFlags().Duration("check-timeout", config.DefaultCheckTimeout, "symlink verification deadline")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format (pretty, plain, json, jsonl, yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	// Bind flags to viper. Worker and artifact-path flags feed every stage
	// that reads the key, so an explicit -w overrides both pools.
	_ = viper.BindPFlag("scan.min_size", rootCmd.PersistentFlags().Lookup("min-size"))
	_ = viper.BindPFlag("scan.workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("migrate.workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("scan.exclude", rootCmd.PersistentFlags().Lookup("exclude"))
	_ = viper.BindPFlag("scan.report", rootCmd.PersistentFlags().Lookup("report"))
	_ = viper.BindPFlag("scan.cache", rootCmd.PersistentFlags().Lookup("cache"))
	_ = viper.BindPFlag("migrate.target", rootCmd.PersistentFlags().Lookup("target"))
	_ = viper.BindPFlag("migrate.staging", rootCmd.PersistentFlags().Lookup("staging"))
	_ = viper.BindPFlag("migrate.mapping", rootCmd.PersistentFlags().Lookup("mapping"))
	_ = viper.BindPFlag("migrate.cpu_limit", rootCmd.PersistentFlags().Lookup("cpu-limit"))
	_ = viper.BindPFlag("migrate.memory_limit", rootCmd.PersistentFlags().Lookup("memory-limit"))
	_ = viper.BindPFlag("clean.retries", rootCmd.PersistentFlags().Lookup("retries"))
	_ = viper.BindPFlag("clean.retry_interval", rootCmd.PersistentFlags().Lookup("retry-interval"))
	_ = viper.BindPFlag("clean.force_unlock", rootCmd.PersistentFlags().Lookup("force-unlock"))
	_ = viper.BindPFlag("link.check_timeout", rootCmd.PersistentFlags().Lookup("check-timeout"))
	_ = viper.BindPFlag("output.format", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Set config name and type
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		// Add config paths in order of precedence
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			viper.AddConfigPath(filepath.Join(xdgConfigHome, "offload"))
		}

		homeDir, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(homeDir, ".config", "offload"))
		}
	}

	// Set environment variable prefix and enable auto env binding
	viper.SetEnvPrefix("OFFLOAD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Set defaults from config package
	config.SetDefaults(viper.GetViper())

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
