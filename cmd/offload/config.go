package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/jamesainslie/offload/pkg/offload/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage offload configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/offload/config.yaml (if set)
  2. ~/.config/offload/config.yaml

Environment variables can override config file settings using the OFFLOAD_ prefix:
  OFFLOAD_SCAN_MIN_SIZE=1G
  OFFLOAD_MIGRATE_TARGET=/mnt/bulk
  OFFLOAD_CLEAN_FORCE_UNLOCK=false`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		printError("Failed to load configuration: %v", err)
		// Show defaults anyway
		cfg = &config.Config{}
		cfg.Scan.MinSize = config.DefaultMinSize
		cfg.Scan.Exclude = config.DefaultExclusions
		cfg.Migrate.CPULimit = config.DefaultCPULimit
		cfg.Migrate.MemoryLimit = config.DefaultMemoryLimit
		cfg.Clean.Retries = config.DefaultRetries
		cfg.Clean.RetryInterval = config.DefaultRetryInterval
		cfg.Clean.ForceUnlock = true
		cfg.Link.CheckTimeout = config.DefaultCheckTimeout
	}

	// Show config file being used
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Printf("Config file: %s\n\n", configFile)
	} else {
		fmt.Println("Config file: (using defaults, no file found)")
		fmt.Println()
	}

	// Display configuration
	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	if len(cfg.Scan.Roots) == 0 {
		fmt.Println("scan.roots:            (none)")
	} else {
		for _, root := range cfg.Scan.Roots {
			fmt.Printf("scan.roots:            %s (max_depth=%d)\n", root.Path, root.MaxDepth)
		}
	}
	fmt.Printf("scan.min_size:         %s\n", cfg.Scan.MinSize)
	fmt.Printf("scan.exclude:          %v\n", cfg.Scan.Exclude)
	fmt.Printf("scan.workers:          %d\n", cfg.Scan.Workers)
	fmt.Printf("scan.cache:            %t\n", cfg.Scan.Cache)
	fmt.Printf("migrate.target:        %s\n", cfg.Migrate.Target)
	fmt.Printf("migrate.staging:       %s\n", cfg.Migrate.Staging)
	fmt.Printf("migrate.workers:       %d\n", cfg.Migrate.Workers)
	fmt.Printf("migrate.cpu_limit:     %.2f\n", cfg.Migrate.CPULimit)
	fmt.Printf("migrate.memory_limit:  %.2f\n", cfg.Migrate.MemoryLimit)
	fmt.Printf("migrate.chunk_size:    %s\n", cfg.Migrate.ChunkSize)
	fmt.Printf("clean.retries:         %d\n", cfg.Clean.Retries)
	fmt.Printf("clean.retry_interval:  %s\n", cfg.Clean.RetryInterval)
	fmt.Printf("clean.force_unlock:    %t\n", cfg.Clean.ForceUnlock)
	fmt.Printf("link.check_timeout:    %s\n", cfg.Link.CheckTimeout)
	fmt.Printf("logging.level:         %s\n", cfg.Logging.Level)
	fmt.Printf("output.format:         %s\n", cfg.Output.Format)

	// Show any environment overrides
	fmt.Println("\nEnvironment Overrides:")
	fmt.Println("----------------------")
	envVars := []string{
		"OFFLOAD_SCAN_MIN_SIZE",
		"OFFLOAD_SCAN_EXCLUDE",
		"OFFLOAD_SCAN_WORKERS",
		"OFFLOAD_SCAN_CACHE",
		"OFFLOAD_MIGRATE_TARGET",
		"OFFLOAD_MIGRATE_STAGING",
		"OFFLOAD_MIGRATE_WORKERS",
		"OFFLOAD_MIGRATE_CPU_LIMIT",
		"OFFLOAD_MIGRATE_MEMORY_LIMIT",
		"OFFLOAD_CLEAN_RETRIES",
		"OFFLOAD_CLEAN_FORCE_UNLOCK",
		"OFFLOAD_LINK_CHECK_TIMEOUT",
		"OFFLOAD_LOGGING_LEVEL",
		"OFFLOAD_OUTPUT_FORMAT",
	}

	anyOverrides := false
	for _, name := range envVars {
		if val := os.Getenv(name); val != "" {
			fmt.Printf("%s=%s\n", name, val)
			anyOverrides = true
		}
	}
	if !anyOverrides {
		fmt.Println("(none)")
	}

	return nil
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(cmd *cobra.Command, args []string) error {
	// Ensure config file exists
	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	// Get config file path
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	// Determine editor
	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", configPath, editor)

	// Open editor
	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}

	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'offload config edit' to modify it.")
		return nil
	}

	// Create default config
	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	fmt.Println(configPath)

	// Show if file exists
	if _, err := os.Stat(configPath); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}

	return nil
}
