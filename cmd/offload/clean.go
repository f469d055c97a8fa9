package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jamesainslie/offload/pkg/offload/cleaner"
	"github.com/jamesainslie/offload/pkg/offload/mapping"
	"github.com/jamesainslie/offload/pkg/offload/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove migrated sources from the constrained volume",
	Long: `Delete every source path recorded in the path mapping.

A source is only removed after its destination copy is confirmed to
exist. Locked paths are retried; with force-unlock enabled (the default)
the processes holding them are terminated first. Paths that survive all
attempts are listed and the command exits non-zero.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

// runClean executes the clean stage against the persisted path mapping.
func runClean(_ *cobra.Command, _ []string) error {
	mp, err := loadMapping()
	if err != nil {
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

	ctx, cancel, _ := interruptContext("clean")
	defer cancel()

	res, err := c.Clean(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("clean finished with %d failed paths", len(res.Failed))
	}
	return nil
}

// loadMapping reads the path mapping artifact the clean and link stages
// consume.
func loadMapping() (*mapping.Mapping, error) {
	mpPath := mappingPath()
	mp, err := mapping.Load(mpPath)
	if err != nil {
		if errors.Is(err, types.ErrNoMapping) {
			return nil, fmt.Errorf("%w (run 'offload migrate' first)", err)
		}
		return nil, err
	}
	printVerbose("Loaded path mapping %s: %d entries", mpPath, mp.Len())
	return mp, nil
}
