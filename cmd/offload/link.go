package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jamesainslie/offload/pkg/offload/linker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Replace migrated sources with symlinks to their destinations",
	Long: `Create a symbolic link at every cleaned source path pointing to its
migrated destination, so dependent software keeps working unmodified.

Sources that still exist are skipped; run 'offload clean' first. Each
link is verified to resolve before it counts as done. Creating links
requires elevated privileges, so run this stage with sudo.`,
	Args: cobra.NoArgs,
	RunE: runLink,
}

func init() {
	rootCmd.AddCommand(linkCmd)
}

// runLink executes the link stage against the persisted path mapping.
func runLink(_ *cobra.Command, _ []string) error {
	mp, err := loadMapping()
	if err != nil {
		return err
	}

	msg, prog := stageSinks()
	l, err := linker.New(linker.Options{
		Mapping:      mp,
		Elevated:     os.Geteuid() == 0,
		CheckTimeout: viper.GetDuration("link.check_timeout"),
		OnMessage:    msg,
		OnProgress:   prog,
	})
	if err != nil {
		return err
	}

	ctx, cancel, _ := interruptContext("link creation")
	defer cancel()

	res, err := l.CreateLinks(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if res != nil && !res.OK() {
		return fmt.Errorf("link creation finished with %d failed paths", len(res.Failed))
	}
	return nil
}
