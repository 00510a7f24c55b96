package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fleetops/config"
	"fleetops/core/appbootstrap"
	"fleetops/core/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "fleetops",
		Short:         "Fleet tracking backend with self-migrating schema",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := utils.NewLoggerWithWriter(os.Stdout, cfg.LogLevel)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return appbootstrap.Run(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file (optional)")
	return cmd
}
