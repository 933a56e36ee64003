package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "hospops",
		Short:         "Hospital reception and administration client",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $HOSPOPS_CONFIG_PATH or configs/config.yaml)")

	root.AddCommand(
		listCmd(&configPath),
		searchCmd(&configPath),
		getCmd(&configPath),
		statusCmd(&configPath),
		cancelCmd(&configPath),
		subresourceCmd(&configPath),
		auditCmd(&configPath),
		mockServerCmd(&configPath),
		serveCmd(&configPath),
	)
	return root
}
