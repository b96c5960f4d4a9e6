package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/cli"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/config"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "registrar",
		Short: "Offline-first client for civil registration declarations",
		Long: `registrar keeps birth and death declarations on the device,
queues submissions while the server is unreachable and keeps the
workqueue tabs in sync with the registration server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(shellCmd())
	rootCmd.AddCommand(serveCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func loadRuntime(cmd *cobra.Command) (*cli.Runtime, error) {
	path, err := cmd.Flags().GetString(config.FlagConfig)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	return cli.NewRuntime(cmd.Context(), cfg, os.Stderr, func() ([]byte, error) {
		return cli.GetPassphrase(os.Stderr)
	})
}

func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive registrar shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			done := make(chan error, 1)
			go func() { done <- rt.Start(ctx) }()

			cli.NewApp(rt).Run(ctx)

			cancel()
			return <-done
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the local HTTP API and run the sync workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			return cli.Serve(cmd.Context(), rt, rt.Config.HTTPAddr)
		},
	}
}
