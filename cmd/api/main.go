package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Project-Sylos/Archivist/internal/api"
	"github.com/Project-Sylos/Archivist/sdk"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// shutdownTimeout is how long in-flight requests get to finish
const shutdownTimeout = 30 * time.Second

func main() {
	var (
		configPath string
		port       int
	)

	rootCmd := &cobra.Command{
		Use:   "archivist-api [config-file]",
		Short: "Serve the Archivist upload API",
		Long: `archivist-api files multipart uploads into ticket folders of a content
repository and exposes repository maintenance endpoints.

The config file may be JSON or YAML. ARCHIVIST_* environment variables
override it.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				configPath = args[0]
			}
			return serve(configPath, port)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "configs/default.json", "configuration file path")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "override the configured port")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(configPath string, port int) error {
	archivist, err := sdk.New(configPath)
	if err != nil {
		return err
	}

	cfg := archivist.Config()
	if port != 0 {
		cfg.API.Port = port
	}
	logger := archivist.Logger()
	logger.Info("configuration loaded",
		zap.String("path", configPath),
		zap.String("host", cfg.API.Host),
		zap.Int("port", cfg.API.Port))

	server := api.NewServer(archivist, &cfg.API)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		// I am here to serve.
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		archivist.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	return <-errCh
}
