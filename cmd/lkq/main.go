package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	clientcmd "github.com/nickweedon/leasedkeyq/internal/cmd/client"
	serverrun "github.com/nickweedon/leasedkeyq/internal/cmd/server"
	cfgpkg "github.com/nickweedon/leasedkeyq/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lkq",
		Short: "leasedkeyq runtime CLI",
		Long:  "leasedkeyq is a keyed, FIFO, lease-based in-memory queue server. This CLI manages the server and basic operations.",
	}

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start leasedkeyq server (HTTP)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			httpAddr, _ := cmd.Flags().GetString("http")
			configPath, _ := cmd.Flags().GetString("config")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			if logLevel != "" {
				_ = os.Setenv("LKQ_LOG_LEVEL", logLevel)
			}
			if logFormat != "" {
				_ = os.Setenv("LKQ_LOG_FORMAT", logFormat)
			}

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfgpkg.FromEnv(&cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := serverrun.Run(ctx, serverrun.Options{
				HTTPAddr: httpAddr,
				Config:   cfg,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverStartCmd.Flags().String("http", ":8080", "HTTP listen address")
	serverStartCmd.Flags().String("config", os.Getenv("LKQ_CONFIG"), "Path to JSON config file")
	serverStartCmd.Flags().String("log-level", os.Getenv("LKQ_LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", os.Getenv("LKQ_LOG_FORMAT"), "Log format: text|json (default text)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	// queue commands
	rootCmd.AddCommand(clientcmd.NewQueueCommand(apiURL))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("LKQ_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
