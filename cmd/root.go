// Package cmd implements the assistente CLI using cobra.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/thadeucbr/assistentev4-sub000/internal/config"
	"github.com/thadeucbr/assistentev4-sub000/internal/shared/cmdutils"
)

const version = "0.1.0"

var logo = cmdutils.Logo

var configPath string

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:           "assistente",
	Short:         logo + " assistente: WhatsApp assistant with external tools",
	Long:          logo + " assistente: a WhatsApp conversation engine that calls tools hosted by an external MCP server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default "+config.ConfigPath()+")")

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(statusCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// setupLogger builds the process logger and installs it as the slog
// default, so packages logging through slog share it.
func setupLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	logger, err := config.NewLogger(cfg.Log, w)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
