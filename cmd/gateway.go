package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thadeucbr/assistentev4-sub000/internal/dependency"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Serve WhatsApp through the bridge",
	RunE:  runGateway,
}

func runGateway(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := setupLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	c, err := dependency.New(cfg, logger, dependency.Options{})
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Printf("%s Starting assistente gateway...\n", logo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	channelMgr := c.Channels()
	if enabled := channelMgr.EnabledChannels(); len(enabled) > 0 {
		fmt.Printf("✓ Channels enabled: %s\n", strings.Join(enabled, ", "))
	} else {
		fmt.Println("Warning: no channels enabled")
	}

	g.Go(func() error { return c.AgentLoop().Run(gctx) })
	g.Go(func() error { return channelMgr.StartAll(gctx) })
	if cfg.Health.Enabled {
		g.Go(func() error { return c.Monitor().Start(gctx) })
	}

	fmt.Printf("%s Gateway running. Press Ctrl+C to stop.\n", logo)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "gateway error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
