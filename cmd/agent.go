package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thadeucbr/assistentev4-sub000/internal/bus"
	"github.com/thadeucbr/assistentev4-sub000/internal/channels"
	"github.com/thadeucbr/assistentev4-sub000/internal/config"
	"github.com/thadeucbr/assistentev4-sub000/internal/dependency"
	"github.com/thadeucbr/assistentev4-sub000/internal/shared/cmdutils"
)

const oneShotTimeout = 5 * time.Minute

var (
	agentMessage string
	agentChat    string
	agentLogs    bool
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Chat with the assistant from the terminal",
	RunE:  runAgent,
}

func init() {
	agentCmd.Flags().StringVarP(&agentMessage, "message", "m", "", "Send a single message and exit")
	agentCmd.Flags().StringVarP(&agentChat, "chat", "s", channels.CLIChatID, "Chat id of the terminal session")
	agentCmd.Flags().BoolVar(&agentLogs, "logs", false, "Show runtime logs on stderr")
}

func runAgent(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var logOut io.Writer = io.Discard
	if agentLogs {
		logOut = os.Stderr
	}
	logger, err := setupLogger(cfg, logOut)
	if err != nil {
		return err
	}

	c, err := dependency.New(cfg, logger, dependency.Options{DirectDelivery: true})
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if agentMessage != "" {
		return runSingleMessage(ctx, c)
	}
	return runInteractive(ctx, stop, c)
}

// runSingleMessage runs one turn and prints what the assistant sent.
func runSingleMessage(ctx context.Context, c *dependency.Container) error {
	ctx, cancel := context.WithTimeout(ctx, oneShotTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "  ↳ thinking...\n")
	reply, err := c.AgentLoop().ProcessDirect(ctx, agentMessage, agentChat)

	// send_message deliveries were published during the turn.
	drainOutbound(c.MessageBus(), os.Stdout)
	if err != nil {
		return err
	}
	cmdutils.PrintResponse(os.Stdout, reply)
	return nil
}

func drainOutbound(b *bus.MessageBus, w io.Writer) {
	for {
		select {
		case msg := <-b.OutboundChan():
			cmdutils.PrintResponse(w, msg.Content())
		default:
			return
		}
	}
}

// runInteractive runs the agent loop behind the CLI channel until the user
// exits or a signal arrives.
func runInteractive(ctx context.Context, stop context.CancelFunc, c *dependency.Container) error {
	b := c.MessageBus()
	cli := channels.NewCLIChannel(b, os.Stdin, os.Stdout)
	mgr := channels.NewManager(config.ChannelsConfig{}, b, cli)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.AgentLoop().Run(gctx) })
	g.Go(func() error {
		mgr.DispatchOutbound(gctx)
		return nil
	})
	g.Go(func() error {
		defer stop()
		return cli.Start(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
