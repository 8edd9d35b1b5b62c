package channels

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/thadeucbr/assistentev4-sub000/internal/bus"
	"github.com/thadeucbr/assistentev4-sub000/internal/shared/cmdutils"
)

// CLIChatID is the chat id of the terminal session.
const CLIChatID = "direct"

var cliExitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

// CLIChannel wires a terminal into the channel manager: input lines reach
// the agent via the bus and replies (including send_message deliveries)
// are printed to out.
type CLIChannel struct {
	Base
	in  io.Reader
	out io.Writer

	mu      sync.Mutex // serializes writes to out
	replied chan struct{}
}

// NewCLIChannel creates a CLIChannel reading from in and printing to out.
func NewCLIChannel(b *bus.MessageBus, in io.Reader, out io.Writer) *CLIChannel {
	return &CLIChannel{
		Base:    NewBase(bus.ChannelCLI, b, nil),
		in:      in,
		out:     out,
		replied: make(chan struct{}, 1),
	}
}

func (c *CLIChannel) Name() string { return string(bus.ChannelCLI) }

// Start runs the REPL: reads lines, dispatches them to the agent via the
// bus, and prints the reply before prompting again.
// Blocks until ctx is cancelled or input is closed.
func (c *CLIChannel) Start(ctx context.Context) error {
	c.printf("Interactive mode. Type 'exit' or press Ctrl+C to quit.\n\n")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		c.printf("You: ")

		var line string
		select {
		case l, ok := <-lines:
			if !ok {
				c.printf("\nGoodbye!\n")
				return nil
			}
			line = strings.TrimSpace(l)
		case <-ctx.Done():
			return ctx.Err()
		}

		if line == "" {
			continue
		}
		if cliExitCommands[strings.ToLower(line)] {
			c.printf("Goodbye!\n")
			return nil
		}

		c.HandleMessage(bus.SenderIdCLI, CLIChatID, line, nil, nil)
		c.waitForReply(ctx)
	}
}

// waitForReply blocks until Send has printed at least one reply.
func (c *CLIChannel) waitForReply(ctx context.Context) {
	select {
	case <-c.replied:
	case <-ctx.Done():
	}
}

// Send prints an outbound reply and wakes the prompt.
func (c *CLIChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	cmdutils.PrintResponse(c.out, msg.Content())
	c.mu.Unlock()

	select {
	case c.replied <- struct{}{}:
	default:
	}
	return nil
}

func (c *CLIChannel) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
