package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thadeucbr/assistentev4-sub000/internal/dependency"
	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
	"github.com/thadeucbr/assistentev4-sub000/internal/shared/llmutils"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools exposed by the tool host",
	RunE:  runTools,
}

func runTools(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := setupLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Bridge.TimeoutSeconds+5)*time.Second)
	defer cancel()

	bridge := dependency.ToolBridge(cfg, logger.With(slog.String("component", "tools")))
	specs, err := bridge.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools (%s): %w", cfg.Bridge.Command, err)
	}
	printTools(os.Stdout, specs)
	return nil
}

func printTools(w io.Writer, specs []schema.ToolSpec) {
	fmt.Fprintf(w, "%-28s %-6s %s\n", "Tool", "Dedup", "Description")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, s := range specs {
		desc, _, _ := strings.Cut(s.Description, "\n")
		fmt.Fprintf(w, "%-28s %-6s %s\n", s.Name, yesNo(s.Dedupe), llmutils.Truncate(desc, 60))
	}
	fmt.Fprintf(w, "\n%d tools\n", len(specs))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
