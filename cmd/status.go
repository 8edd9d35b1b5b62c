package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thadeucbr/assistentev4-sub000/internal/config"
	"github.com/thadeucbr/assistentev4-sub000/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show assistente status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}

	fmt.Printf("%s assistente Status\n\n", logo)
	fmt.Printf("Config:     %s %s\n", cfgPath, mark(cfgPath))

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	ws := cfg.WorkspacePath()
	fmt.Printf("Workspace:  %s %s\n", ws, mark(ws))
	db := cfg.MemoryDBPath()
	fmt.Printf("Memory DB:  %s %s\n", db, mark(db))
	if _, err := os.Stat(ws); err == nil {
		if sessions, err := session.NewManager(ws); err == nil {
			fmt.Printf("Sessions:   %d\n", len(sessions.ListSessions()))
		}
	}
	fmt.Println()

	fmt.Println("Providers:")
	printRoute("primary", &cfg.Providers.Primary)
	printRoute("secondary", cfg.Providers.Secondary)

	fmt.Println("\nTool host:")
	fmt.Printf("  %-12s %s %v\n", "command", cfg.Bridge.Command, cfg.Bridge.Args)
	fmt.Printf("  %-12s %v\n", "deliver", cfg.Bridge.DeliverTools)
	fmt.Printf("  %-12s %v\n", "loop guard", cfg.LoopGuard.Tools)

	wa := cfg.Channels.WhatsApp
	fmt.Println("\nChannels:")
	fmt.Printf("  %-12s %s %s\n", "whatsapp", yesNo(wa.Enabled), wa.BridgeURL)
	return nil
}

func printRoute(label string, p *config.ProviderConfig) {
	if !p.Configured() {
		fmt.Printf("  %-12s (not set)\n", label)
		return
	}
	params, err := config.ProviderParams(*p)
	if err != nil {
		fmt.Printf("  %-12s ✗ %v\n", label, err)
		return
	}
	fmt.Printf("  %-12s ✓ %s via %s (%s)\n", label, params.DefaultModel, params.ProviderName, params.APIBase)
}

func mark(path string) string {
	if _, err := os.Stat(path); err == nil {
		return "✓"
	}
	return "✗"
}
