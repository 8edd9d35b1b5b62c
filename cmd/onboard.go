package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/thadeucbr/assistentev4-sub000/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and workspace",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	_, statErr := os.Stat(cfgPath)
	if err := config.Save(cfg, cfgPath); err != nil {
		return err
	}
	if statErr == nil {
		fmt.Printf("✓ Config refreshed at %s (existing values kept)\n", cfgPath)
	} else {
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	workspace := cfg.WorkspacePath()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	fmt.Printf("✓ Workspace at %s\n", workspace)

	if err := createWorkspaceTemplates(workspace); err != nil {
		return err
	}

	fmt.Printf("\n%s assistente is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Set providers.primary (model, apiKey) in %s\n", cfgPath)
	fmt.Printf("  2. Point bridge.command at your tool host (now: %s)\n", cfg.Bridge.Command)
	fmt.Printf("  3. Chat: assistente agent -m \"Hello!\"\n")
	return nil
}

var workspaceTemplates = map[string]string{
	"PERSONA.md": `# Persona

You are a friendly WhatsApp assistant. Keep answers short and clear.

## Guidelines

- Reply in the user's language
- Use the available tools when they help
- Use send_message to deliver your final answer
`,
	"USER.md": `# User

Information about the user goes here.

## Preferences

- Communication style: (casual/formal)
- Timezone: (your timezone)
- Language: (your preferred language)
`,
}

func createWorkspaceTemplates(workspace string) error {
	for filename, content := range workspaceTemplates {
		p := filepath.Join(workspace, filename)
		if _, err := os.Stat(p); err == nil {
			continue
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return fmt.Errorf("create %s: %w", filename, err)
		}
		fmt.Printf("  Created %s\n", filename)
	}
	return nil
}
