package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"linkscrub/internal/config"

	"github.com/spf13/cobra"
)

func wizardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Interactive setup wizard",
		Long:  `Walks you through configuring linkscrub: cleaning mode, channels, and tokens.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWizard()
		},
	}
}

func runWizard() error {
	reader := bufio.NewReader(os.Stdin)
	cfgPath := resolveConfigPath()

	fmt.Printf("linkscrub setup wizard v%s\n", version)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Defaults()
		fmt.Printf("Starting from defaults (no existing config at %s).\n\n", cfgPath)
	} else {
		fmt.Printf("Editing existing config at %s.\n\n", cfgPath)
	}

	// Step 1: cleaning mode
	fmt.Println("Step 1/3: Cleaning mode")
	fmt.Println("  1. reply   - post the cleaned version as a reply, keep the original")
	fmt.Println("  2. replace - delete the original and post the cleaned version")
	modeChoice := prompt(reader, "Choose mode [1-2]", modeDefault(cfg.General.Mode))
	if modeChoice == "2" {
		cfg.General.Mode = "replace"
	} else {
		cfg.General.Mode = "reply"
	}
	fmt.Println()

	// Step 2: channels
	fmt.Println("Step 2/3: Channels")
	cfg.Channels.Telegram.Enabled = promptYesNo(reader, "Enable Telegram?", cfg.Channels.Telegram.Enabled)
	if cfg.Channels.Telegram.Enabled {
		cfg.Channels.Telegram.Token = promptToken(reader, "Telegram bot token", cfg.Channels.Telegram.Token, "TELEGRAM_BOT_TOKEN")
		cfg.Channels.Telegram.GroupsOnly = promptYesNo(reader, "Clean group chats only?", cfg.Channels.Telegram.GroupsOnly)
	}
	cfg.Channels.Discord.Enabled = promptYesNo(reader, "Enable Discord?", cfg.Channels.Discord.Enabled)
	if cfg.Channels.Discord.Enabled {
		cfg.Channels.Discord.Token = promptToken(reader, "Discord bot token", cfg.Channels.Discord.Token, "DISCORD_BOT_TOKEN")
	}
	cfg.Channels.Slack.Enabled = promptYesNo(reader, "Enable Slack?", cfg.Channels.Slack.Enabled)
	if cfg.Channels.Slack.Enabled {
		cfg.Channels.Slack.BotToken = promptToken(reader, "Slack bot token (xoxb-...)", cfg.Channels.Slack.BotToken, "SLACK_BOT_TOKEN")
		cfg.Channels.Slack.AppToken = promptToken(reader, "Slack app token (xapp-...)", cfg.Channels.Slack.AppToken, "SLACK_APP_TOKEN")
	}
	cfg.Channels.WebSocket.Enabled = promptYesNo(reader, "Enable WebSocket server?", cfg.Channels.WebSocket.Enabled)
	cfg.Channels.Webhook.Enabled = promptYesNo(reader, "Enable webhook receiver?", cfg.Channels.Webhook.Enabled)
	if cfg.Channels.Webhook.Enabled && cfg.Channels.Webhook.Secret == "" {
		cfg.Channels.Webhook.Secret = prompt(reader, "Webhook HMAC secret (empty disables signature checks)", "")
	}
	cfg.Channels.API.Enabled = promptYesNo(reader, "Enable HTTP cleaning API?", cfg.Channels.API.Enabled)
	fmt.Println()

	// Step 3: rules
	fmt.Println("Step 3/3: Rules")
	cfg.Rules.Dir = prompt(reader, "Rules directory", cfg.Rules.Dir)
	fmt.Println()

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("configuration is not valid: %w", err)
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Printf("Saved %s\n", cfgPath)
	fmt.Printf("Run 'linkscrub doctor' to verify, then 'linkscrub run' to start.\n")
	return nil
}

func modeDefault(mode string) string {
	if mode == "replace" {
		return "2"
	}
	return "1"
}

// prompt reads a line from the user, returning def when the input is empty.
func prompt(reader *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("  %s [%s]: ", label, def)
	} else {
		fmt.Printf("  %s: ", label)
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return def
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func promptYesNo(reader *bufio.Reader, label string, def bool) bool {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	answer := prompt(reader, fmt.Sprintf("%s (%s)", label, hint), "")
	if answer == "" {
		return def
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// promptToken offers to keep an existing token or fall back to an env var
// reference so the secret never lands in the config file.
func promptToken(reader *bufio.Reader, label, current, envVar string) string {
	def := current
	if def == "" {
		def = "${" + envVar + "}"
	} else if len(def) > 8 {
		fmt.Printf("  %s is already set (%s...), press Enter to keep it.\n", label, def[:4])
	}
	got := prompt(reader, label, def)
	return got
}
