package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"linkscrub/internal/cleaner"
	"linkscrub/internal/config"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your linkscrub installation",
		Long: `Verifies that linkscrub's configuration, rules, channel tokens, and
ports are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("linkscrub doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				failed++
				fmt.Printf("\nRun 'linkscrub init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
			} else {
				printPass("Config validation", "valid")
				passed++
			}

			if cfg == nil {
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return nil
			}

			// 3. Rules load
			rules, err := cleaner.LoadDirectory(cfg.Rules.Dir, logger)
			if err != nil {
				printFail("Rules", err.Error())
				failed++
			} else if _, statErr := os.Stat(cfg.Rules.Dir); statErr != nil {
				printWarn("Rules", fmt.Sprintf("directory missing, builtins only (%d rules)", len(rules.Rules())))
				warned++
			} else {
				printPass("Rules", fmt.Sprintf("%d rules, %d redirectors", len(rules.Rules()), len(rules.Unwraps())))
				passed++
			}

			// 4. Channel tokens
			channelCount := 0
			if cfg.Channels.Telegram.Enabled {
				channelCount++
				if cfg.Channels.Telegram.Token == "" {
					printFail("Telegram", "enabled but no token (set TELEGRAM_BOT_TOKEN)")
					failed++
				} else {
					printPass("Telegram", "token configured")
					passed++
				}
			}
			if cfg.Channels.Discord.Enabled {
				channelCount++
				if cfg.Channels.Discord.Token == "" {
					printFail("Discord", "enabled but no token (set DISCORD_BOT_TOKEN)")
					failed++
				} else {
					printPass("Discord", "token configured")
					passed++
				}
			}
			if cfg.Channels.Slack.Enabled {
				channelCount++
				if cfg.Channels.Slack.BotToken == "" || cfg.Channels.Slack.AppToken == "" {
					printFail("Slack", "enabled but missing botToken/appToken")
					failed++
				} else {
					printPass("Slack", "tokens configured")
					passed++
				}
			}
			if cfg.Channels.CLI.Enabled {
				channelCount++
			}
			if cfg.Channels.WebSocket.Enabled {
				channelCount++
				if err := checkPort(cfg.Channels.WebSocket.Port); err != nil {
					printWarn("WebSocket port", fmt.Sprintf("port %d may be in use: %v", cfg.Channels.WebSocket.Port, err))
					warned++
				} else {
					printPass("WebSocket port", fmt.Sprintf(":%d available", cfg.Channels.WebSocket.Port))
					passed++
				}
			}
			if cfg.Channels.Webhook.Enabled {
				channelCount++
				if cfg.Channels.Webhook.Secret == "" {
					printWarn("Webhook", "no HMAC secret, requests are unauthenticated")
					warned++
				}
				if err := checkPort(cfg.Channels.Webhook.Port); err != nil {
					printWarn("Webhook port", fmt.Sprintf("port %d may be in use: %v", cfg.Channels.Webhook.Port, err))
					warned++
				} else {
					printPass("Webhook port", fmt.Sprintf(":%d available", cfg.Channels.Webhook.Port))
					passed++
				}
			}
			if cfg.Channels.API.Enabled {
				channelCount++
				if err := checkPort(cfg.Channels.API.Port); err != nil {
					printWarn("API port", fmt.Sprintf("port %d may be in use: %v", cfg.Channels.API.Port, err))
					warned++
				} else {
					printPass("API port", fmt.Sprintf(":%d available", cfg.Channels.API.Port))
					passed++
				}
			}
			if channelCount == 0 {
				printFail("Channels", "no channels enabled")
				failed++
			}

			// 5. Log file writable
			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", cfg.General.LogFile)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running linkscrub.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nlinkscrub should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! linkscrub is ready to run.\n")
			}
			return nil
		},
	}
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
