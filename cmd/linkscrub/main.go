package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"linkscrub/internal/bus"
	"linkscrub/internal/channel"
	"linkscrub/internal/cleaner"
	"linkscrub/internal/config"
	"linkscrub/internal/domain"

	"github.com/spf13/cobra"
)

var (
	version    = "0.3.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "linkscrub",
		Short: "linkscrub: chat bot that strips tracking parameters from shared links",
		Long:  "linkscrub watches chat messages for YouTube and Twitter links, removes tracking parameters and redirector layers, and re-posts the cleaned versions.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.linkscrub/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(cleanCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(rulesCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(wizardCmd())
	root.AddCommand(installDaemonCmd())
	root.AddCommand(uninstallDaemonCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// setupLogger rebuilds the global logger from config: level plus an optional
// log file next to stderr.
func setupLogger(cfg *config.Config) {
	var level slog.Level
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if cfg.General.LogFile != "" {
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Warn("cannot open log file, logging to stderr", "path", cfg.General.LogFile, "err", err)
		} else {
			w = io.MultiWriter(os.Stderr, f)
		}
	}
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and rules directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Rules.Dir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "rules", cfg.Rules.Dir)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot (all enabled channels + cleaner engine)",
		Long:  "Starts every enabled channel (Telegram, Discord, Slack, WebSocket, webhook, API) and the cleaner engine. Press Ctrl+C to stop.",
		RunE:  runBot,
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(100, logger)
	events := bus.NewEventBus(logger)

	rules, err := cleaner.LoadDirectory(cfg.Rules.Dir, logger)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	logger.Info("rules loaded", "rules", len(rules.Rules()), "unwraps", len(rules.Unwraps()))

	engine := cleaner.NewEngine(cleaner.EngineConfig{
		Rules:        rules,
		Bus:          messageBus,
		Events:       events,
		Logger:       logger,
		Mode:         cfg.General.Mode,
		EchoChannels: []string{"cli", "websocket"},
	})
	go engine.Run(ctx)

	channels := enabledChannels(cfg, engine)
	if len(channels) == 0 {
		return fmt.Errorf("no channels enabled; run 'linkscrub wizard' or edit %s", cfgPath)
	}

	for _, ch := range channels {
		go func(ch domain.Channel) {
			if err := ch.Start(ctx, messageBus); err != nil {
				logger.Error("channel error", "channel", ch.Name(), "err", err)
			}
		}(ch)
		logger.Info("channel enabled", "channel", ch.Name())
	}

	logger.Info("linkscrub started. Press Ctrl+C to stop.")

	// Block until shutdown signal
	<-ctx.Done()
	logger.Info("shutting down...")

	// Graceful shutdown with timeout
	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, ch := range channels {
			ch.Stop()
		}
		messageBus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

// enabledChannels builds the channel list from config.
func enabledChannels(cfg *config.Config, engine *cleaner.Engine) []domain.Channel {
	var channels []domain.Channel

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		channels = append(channels, channel.NewTelegram(channel.TelegramConfig{
			Token:      cfg.Channels.Telegram.Token,
			AllowFrom:  cfg.Channels.Telegram.AllowFrom,
			GroupsOnly: cfg.Channels.Telegram.GroupsOnly,
			ParseMode:  cfg.Channels.Telegram.ParseMode,
			Logger:     logger,
		}))
	}

	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token != "" {
		channels = append(channels, channel.NewDiscord(channel.DiscordConfig{
			Token:   cfg.Channels.Discord.Token,
			GuildID: cfg.Channels.Discord.GuildID,
			Logger:  logger,
		}))
	}

	if cfg.Channels.Slack.Enabled && cfg.Channels.Slack.BotToken != "" {
		channels = append(channels, channel.NewSlack(channel.SlackConfig{
			BotToken: cfg.Channels.Slack.BotToken,
			AppToken: cfg.Channels.Slack.AppToken,
			Logger:   logger,
		}))
	}

	if cfg.Channels.WebSocket.Enabled {
		channels = append(channels, channel.NewWebSocketChannel(channel.WSConfig{
			Host:   cfg.Channels.WebSocket.Host,
			Port:   cfg.Channels.WebSocket.Port,
			Path:   cfg.Channels.WebSocket.Path,
			Logger: logger,
		}))
	}

	if cfg.Channels.Webhook.Enabled {
		channels = append(channels, channel.NewWebhook(channel.WebhookConfig{
			Host:   cfg.Channels.Webhook.Host,
			Port:   cfg.Channels.Webhook.Port,
			Path:   cfg.Channels.Webhook.Path,
			Secret: cfg.Channels.Webhook.Secret,
			Logger: logger,
		}))
	}

	if cfg.Channels.API.Enabled {
		channels = append(channels, channel.NewAPI(channel.APIChannelConfig{
			Host:    cfg.Channels.API.Host,
			Port:    cfg.Channels.API.Port,
			APIKey:  cfg.Channels.API.APIKey,
			Engine:  engine,
			Metrics: cfg.Metrics.Enabled,
			Logger:  logger,
		}))
	}

	return channels
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal session",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(100, logger)
	defer messageBus.Close()

	rules, err := cleaner.LoadDirectory(cfg.Rules.Dir, logger)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	engine := cleaner.NewEngine(cleaner.EngineConfig{
		Rules:        rules,
		Bus:          messageBus,
		Logger:       logger,
		EchoChannels: []string{"cli"},
	})
	go engine.Run(ctx)

	cliCh := channel.NewCLI(channel.CLIConfig{Logger: logger})
	return cliCh.Start(ctx, messageBus)
}

func cleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [text]",
		Short: "Clean a single message and print the result",
		Long:  "Cleans the given text (or stdin when no argument) and prints the rewritten message. Exits 0 whether or not anything changed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				cfg = config.Defaults()
			}

			var text string
			if len(args) > 0 {
				text = strings.Join(args, " ")
			} else {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				text = strings.TrimRight(string(data), "\n")
			}
			if text == "" {
				return fmt.Errorf("nothing to clean")
			}

			rules, err := cleaner.LoadDirectory(cfg.Rules.Dir, logger)
			if err != nil {
				return fmt.Errorf("load rules: %w", err)
			}

			engine := cleaner.NewEngine(cleaner.EngineConfig{Rules: rules, Logger: logger})
			res := engine.Process(text, nil)
			fmt.Println(res.Text)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and rule status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			rules, err := cleaner.LoadDirectory(cfg.Rules.Dir, logger)
			if err != nil {
				logger.Warn("rules", "dir", cfg.Rules.Dir, "err", err)
			} else {
				logger.Info("rules", "dir", cfg.Rules.Dir, "count", len(rules.Rules()), "unwraps", len(rules.Unwraps()))
			}

			logger.Info("mode", "mode", cfg.General.Mode)
			logger.Info("channels",
				"telegram", cfg.Channels.Telegram.Enabled,
				"discord", cfg.Channels.Discord.Enabled,
				"slack", cfg.Channels.Slack.Enabled,
				"cli", cfg.Channels.CLI.Enabled,
				"websocket", cfg.Channels.WebSocket.Enabled,
				"webhook", cfg.Channels.Webhook.Enabled,
				"api", cfg.Channels.API.Enabled,
			)
			return nil
		},
	}
}

func rulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the active cleaning rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				cfg = config.Defaults()
			}
			rules, err := cleaner.LoadDirectory(cfg.Rules.Dir, logger)
			if err != nil {
				return fmt.Errorf("load rules: %w", err)
			}

			fmt.Println("Rules:")
			for _, r := range rules.Rules() {
				keep := "strip all params"
				if len(r.Keep) > 0 {
					keep = "keep " + strings.Join(r.Keep, ", ")
				}
				fmt.Printf("  %-12s %s (%s)\n", r.Name, strings.Join(r.Hosts, ", "), keep)
			}
			fmt.Println("Redirectors:")
			for _, u := range rules.Unwraps() {
				path := u.Path
				if path == "" {
					path = "*"
				}
				fmt.Printf("  %-30s path=%s param=%s\n", strings.Join(u.Hosts, ", "), path, u.Param)
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. general.mode)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. general.mode replace)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("linkscrub v%s\n", version)
		},
	}
}
