package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arjunbot/arjun/pkg/bus"
	"github.com/arjunbot/arjun/pkg/channels"
	"github.com/arjunbot/arjun/pkg/checkin"
	"github.com/arjunbot/arjun/pkg/commands"
	"github.com/arjunbot/arjun/pkg/config"
	"github.com/arjunbot/arjun/pkg/logger"
	"github.com/arjunbot/arjun/pkg/memory"
	"github.com/arjunbot/arjun/pkg/profile"
	"github.com/arjunbot/arjun/pkg/providers"
	"github.com/arjunbot/arjun/pkg/schedule"
	"github.com/arjunbot/arjun/pkg/store"
	"github.com/arjunbot/arjun/pkg/timetrack"
)

func executeCLI() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "arjun",
		Short: "Personal productivity companion with scheduled check-ins and long-term memory",
		Long: strings.TrimSpace(`arjun is a chat companion that plans mornings with you, reviews your
evenings, runs weekly retrospectives, and occasionally pings to ask what
you're working on. It remembers what matters across conversations.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newRunCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newRunCommand() *cobra.Command {
	var (
		configPath string
		debug      bool
		console    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bot: channels, scheduler, and conversation loop",
		Example: strings.Join([]string{
			"  arjun run",
			"  arjun run --console",
			"  arjun run --config ./arjun.json --debug",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				logger.SetLevel(logger.DEBUG)
			}
			return runBot(configPath, console)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to config file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().BoolVar(&console, "console", false, "Enable the local console channel")

	return cmd
}

func newStatusCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration readiness and tracked users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to config file")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "arjun.json"
	}
	return filepath.Join(home, ".arjun", "config.json")
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "", "file":
		return store.NewFileStore(cfg.DataDir())
	case "sqlite":
		return store.NewSQLiteStore(filepath.Join(cfg.DataDir(), "arjun.db"))
	default:
		return nil, fmt.Errorf("unknown store backend %q (use file or sqlite)", cfg.Store.Backend)
	}
}

func runBot(configPath string, console bool) error {
	if created, err := config.EnsureConfigFile(configPath); err != nil {
		logger.WarnCF("main", "Failed to write default config", map[string]any{
			"path":  configPath,
			"error": err.Error(),
		})
	} else if created {
		logger.InfoCF("main", "Wrote default config", map[string]any{"path": configPath})
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if strings.TrimSpace(cfg.GetAPIKey()) == "" {
		return fmt.Errorf("provider.api_key is required in %s or ARJUN_PROVIDER_API_KEY", configPath)
	}

	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}

	docs, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer docs.Close()

	profiles := profile.NewManager(docs, profile.Defaults{
		MorningCheckHour:         cfg.Defaults.MorningCheckHour,
		EveningReviewHour:        cfg.Defaults.EveningReviewHour,
		WeeklyReviewDay:          cfg.Defaults.WeeklyReviewDay,
		WeeklyReviewHour:         cfg.Defaults.WeeklyReviewHour,
		ActivityCheckProbability: cfg.Defaults.ActivityCheckProbability,
		Timezone:                 cfg.Defaults.Timezone,
	})
	memories := memory.NewStore(docs)

	msgBus := bus.NewMessageBus()
	defer msgBus.Close()

	channelManager, err := channels.NewManager(cfg, msgBus, console)
	if err != nil {
		return fmt.Errorf("create channel manager: %w", err)
	}

	orchestrator := checkin.NewOrchestrator(profiles, memories, provider, channelManager, msgBus)

	scheduler := schedule.NewScheduler()
	scheduleManager := schedule.NewManager(scheduler, profiles,
		func(ctx context.Context, userID string, kind schedule.TriggerKind) {
			orchestrator.HandleTrigger(ctx, userID, kind)
		})

	dispatcher := commands.NewDispatcher(profiles, scheduleManager, orchestrator, timetrack.NewVerifier())
	channelManager.SetCommandDispatcher(dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	if err := scheduleManager.ScheduleAllUsers(ctx); err != nil {
		logger.ErrorCF("main", "Failed to schedule users at startup", map[string]any{
			"error": err.Error(),
		})
	}

	if err := channelManager.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	defer channelManager.StopAll(context.Background())
	logger.InfoCF("main", "Channels ready", map[string]any{
		"status": channelManager.GetStatus(),
	})

	go orchestrator.Run(ctx)

	fmt.Println("arjun is running. Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nshutting down...")
	cancel()
	return nil
}

func showStatus(configPath string) error {
	fmt.Printf("%s %s\n\n", appName, formatVersion())

	if _, err := os.Stat(configPath); err != nil {
		fmt.Printf("Config: missing (%s)\n", configPath)
		fmt.Println("Create one and set provider.api_key plus channels.discord.token")
		return nil
	}
	fmt.Printf("Config: %s\n", configPath)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Printf("Provider key: %s\n", readiness(cfg.GetAPIKey() != ""))
	fmt.Printf("Discord token: %s\n", readiness(cfg.Channels.Discord.Token != ""))
	fmt.Printf("Store backend: %s\n", cfg.Store.Backend)
	fmt.Printf("Data dir: %s\n", cfg.DataDir())

	docs, err := openStore(cfg)
	if err != nil {
		fmt.Printf("Tracked users: unavailable (%v)\n", err)
		return nil
	}
	defer docs.Close()

	users, err := docs.ListUsers(context.Background())
	if err != nil {
		fmt.Printf("Tracked users: unavailable (%v)\n", err)
		return nil
	}
	fmt.Printf("Tracked users: %d\n", len(users))
	return nil
}

func readiness(ok bool) string {
	if ok {
		return "set"
	}
	return "missing"
}
