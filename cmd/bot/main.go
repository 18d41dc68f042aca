package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"discord-proxy-bot/internal/ai"
	"discord-proxy-bot/internal/avatar"
	"discord-proxy-bot/internal/bot"
	"discord-proxy-bot/internal/config"
	"discord-proxy-bot/internal/database"
	"discord-proxy-bot/internal/logging"
	"discord-proxy-bot/internal/proxy"
	"discord-proxy-bot/internal/search"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "bot",
		Short:         "Discord character proxy bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(envFile, func(a *app) error { return a.run(cmd.Context()) })
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file to load")

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(*cobra.Command, []string) error {
			return withApp(envFile, func(a *app) error {
				a.logger.Info("migrations applied")
				return nil
			})
		},
	})
	return root
}

type app struct {
	cfg    config.Config
	logger *zap.Logger
	db     *database.DB
}

// withApp loads configuration, connects and migrates the database, runs
// fn and releases everything afterwards.
func withApp(envFile string, fn func(*app) error) error {
	cfg, found, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if !found {
		logger.Info("no env file found, using the environment", zap.String("file", envFile))
	}

	db, err := database.NewDB(database.Options{
		Driver:     cfg.DBDriver,
		Host:       cfg.DBHost,
		User:       cfg.DBUser,
		Password:   cfg.DBPassword,
		Name:       cfg.DBName,
		Port:       cfg.DBPort,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return fn(&app{cfg: cfg, logger: logger, db: db})
}

func (a *app) run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	avatars, err := avatar.NewCache(a.cfg.ImageDir, a.logger)
	if err != nil {
		return err
	}
	server := avatar.NewServer(avatars, a.cfg.HTTPAddr, a.logger)

	// A nil *search.Indexer must not end up inside the interface.
	var searcher bot.Searcher
	if a.cfg.SearchEnabled() {
		searcher = search.NewIndexer(ai.NewAIService(a.cfg.OpenAIAPIKey), a.db, a.logger)
		a.logger.Info("semantic search enabled")
	}

	cooldowns := proxy.NewCooldownTracker(time.Second)
	defer cooldowns.Stop()

	handler := bot.NewBotHandler(a.db, avatars, searcher, cooldowns, bot.Config{
		CommandPrefix:     a.cfg.CommandPrefix,
		PromptTimeout:     a.cfg.PromptTimeout,
		NoticeTTL:         a.cfg.NoticeTTL,
		AvatarURLTemplate: a.cfg.AvatarURLTemplate,
		StaffChannelID:    a.cfg.StaffChannelID,
	}, a.logger)

	session, err := discordgo.New("Bot " + a.cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsDirectMessageReactions |
		discordgo.IntentMessageContent
	if err := handler.SetSession(session); err != nil {
		return err
	}
	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord connection: %w", err)
	}
	defer session.Close()
	a.logger.Info("bot is running", zap.String("prefix", a.cfg.CommandPrefix), zap.String("http", a.cfg.HTTPAddr))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); err != nil {
			return fmt.Errorf("avatar server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
