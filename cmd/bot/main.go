package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robalyx/chopper/internal/bot"
	"github.com/robalyx/chopper/internal/setup"
	"github.com/robalyx/chopper/internal/setup/telemetry"
	"github.com/urfave/cli/v3"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"

	// shutdownTimeout bounds the gateway close and lease release on exit.
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:   "bot",
		Usage:  "Start the chopper age verification bot",
		Action: runBot,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Connect to Discord and gate new members",
				Action: runBot,
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// runBot starts the bot and blocks until an interrupt signal arrives.
func runBot(ctx context.Context, _ *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize application with required dependencies
	app, err := setup.InitializeApp(ctx, telemetry.ServiceBot, BotLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	// Cleanup runs after ctx is cancelled so it gets its own deadline
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		app.Cleanup(cleanupCtx)
	}()

	// Create bot instance
	discordBot, err := bot.New(&app.Config.Bot, app.DB, app.Registry, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	// Start the bot and connect to Discord
	if err := discordBot.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	log.Println("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

	// Wait for interrupt signal to gracefully shutdown the bot
	<-ctx.Done()

	// Cleanly close down the Discord session and pending verifications
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	discordBot.Close(closeCtx)

	return nil
}
