package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zapbot-im/zapbot/bot"
	"github.com/zapbot-im/zapbot/internal/biz/domain"
	"github.com/zapbot-im/zapbot/internal/conf"
	"github.com/zapbot-im/zapbot/internal/data"
	"github.com/zapbot-im/zapbot/internal/logutil"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := conf.LoadFromEnv()

	logger, err := logutil.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Invalid logging configuration: %v", err)
	}

	// The console transport feeds stdin lines through the full pipeline as
	// direct messages from the owner. A real network session plugs in here
	// by implementing repo.Transport.
	linked := domain.NormalizeJID(cfg.Bot.PrimaryNumber)
	if linked == "" {
		linked = cfg.Bot.OwnerJID
	}
	transport := data.NewConsoleTransport(cfg.Bot.OwnerJID, linked)

	b, err := bot.New(cfg, transport, logger)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	b.Start()
	transport.Start()
	fmt.Println("Zapbot running. Type a message and press enter; Ctrl+C to quit.")

	<-sigCh
	fmt.Println("\nShutting down...")
	b.Stop()
}
