package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/rest"

	"github.com/veilguard/doppel/internal/detection"
	doppeldiscord "github.com/veilguard/doppel/internal/discord"
	"github.com/veilguard/doppel/internal/redis"
	"github.com/veilguard/doppel/internal/setup"
	"github.com/veilguard/doppel/pkg/utils"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := setup.InitializeApp(ctx, BotLogDir)
	if err != nil {
		return err
	}
	defer app.Cleanup(ctx)

	token := app.Config.Bot.Discord.Token

	// The sources use a standalone REST client so fetching can proceed
	// independently of the gateway connection.
	restClient := rest.New(rest.NewClient(token, rest.WithHTTPClient(&http.Client{
		Timeout: time.Duration(app.Config.Bot.RequestTimeout) * time.Millisecond,
	})))
	roster := doppeldiscord.NewRosterSource(restClient, app.Logger)
	history := doppeldiscord.NewHistorySource(restClient, app.Logger)

	lockClient, err := app.RedisManager.GetClient(redis.ScanLockDBIndex)
	if err != nil {
		return err
	}

	detectionCfg := &app.Config.Common.Detection

	retryCfg := app.Config.Common.Retry
	retryOpts := utils.GetTransportRetryOptions()
	retryOpts.MaxRetries = retryCfg.MaxRetries
	retryOpts.InitialInterval = time.Duration(retryCfg.Delay) * time.Millisecond
	retryOpts.MaxInterval = time.Duration(retryCfg.MaxDelay) * time.Millisecond

	fetcher := detection.NewFetcher(roster, app.Logger)
	fetcher.SetRetryOptions(retryOpts)

	sampler := detection.NewSampler(history, detectionCfg, app.Logger)
	sampler.SetRetryOptions(retryOpts)

	scanner := detection.NewScanner(
		app.DB.Model(),
		detection.NewScanLock(lockClient, app.Logger),
		fetcher,
		sampler,
		detectionCfg,
		app.Logger,
	)

	discordBot, err := doppeldiscord.New(token, scanner, app.Logger)
	if err != nil {
		return err
	}

	if err := discordBot.Start(ctx); err != nil {
		return err
	}

	app.Logger.Info("Bot has been started, waiting for interrupt signal")
	log.Println("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	discordBot.Close(ctx)

	return nil
}
