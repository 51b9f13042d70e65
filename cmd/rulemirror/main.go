// Command rulemirror runs the GitHub-file → chat-channel mirror service.
// The webhook receiver and the chat-side bot are separate processes sharing
// one redis; `all` runs both in one process for development.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/SOF3/rule-mirror/pkg/bot"
	"github.com/SOF3/rule-mirror/pkg/bus"
	"github.com/SOF3/rule-mirror/pkg/channels"
	"github.com/SOF3/rule-mirror/pkg/config"
	"github.com/SOF3/rule-mirror/pkg/github"
	"github.com/SOF3/rule-mirror/pkg/ingest"
	"github.com/SOF3/rule-mirror/pkg/logger"
	"github.com/SOF3/rule-mirror/pkg/mirror"
	"github.com/SOF3/rule-mirror/pkg/onseen"
	"github.com/SOF3/rule-mirror/pkg/registry"
	"github.com/SOF3/rule-mirror/pkg/resync"
	"github.com/SOF3/rule-mirror/pkg/web"
)

func main() {
	app := &cli.App{
		Name:  "rulemirror",
		Usage: "mirror GitHub files into chat channels",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML config file",
				Value:   "rulemirror.yaml",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "web",
				Usage:  "run the GitHub webhook receiver",
				Action: withConfig(runWeb),
			},
			{
				Name:   "bot",
				Usage:  "run the chat-side bot and mirror workers",
				Action: withConfig(runBot),
			},
			{
				Name:   "all",
				Usage:  "run receiver and bot in one process",
				Action: withConfig(runAll),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.ErrorCF("main", "Fatal error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func withConfig(run func(ctx context.Context, cfg *config.Config) error) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		cfg, err := config.Load(cctx.String("config"))
		if err != nil {
			return err
		}
		logger.Init(cfg.Log.Level, cfg.Log.JSON)

		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	}
}

func runWeb(ctx context.Context, cfg *config.Config) error {
	reg, rdb, err := registry.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer rdb.Close()
	events := bus.New(rdb)
	ingestor := ingest.New(reg, events)

	if cfg.Resync.Cron != "" {
		resyncer, err := resync.New(reg, events, cfg.Resync.Cron)
		if err != nil {
			return err
		}
		go resyncer.Run(ctx)
	}

	return web.NewServer(cfg.Web.Listen, cfg.GitHub.WebhookSecret, ingestor, events).Start(ctx)
}

func runBot(ctx context.Context, cfg *config.Config) error {
	reg, rdb, err := registry.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer rdb.Close()
	events := bus.New(rdb)

	channel, err := channels.New(cfg.Chat)
	if err != nil {
		return err
	}
	gh := github.NewClient()

	worker := mirror.NewWorker(channel, gh)
	go worker.Run(ctx, events.SubscribeUpdates(ctx))

	consumer := onseen.New(channel)
	go consumer.Run(ctx, events.SubscribeOnSeen(ctx))

	logger.InfoCF("main", "Bot process started", map[string]interface{}{
		"platform": channel.Platform(),
	})

	// The interactive mirror command rides the Discord gateway; other
	// platforms run workers only.
	if discord, ok := channel.(*channels.Discord); ok {
		manager := mirror.NewManager(reg, gh, gh, channel, cfg.GitHub.AppURL)
		return bot.New(discord, manager, reg, cfg.Chat.Discord.ClientID).Start(ctx)
	}
	<-ctx.Done()
	return nil
}

func runAll(ctx context.Context, cfg *config.Config) error {
	errCh := make(chan error, 2)
	go func() { errCh <- runWeb(ctx, cfg) }()
	go func() { errCh <- runBot(ctx, cfg) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("component exited: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}
