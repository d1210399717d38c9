package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nervosnetwork/nervos-bot/internal/alert"
	"github.com/nervosnetwork/nervos-bot/internal/bot"
	"github.com/nervosnetwork/nervos-bot/internal/brain"
	"github.com/nervosnetwork/nervos-bot/internal/config"
	"github.com/nervosnetwork/nervos-bot/internal/gateway"
	"github.com/nervosnetwork/nervos-bot/internal/githubapp"
	"github.com/nervosnetwork/nervos-bot/internal/repository"
	"github.com/nervosnetwork/nervos-bot/internal/telegram"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	Long: `Serves the GitHub webhook endpoint and the Alertmanager relay until
interrupted. Every delivery is verified against the webhook secret and
dispatched under an installation-scoped App token.`,
	RunE: runServe,
}

// repoClientSource adapts the App client provider to the gateway's
// per-installation client interface.
type repoClientSource struct {
	provider *githubapp.ClientProvider
}

func (s repoClientSource) For(ctx context.Context, installationID int64) (repository.Client, error) {
	client, err := s.provider.For(ctx, installationID)
	if err != nil {
		return nil, err
	}
	return repository.NewGitHub(client), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.Default()

	key, err := cfg.GitHub.PrivateKeyPEM()
	if err != nil {
		return err
	}
	provider, err := githubapp.NewClientProvider(cfg.GitHub.AppID, key, cfg.GitHub.APIBaseURL)
	if err != nil {
		return err
	}

	br, err := brain.New(cfg.Projects)
	if err != nil {
		return err
	}

	var notify bot.Notifier
	var alerts gateway.AlertSink
	if cfg.Telegram.Token != "" {
		tgOpts := []telegram.Option{telegram.WithLogger(logger)}
		if cfg.Telegram.APIBaseURL != "" {
			tgOpts = append(tgOpts, telegram.WithBaseURL(cfg.Telegram.APIBaseURL))
		}
		tg := telegram.New(cfg.Telegram.Token, tgOpts...)
		notify = tg
		alerts = alert.New(tg, cfg.Telegram.AlertChatID, logger)
	} else {
		logger.Warn("serve: no telegram token, chat notifications disabled")
	}

	b := bot.New(br, notify, logger, cfg.GitHub.BotLogin)
	server := gateway.New(cfg.Server.Addr, cfg.GitHub.WebhookSecret, b,
		repoClientSource{provider: provider}, alerts, logger)

	return server.Start(ctx)
}
