package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nervosnetwork/nervos-bot/internal/config"
	"github.com/nervosnetwork/nervos-bot/internal/telegram"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run the Telegram chat listener",
	Long: `Long-polls the Telegram API and answers chat commands (/start, /stop,
/issue). Runs until interrupted.`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("chat requires telegram.token")
	}

	logger := slog.Default()
	tgOpts := []telegram.Option{telegram.WithLogger(logger)}
	if cfg.Telegram.APIBaseURL != "" {
		tgOpts = append(tgOpts, telegram.WithBaseURL(cfg.Telegram.APIBaseURL))
	}
	tg := telegram.New(cfg.Telegram.Token, tgOpts...)

	me, err := tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("verifying telegram credentials: %w", err)
	}
	logger.Info("chat: listening", "bot", me)

	return tg.Listen(ctx, telegram.NewCommandHandler(tg, cfg.Telegram.IssueRepo))
}
