package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"hospops/internal/config"
	"hospops/internal/notify"
	"hospops/shared/audit"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func auditCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Status history and audit logs of visits",
	}

	var (
		outDir string
		send   bool
		ids    []int64
	)
	export := &cobra.Command{
		Use:   "export <entity>",
		Short: "Export history and audit logs to an xlsx workbook",
		Long: "Export the status history and audit logs of the given visits, or of every\n" +
			"listed visit when --id is not set, to <entity>_이력_<date>.xlsx.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				ops, err := lookup(visitEntities(a), args[0])
				if err != nil {
					return err
				}
				targets := ids
				if len(targets) == 0 {
					if targets, err = ops.keys(ctx); err != nil {
						return err
					}
				}

				var sender audit.DocumentSender
				if send {
					tg, err := telegramNotifier(a.cfg, a.logger)
					if err != nil {
						return err
					}
					sender = tg
				}
				svc := audit.NewService(nil, sender, a.logger)
				report, err := svc.Export(ctx, args[0], ops.trail, targets)
				if err != nil {
					return err
				}

				path := filepath.Join(outDir, report.Filename)
				if err := os.WriteFile(path, report.Data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d visits, %d status changes, %d audit entries\n",
					path, report.Visits, report.History, report.Logs)
				if len(report.Failed) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "skipped %v\n", report.Failed)
				}
				if send {
					return svc.Send(ctx, report, fmt.Sprintf("%s 상태이력/감사로그", args[0]))
				}
				return nil
			})
		},
	}
	export.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	export.Flags().Int64SliceVar(&ids, "id", nil, "visit ids (default: every listed visit)")
	export.Flags().BoolVar(&send, "send", false, "also upload the workbook to the telegram chat")
	cmd.AddCommand(export)
	return cmd
}

// telegramNotifier builds the ops chat notifier from config.
func telegramNotifier(cfg *config.Config, logger *zerolog.Logger) (*notify.Telegram, error) {
	if cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("telegram.bot_token is not configured")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	tg := notify.NewTelegram(bot, cfg.Telegram.ChatID, logger)
	tg.IncludeInfo = cfg.Telegram.IncludeInfo
	return tg, nil
}
