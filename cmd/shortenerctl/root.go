package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Popolzen/shortlinks/internal/app"
	"github.com/Popolzen/shortlinks/internal/config"
	"github.com/Popolzen/shortlinks/internal/logger"
	"github.com/Popolzen/shortlinks/internal/repository"
	"github.com/Popolzen/shortlinks/internal/service/shortener"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cliContext общее состояние команд: конфигурация и логгер
type cliContext struct {
	configFile string
	cfg        *config.Config
	zl         *zap.Logger
	log        *zap.SugaredLogger
}

func (cc *cliContext) init() error {
	cfg, err := config.Load(cc.configFile)
	if err != nil {
		return fmt.Errorf("ошибка конфигурации: %w", err)
	}
	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	cc.cfg, cc.zl, cc.log = cfg, zl, zl.Sugar()
	return nil
}

// openLinks открывает хранилище и сервис ссылок. Хранилище закрывает вызывающий.
func (cc *cliContext) openLinks(ctx context.Context) (repository.Repository, *shortener.LinkService, error) {
	repo, err := app.OpenRepository(ctx, cc.cfg, cc.log)
	if err != nil {
		return nil, nil, err
	}
	codes := shortener.NewCodeGenerator(repo, cc.cfg.CodeLength)
	return repo, shortener.NewLinkService(repo, codes), nil
}

func newRootCmd() *cobra.Command {
	cc := &cliContext{}

	root := &cobra.Command{
		Use:   "shortenerctl",
		Short: "управление сервисом коротких ссылок",
		Example: `shortenerctl worker
shortenerctl migrate up
shortenerctl templates seed
shortenerctl links deactivate <code>
shortenerctl import links.xlsx
shortenerctl export -o links_export.zip --qr=false`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cc.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = cc.zl.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&cc.configFile, "config", "c", "", "JSON файл конфигурации (по умолчанию $CONFIG)")

	root.AddCommand(
		newWorkerCmd(cc),
		newMigrateCmd(cc),
		newTemplatesCmd(cc),
		newLinksCmd(cc),
		newImportCmd(cc),
		newExportCmd(cc),
	)
	root.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	root.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
	return root
}

// Execute запускает CLI, код возврата 1 при ошибке
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
