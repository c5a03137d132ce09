package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Popolzen/shortlinks/internal/archive"
	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/Popolzen/shortlinks/internal/service/bulk"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// progressPrinter пишет прогресс задачи в stderr одной строкой
func progressPrinter(cmd *cobra.Command) model.ProgressFunc {
	return func(p model.Progress) {
		fmt.Fprintf(cmd.ErrOrStderr(), "\r%s: %d/%d (%d%%)", p.Stage, p.Current, p.Total, p.Percent)
		if p.Total > 0 && p.Current == p.Total {
			fmt.Fprintln(cmd.ErrOrStderr())
		}
	}
}

func newImportCmd(cc *cliContext) *cobra.Command {
	var baseURL string

	command := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "импортировать ссылки из xlsx напрямую в хранилище",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
				return fmt.Errorf("файл должен быть .xlsx: %s", path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if baseURL == "" {
				baseURL = cc.cfg.BaseURL
			}

			repo, svc, err := cc.openLinks(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			importer := bulk.NewImporter(repo, svc.Codes(), bulk.ImportOptions{
				BatchSize:     cc.cfg.ImportBatchSize,
				ProgressEvery: cc.cfg.ImportProgressEvery,
			}, cc.log)
			res, err := importer.Import(cmd.Context(), data, baseURL, progressPrinter(cmd))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	command.Flags().StringVarP(&baseURL, "base-url", "b", "", "префикс коротких ссылок в результате (по умолчанию BASE_URL)")
	return command
}

func newExportCmd(cc *cliContext) *cobra.Command {
	var (
		out        string
		generateQR bool
		baseURL    string
	)

	command := &cobra.Command{
		Use:   "export",
		Short: "выгрузить все ссылки в zip архив (таблица и QR-коды)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				baseURL = cc.cfg.BaseURL
			}
			repo, _, err := cc.openLinks(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			store, err := archive.NewStore(cc.cfg.ExportDir)
			if err != nil {
				return err
			}
			exporter := bulk.NewExporter(repo, store, cc.cfg.ExportChunkSize, cc.log)

			id := uuid.NewString()
			res, err := exporter.Export(cmd.Context(), id, baseURL, generateQR, progressPrinter(cmd))
			if err != nil {
				return err
			}

			if dir := filepath.Dir(out); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if _, err := store.SaveTo(id, f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ссылок %d, %d байт\n", out, res.Links, res.Size)
			return nil
		},
	}
	command.Flags().StringVarP(&out, "out", "o", "links_export.zip", "куда сохранить архив")
	command.Flags().BoolVar(&generateQR, "qr", true, "добавить QR-коды в SVG, PNG и PDF")
	command.Flags().StringVarP(&baseURL, "base-url", "b", "", "префикс коротких ссылок (по умолчанию BASE_URL)")
	return command
}
