package main

import (
	"github.com/Popolzen/shortlinks/internal/app"
	"github.com/spf13/cobra"
)

func newWorkerCmd(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "обработка задач импорта и экспорта из очереди asynq",
		Long: `Воркер забирает задачи из Redis и выполняет их до SIGINT/SIGTERM.
Нужен только при QUEUE_BACKEND=asynq, очередь local выполняет задачи внутри сервера.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), cc.cfg, cc.log)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := a.NewWorker()
			if err != nil {
				return err
			}
			if err := a.StartCleaner(); err != nil {
				return err
			}
			cc.log.Infow("Воркер запущен", "queue", cc.cfg.QueueName, "concurrency", cc.cfg.WorkerConcurrency)
			return w.Run()
		},
	}
}
