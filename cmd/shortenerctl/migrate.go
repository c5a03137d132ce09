package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Popolzen/shortlinks/internal/config/db"
	"github.com/spf13/cobra"
)

var errNoDSN = errors.New("DATABASE_DSN не задан")

func newMigrateCmd(cc *cliContext) *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "миграции базы данных",
	}

	open := func(cmd *cobra.Command) (*db.DataBase, error) {
		if !cc.cfg.UseDatabase() {
			return nil, errNoDSN
		}
		return db.NewDataBase(cmd.Context(), *cc.cfg)
	}

	command.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "применить все миграции",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := open(cmd)
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.Migrate(); err != nil {
				return err
			}
			cc.log.Info("Миграции применены")
			return nil
		},
	})

	command.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "откатить последние миграции (по умолчанию одну)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("steps должен быть положительным числом: %q", args[0])
				}
				steps = n
			}
			d, err := open(cmd)
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.Rollback(steps); err != nil {
				return err
			}
			cc.log.Infow("Миграции откачены", "steps", steps)
			return nil
		},
	})

	command.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "текущая версия схемы",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := open(cmd)
			if err != nil {
				return err
			}
			defer d.Close()
			version, dirty, err := d.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %t\n", version, dirty)
			return nil
		},
	})

	return command
}
