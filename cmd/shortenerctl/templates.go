package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/spf13/cobra"
)

func newTemplatesCmd(cc *cliContext) *cobra.Command {
	command := &cobra.Command{
		Use:   "templates",
		Short: "шаблоны ссылок",
	}

	command.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "список шаблонов",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, svc, err := cc.openLinks(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			templates, err := svc.Templates(cmd.Context())
			if err != nil {
				return err
			}
			printTemplates(cmd, templates)
			return nil
		},
	})

	command.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "завести стартовый набор шаблонов",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, svc, err := cc.openLinks(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			templates, err := svc.SeedTemplates(cmd.Context())
			if err != nil {
				return err
			}
			printTemplates(cmd, templates)
			return nil
		},
	})

	command.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "удалить шаблон, если на него не ссылаются ссылки",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("некорректный id шаблона %q", args[0])
			}
			repo, svc, err := cc.openLinks(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := svc.DeleteTemplate(cmd.Context(), id); err != nil {
				return fmt.Errorf("шаблон %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "шаблон %d удалён\n", id)
			return nil
		},
	})

	return command
}

func printTemplates(cmd *cobra.Command, templates []model.Template) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tURL PATTERN")
	for _, t := range templates {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", t.ID, t.Name, t.URLPattern)
	}
	tw.Flush()
}
