package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLinksCmd(cc *cliContext) *cobra.Command {
	command := &cobra.Command{
		Use:   "links",
		Short: "управление ссылками",
	}

	setActive := func(use, short string, active bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <code>...",
			Short: short,
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				repo, svc, err := cc.openLinks(cmd.Context())
				if err != nil {
					return err
				}
				defer repo.Close()

				for _, code := range args {
					if err := svc.SetActive(cmd.Context(), code, active); err != nil {
						return fmt.Errorf("ссылка %s: %w", code, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s is_active=%t\n", code, active)
				}
				return nil
			},
		}
	}

	command.AddCommand(
		setActive("activate", "включить ссылки", true),
		setActive("deactivate", "отключить ссылки, редирект начнёт отвечать 410", false),
	)
	return command
}
