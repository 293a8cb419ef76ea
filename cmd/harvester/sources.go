package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adda-Baaj/berita-emiten/pkg/providers"
)

func newSourcesCmd() *cobra.Command {
	var symbol string

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the news sources and their tag pages for a symbol",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, p := range providers.DefaultRegistry().All() {
				fmt.Fprintf(out, "%-11s %-16s %s\n", p.ID, p.Name, p.TagURL(symbol))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "{symbol}", "ticker to fill into the tag url")
	return cmd
}
