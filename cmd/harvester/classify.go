package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newClassifyCmd(root *rootOptions) *cobra.Command {
	var ticker, title, summary string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Show the relevance decision for one headline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			rules, err := loadRules(cfg)
			if err != nil {
				return err
			}

			exp := rules.Explain(strings.ToUpper(strings.TrimSpace(ticker)), title, summary)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "decision: %s\n", exp.Decision)
			fmt.Fprintf(out, "risky:    %t\n", exp.Risky)
			if len(exp.Negative) > 0 {
				fmt.Fprintf(out, "negative: %s\n", strings.Join(exp.Negative, ", "))
			}
			if len(exp.Positive) > 0 {
				fmt.Fprintf(out, "positive: %s\n", strings.Join(exp.Positive, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ticker, "ticker", "", "IDX ticker, e.g. BUMI")
	cmd.Flags().StringVar(&title, "title", "", "article title")
	cmd.Flags().StringVar(&summary, "summary", "", "article summary")
	_ = cmd.MarkFlagRequired("ticker")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}
