package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adda-Baaj/berita-emiten/internal/config"
	"github.com/Adda-Baaj/berita-emiten/internal/logger"
	"github.com/Adda-Baaj/berita-emiten/internal/relevance"
)

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "harvester",
		Short:         "Ingest IDX ticker news into market_news",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ./config.yaml when present)")

	cmd.AddCommand(
		newIngestCmd(opts),
		newClassifyCmd(opts),
		newSourcesCmd(),
	)
	return cmd
}

func (o *rootOptions) load() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func loadRules(cfg *config.Config) (*relevance.RuleSet, error) {
	if cfg.Keywords.File == "" {
		return relevance.DefaultRules()
	}
	return relevance.LoadRules(cfg.Keywords.File)
}
