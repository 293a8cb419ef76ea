package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adda-Baaj/berita-emiten/internal/config"
	"github.com/Adda-Baaj/berita-emiten/internal/ingest"
	"github.com/Adda-Baaj/berita-emiten/internal/logger"
	"github.com/Adda-Baaj/berita-emiten/internal/metrics"
	"github.com/Adda-Baaj/berita-emiten/internal/normalizer"
	"github.com/Adda-Baaj/berita-emiten/internal/relevance"
	"github.com/Adda-Baaj/berita-emiten/internal/storage/boltdb"
	"github.com/Adda-Baaj/berita-emiten/internal/storage/postgres"
	"github.com/Adda-Baaj/berita-emiten/pkg/providers"
	"github.com/Adda-Baaj/berita-emiten/pkg/publishers"
)

type storeCloser interface {
	ingest.Store
	Close() error
}

func newIngestCmd(root *rootOptions) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest scraped articles from a JSON lines file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runIngest(ctx, cfg, log, input, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON lines file, - for stdin")
	return cmd
}

func runIngest(ctx context.Context, cfg *config.Config, log logger.Logger, input string, stdin io.Reader, stdout io.Writer) error {
	rules, err := loadRules(cfg)
	if err != nil {
		return err
	}
	log.InfoObj("keyword rules loaded", "rules_loaded", map[string]any{
		"risky_tickers": rules.RiskyTickers(),
		"file":          cfg.Keywords.File,
	})

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	reg := providers.DefaultRegistry()
	pipeline, err := ingest.NewPipeline(relevance.NewHolder(rules), normalizer.NewTimeNormalizer(loc), reg)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	pubs, err := buildPublishers(ctx, cfg, log)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)
	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux(promReg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.ErrorObj("metrics listener failed", "metrics_error", map[string]any{"error": err.Error()})
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	in := stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	batch, bad, err := readBatch(in, reg, log)
	if err != nil {
		return err
	}

	runner := ingest.NewRunner(pipeline, store, ingest.Options{
		Logger:             log,
		Metrics:            m,
		Publishers:         pubs,
		EarlyExitThreshold: cfg.Ingest.EarlyExitThreshold,
	})
	sum := runner.Run(ctx, batch)

	fmt.Fprintf(stdout, "inserted=%d merged=%d noise=%d duplicate=%d malformed=%d undecodable=%d store_errors=%d publish_errors=%d skipped=%d\n",
		sum.Outcomes[ingest.OutcomeInserted],
		sum.Outcomes[ingest.OutcomeMergedTicker],
		sum.Outcomes[ingest.OutcomeRejectedNoise],
		sum.Outcomes[ingest.OutcomeRejectedDuplicate],
		sum.Malformed, bad, sum.StoreErrors, sum.PublishErrors, sum.Skipped,
	)
	return nil
}

func metricsMux(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))
	return mux
}

func openStore(ctx context.Context, cfg *config.Config) (storeCloser, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		s, err := postgres.Open(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case config.StoreDriverBolt:
		s, err := boltdb.Open(cfg.Store.BoltPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStoreDriver, cfg.Store.Driver)
	}
}

func buildPublishers(ctx context.Context, cfg *config.Config, log logger.Logger) ([]publishers.Publisher, error) {
	if cfg.Publishers.File == "" {
		return nil, nil
	}
	pcfg, err := publishers.LoadConfig(cfg.Publishers.File)
	if err != nil {
		return nil, err
	}
	return publishers.BuildAll(ctx, publishers.DefaultRegistry(), pcfg, log)
}
