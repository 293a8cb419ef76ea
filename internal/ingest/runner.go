package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Adda-Baaj/berita-emiten/internal/domain"
	"github.com/Adda-Baaj/berita-emiten/internal/logger"
	"github.com/Adda-Baaj/berita-emiten/internal/metrics"
	"github.com/Adda-Baaj/berita-emiten/pkg/publishers"
)

// Store is the persistence collaborator. The fingerprint uniqueness constraint lives here.
type Store interface {
	Symbols(ctx context.Context, fp string) ([]string, bool, error)
	Insert(ctx context.Context, art *domain.NormalizedArticle) error
	AppendSymbol(ctx context.Context, fp, ticker string) error
}

// Options configures a Runner. Zero values are usable.
type Options struct {
	Logger     logger.Logger
	Metrics    *metrics.Metrics
	Publishers []publishers.Publisher
	// EarlyExitThreshold stops a (source, ticker) run after that many duplicates. 0 disables it.
	EarlyExitThreshold int
	Clock              func() time.Time
}

// Summary aggregates one Run.
type Summary struct {
	Outcomes      map[Outcome]int
	Malformed     int
	StoreErrors   int
	PublishErrors int
	// Skipped counts articles never looked at because their run exited early.
	Skipped int
}

// Total is the number of articles that reached an outcome.
func (s Summary) Total() int {
	n := 0
	for _, c := range s.Outcomes {
		n += c
	}
	return n
}

func (s *Summary) merge(o Summary) {
	if s.Outcomes == nil {
		s.Outcomes = make(map[Outcome]int)
	}
	for k, v := range o.Outcomes {
		s.Outcomes[k] += v
	}
	s.Malformed += o.Malformed
	s.StoreErrors += o.StoreErrors
	s.PublishErrors += o.PublishErrors
	s.Skipped += o.Skipped
}

// Runner feeds batches through a Pipeline and applies the results to a Store.
type Runner struct {
	pipeline *Pipeline
	store    Store
	log      logger.Logger
	metrics  *metrics.Metrics
	pubs     []publishers.Publisher
	early    int
	clock    func() time.Time
}

// NewRunner builds a Runner.
func NewRunner(p *Pipeline, store Store, opts Options) *Runner {
	r := &Runner{
		pipeline: p,
		store:    store,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		pubs:     opts.Publishers,
		early:    opts.EarlyExitThreshold,
		clock:    opts.Clock,
	}
	if r.log == nil {
		r.log = logger.NopLogger{}
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.early < 0 {
		r.early = 0
	}
	return r
}

// Run processes batch with one worker per source. Per-article failures are logged and
// counted; they never stop the batch.
func (r *Runner) Run(ctx context.Context, batch []domain.RawArticle) Summary {
	groups := make(map[domain.Source][]domain.RawArticle)
	var order []domain.Source
	for _, a := range batch {
		if _, ok := groups[a.Source]; !ok {
			order = append(order, a.Source)
		}
		groups[a.Source] = append(groups[a.Source], a)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total = Summary{Outcomes: make(map[Outcome]int)}
	)
	for _, src := range order {
		wg.Add(1)
		go func(src domain.Source, articles []domain.RawArticle) {
			defer wg.Done()
			start := time.Now()
			sum := r.runSource(ctx, src, articles)
			r.metrics.ObserveBatch(string(src), time.Since(start).Seconds())

			mu.Lock()
			total.merge(sum)
			mu.Unlock()
		}(src, groups[src])
	}
	wg.Wait()

	r.log.InfoObj("ingest batch finished", "ingest_batch_done", map[string]any{
		"articles":       len(batch),
		"inserted":       total.Outcomes[OutcomeInserted],
		"merged":         total.Outcomes[OutcomeMergedTicker],
		"noise":          total.Outcomes[OutcomeRejectedNoise],
		"duplicates":     total.Outcomes[OutcomeRejectedDuplicate],
		"malformed":      total.Malformed,
		"store_errors":   total.StoreErrors,
		"publish_errors": total.PublishErrors,
		"skipped":        total.Skipped,
	})
	return total
}

func (r *Runner) runSource(ctx context.Context, src domain.Source, articles []domain.RawArticle) Summary {
	sum := Summary{Outcomes: make(map[Outcome]int)}
	duplicates := make(map[string]int)

	for i, raw := range articles {
		if err := ctx.Err(); err != nil {
			sum.Skipped += len(articles) - i
			r.log.WarnObj("ingest cancelled", "ingest_cancelled", map[string]any{
				"source": src,
				"left":   len(articles) - i,
			})
			return sum
		}
		if r.early > 0 && duplicates[raw.Ticker] >= r.early {
			sum.Skipped++
			continue
		}

		res, ok := r.ingestOne(ctx, raw, &sum)
		if !ok {
			continue
		}
		sum.Outcomes[res.Outcome]++
		r.metrics.Outcome(string(src), res.Outcome.String())

		if res.Outcome == OutcomeRejectedDuplicate {
			duplicates[raw.Ticker]++
			if r.early > 0 && duplicates[raw.Ticker] == r.early {
				r.log.DebugObj("early exit after duplicates", "ingest_early_exit", map[string]any{
					"source": src,
					"ticker": raw.Ticker,
				})
			}
		}
	}
	return sum
}

// ingestOne runs a single article end to end. ok is false when the article produced no outcome.
func (r *Runner) ingestOne(ctx context.Context, raw domain.RawArticle, sum *Summary) (Result, bool) {
	ref := r.clock()
	known := &storeKnown{ctx: ctx, store: r.store}

	res, err := r.pipeline.Ingest(raw, ref, known)
	if known.err != nil {
		sum.StoreErrors++
		r.metrics.StoreError("lookup")
		r.log.ErrorObj("store lookup failed", "ingest_store_error", map[string]any{
			"source": raw.Source,
			"url":    raw.URL,
			"error":  known.err.Error(),
		})
		return Result{}, false
	}
	if err != nil {
		sum.Malformed++
		r.metrics.MalformedArticle(string(raw.Source))
		r.log.WarnObj("dropping malformed article", "ingest_malformed", map[string]any{
			"source": raw.Source,
			"ticker": raw.Ticker,
			"url":    raw.URL,
			"error":  err.Error(),
		})
		return Result{}, false
	}

	symbols, err := r.apply(ctx, &res, known.symbols)
	if err != nil {
		sum.StoreErrors++
		r.log.ErrorObj("store write failed", "ingest_store_error", map[string]any{
			"source":  res.Source,
			"hash":    res.Fingerprint,
			"outcome": res.Outcome.String(),
			"error":   err.Error(),
		})
		return Result{}, false
	}

	fields := map[string]any{
		"source":  res.Source,
		"ticker":  res.Ticker,
		"hash":    res.Fingerprint,
		"outcome": res.Outcome.String(),
	}
	if res.Outcome == OutcomeRejectedNoise {
		fields["negative"] = res.Relevance.Negative
		fields["title"] = raw.Title
		r.log.InfoObj("skipped irrelevant article", "ingest_noise", fields)
	} else {
		r.log.DebugObj("article ingested", "ingest_outcome", fields)
	}

	sum.PublishErrors += r.publish(ctx, res, symbols, ref)
	return res, true
}

// apply performs the store side effect of res and returns the symbols now stored under its
// fingerprint. A uniqueness violation on insert turns into a merge.
func (r *Runner) apply(ctx context.Context, res *Result, stored []string) ([]string, error) {
	switch res.Outcome {
	case OutcomeInserted:
		err := r.store.Insert(ctx, res.Article)
		if err == nil {
			return res.Article.StockSymbols, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			r.metrics.StoreError("insert")
			return nil, err
		}
		// Another writer stored the same content first.
		res.Outcome = OutcomeMergedTicker
		res.Article = nil
		if err := r.store.AppendSymbol(ctx, res.Fingerprint, res.Ticker); err != nil {
			r.metrics.StoreError("append")
			return nil, err
		}
		symbols, _, err := r.store.Symbols(ctx, res.Fingerprint)
		if err != nil || len(symbols) == 0 {
			symbols = []string{res.Ticker}
		}
		return symbols, nil
	case OutcomeMergedTicker:
		if err := r.store.AppendSymbol(ctx, res.Fingerprint, res.Ticker); err != nil {
			r.metrics.StoreError("append")
			return nil, err
		}
		return append(append([]string(nil), stored...), res.Ticker), nil
	}
	return stored, nil
}

func (r *Runner) publish(ctx context.Context, res Result, symbols []string, at time.Time) int {
	if len(r.pubs) == 0 {
		return 0
	}

	evt := publishers.Event{
		ID:          res.Fingerprint + ":" + res.Ticker + ":" + res.Outcome.String(),
		Outcome:     res.Outcome.String(),
		Fingerprint: res.Fingerprint,
		Ticker:      res.Ticker,
		Source:      string(res.Source),
		URL:         res.URL,
		OccurredAt:  at.UTC(),
	}
	if res.Article != nil {
		evt.Title = res.Article.Title
		evt.PublishedAt = res.Article.PublishedAt
		evt.ImageURL = res.Article.ImageURL
	}
	if res.Outcome == OutcomeInserted || res.Outcome == OutcomeMergedTicker {
		evt.StockSymbols = symbols
	}

	failed := 0
	for _, p := range r.pubs {
		if err := p.Publish(ctx, evt); err != nil {
			failed++
			r.metrics.PublishError(p.ID())
			r.log.WarnObj("publish failed", "ingest_publish_error", map[string]any{
				"publisher_id": p.ID(),
				"hash":         res.Fingerprint,
				"error":        err.Error(),
			})
		}
	}
	return failed
}

// storeKnown adapts a Store to the pipeline's Known lookup and remembers the last answer.
type storeKnown struct {
	ctx     context.Context
	store   Store
	symbols []string
	err     error
}

func (k *storeKnown) Symbols(fp string) ([]string, bool) {
	symbols, ok, err := k.store.Symbols(k.ctx, fp)
	if err != nil {
		k.err = err
		return nil, false
	}
	k.symbols = symbols
	return symbols, ok
}
