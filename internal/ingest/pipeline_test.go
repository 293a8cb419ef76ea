package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adda-Baaj/berita-emiten/internal/domain"
	"github.com/Adda-Baaj/berita-emiten/internal/fingerprint"
	"github.com/Adda-Baaj/berita-emiten/internal/normalizer"
)

var refTime = time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline(nil, nil, nil)
	require.NoError(t, err)
	return p
}

func bumiArticle() domain.RawArticle {
	return domain.RawArticle{
		Ticker:       "BUMI",
		Title:        "Saham BUMI Naik Usai Gempa Bumi",
		Summary:      "Investor optimis",
		Source:       domain.SourceKontan,
		URL:          "https://investasi.kontan.co.id/news/saham-bumi-naik",
		RawPublished: "5 menit yang lalu",
		CandidateImages: []domain.ImageCandidate{
			{URL: "https://foto.kontan.co.id/placeholder.gif", Attrs: map[string]string{"data-src": "https://foto.kontan.co.id/bumi.jpg"}},
		},
	}
}

func TestIngest_InsertedAssemblesArticle(t *testing.T) {
	p := newTestPipeline(t)

	res, err := p.Ingest(bumiArticle(), refTime, nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeInserted, res.Outcome)
	require.NotNil(t, res.Article)
	art := res.Article
	assert.Len(t, art.Fingerprint, 64)
	assert.Equal(t, res.Fingerprint, art.Fingerprint)
	assert.Equal(t, []string{"BUMI"}, art.StockSymbols)
	assert.Equal(t, "https://foto.kontan.co.id/bumi.jpg", art.ImageURL)
	require.NotNil(t, art.PublishedAt)
	assert.True(t, art.PublishedAt.Equal(refTime.Add(-5*time.Minute)))
	assert.True(t, res.Relevance.Risky)
	assert.NotEmpty(t, res.Relevance.Positive)
}

func TestIngest_IdempotentOnSameArticle(t *testing.T) {
	p := newTestPipeline(t)
	known := KnownMap{}

	first, err := p.Ingest(bumiArticle(), refTime, known)
	require.NoError(t, err)
	require.Equal(t, OutcomeInserted, first.Outcome)
	known.Apply(first)

	second, err := p.Ingest(bumiArticle(), refTime, known)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejectedDuplicate, second.Outcome)
	assert.Nil(t, second.Article)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestIngest_NewTickerMerges(t *testing.T) {
	p := newTestPipeline(t)
	known := KnownMap{}

	first, err := p.Ingest(bumiArticle(), refTime, known)
	require.NoError(t, err)
	known.Apply(first)

	again := bumiArticle()
	again.Ticker = "BRMS"
	merged, err := p.Ingest(again, refTime, known)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMergedTicker, merged.Outcome)
	assert.Equal(t, "BRMS", merged.Ticker)

	known.Apply(merged)
	assert.Equal(t, []string{"BUMI", "BRMS"}, known[first.Fingerprint])

	third, err := p.Ingest(again, refTime, known)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejectedDuplicate, third.Outcome)
}

func TestIngest_KnownContentSkipsClassification(t *testing.T) {
	p := newTestPipeline(t)
	noise := domain.RawArticle{
		Ticker: "BUMI",
		Title:  "Gempa Bumi Guncang Jakarta",
		Source: domain.SourceKompas,
		URL:    "https://www.kompas.com/read/gempa",
	}
	fp := fingerprint.ForArticle(noise)

	res, err := p.Ingest(noise, refTime, KnownMap{fp: {"BBRI"}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeMergedTicker, res.Outcome)
	assert.False(t, res.Relevance.Risky)
}

func TestIngest_RejectsNoise(t *testing.T) {
	p := newTestPipeline(t)

	res, err := p.Ingest(domain.RawArticle{
		Ticker: "BUMI",
		Title:  "Gempa Bumi Guncang Jakarta",
		Source: domain.SourceCNBC,
		URL:    "https://www.cnbcindonesia.com/news/gempa",
	}, refTime, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejectedNoise, res.Outcome)
	assert.Nil(t, res.Article)
	assert.Contains(t, res.Relevance.Negative, "gempa")
}

func TestIngest_DegradesTimestampAndImage(t *testing.T) {
	p := newTestPipeline(t)

	raw := domain.RawArticle{
		Ticker:          "BBRI",
		Title:           "BBRI Bagikan Dividen",
		Source:          domain.SourceInvestor,
		URL:             "https://investor.id/market/1/bbri",
		RawPublished:    "kemarin sore",
		CandidateImages: []domain.ImageCandidate{{URL: "https://investor.id/img/loading.gif"}},
	}
	res, err := p.Ingest(raw, refTime, nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeInserted, res.Outcome)
	assert.Nil(t, res.Article.PublishedAt)
	assert.Empty(t, res.Article.ImageURL)
	assert.Equal(t, "kemarin sore", res.Article.RawPublished)
}

func TestIngest_NaiveTimestampUsesConfiguredZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	p, err := NewPipeline(nil, normalizer.NewTimeNormalizer(tokyo), nil)
	require.NoError(t, err)

	raw := domain.RawArticle{
		Ticker:       "ANTM",
		Title:        "ANTM Catat Penjualan Emas",
		Source:       domain.SourceKompas,
		URL:          "https://money.kompas.com/read/antm",
		RawPublished: "13 Oktober 2025 10:00",
	}
	res, err := p.Ingest(raw, refTime, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Article.PublishedAt)
	assert.True(t, time.Date(2025, 10, 13, 1, 0, 0, 0, time.UTC).Equal(*res.Article.PublishedAt), "got %s", res.Article.PublishedAt)

	raw.RawPublished = "13 Oktober 2025 10:00 WIB"
	res, err = p.Ingest(raw, refTime, nil)
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 10, 13, 3, 0, 0, 0, time.UTC).Equal(*res.Article.PublishedAt), "explicit suffix wins")
}

func TestIngest_ResolvesRelativeLink(t *testing.T) {
	p := newTestPipeline(t)

	raw := domain.RawArticle{
		Ticker: "GOTO",
		Title:  "GOTO Cetak Laba",
		Source: domain.SourceKontan,
		URL:    "/news/goto-cetak-laba",
	}
	res, err := p.Ingest(raw, refTime, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://www.kontan.co.id/news/goto-cetak-laba", res.URL)
	assert.Equal(t, res.URL, res.Article.URL)
	assert.Equal(t, fingerprint.Fingerprint(raw.Title, "https://www.kontan.co.id/news/goto-cetak-laba"), res.Fingerprint)
}

func TestIngest_TruncatesLongText(t *testing.T) {
	p := newTestPipeline(t)

	raw := domain.RawArticle{
		Ticker:  "TLKM",
		Title:   strings.Repeat("é", 600),
		Summary: "  ringkas  ",
		Source:  domain.SourceIDXChannel,
		URL:     "https://www.idxchannel.com/market-news/tlkm",
	}
	res, err := p.Ingest(raw, refTime, nil)
	require.NoError(t, err)

	assert.Equal(t, 500, len([]rune(res.Article.Title)))
	assert.Equal(t, "ringkas", res.Article.Summary)
}

func TestIngest_MalformedArticles(t *testing.T) {
	p := newTestPipeline(t)

	tests := []struct {
		name string
		raw  domain.RawArticle
	}{
		{"empty url", domain.RawArticle{Ticker: "BUMI", Title: "x", Source: domain.SourceKontan}},
		{"lowercase ticker", domain.RawArticle{Ticker: "bumi", Title: "x", Source: domain.SourceKontan, URL: "https://x/a"}},
		{"ticker too long", domain.RawArticle{Ticker: "ABCDEF", Title: "x", Source: domain.SourceKontan, URL: "https://x/a"}},
		{"unknown source", domain.RawArticle{Ticker: "BUMI", Title: "x", Source: "detik", URL: "https://x/a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Ingest(tt.raw, refTime, nil)
			assert.ErrorIs(t, err, domain.ErrMalformedArticle)
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "inserted", OutcomeInserted.String())
	assert.Equal(t, "merged_ticker", OutcomeMergedTicker.String())
	assert.Equal(t, "rejected_noise", OutcomeRejectedNoise.String())
	assert.Equal(t, "rejected_duplicate", OutcomeRejectedDuplicate.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}
