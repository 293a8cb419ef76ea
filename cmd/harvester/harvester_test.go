package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adda-Baaj/berita-emiten/internal/config"
	"github.com/Adda-Baaj/berita-emiten/internal/domain"
	"github.com/Adda-Baaj/berita-emiten/internal/logger"
	"github.com/Adda-Baaj/berita-emiten/pkg/providers"
)

const sampleInput = `{"ticker":"BUMI","title":"Saham BUMI Naik Usai Gempa Bumi","summary":"Investor optimis","source":"kontan","url":"/news/saham-bumi-naik","raw_published":"Selasa, 10 Februari 2026 | 14:30 WIB","image_html":"<div class=\"pic\"><img src=\"https://kontan.co.id/blank.gif\" data-src=\"https://foto.kontan.co.id/bumi.jpg\"></div>"}
{"ticker":"BUMI","title":"Gempa Bumi Guncang Jakarta","source":"KOMPAS","url":"https://www.kompas.com/read/gempa"}
not json

{"ticker":"TOOLONG","title":"x","source":"cnbc","url":"https://www.cnbcindonesia.com/x"}
`

func TestReadBatch(t *testing.T) {
	batch, bad, err := readBatch(strings.NewReader(sampleInput), providers.DefaultRegistry(), logger.NopLogger{})
	require.NoError(t, err)

	assert.Equal(t, 1, bad)
	require.Len(t, batch, 3)
	assert.Equal(t, domain.SourceKompas, batch[1].Source)

	require.Len(t, batch[0].CandidateImages, 1)
	assert.Equal(t, "https://foto.kontan.co.id/bumi.jpg", batch[0].CandidateImages[0].Attrs["data-src"])
}

func TestReadBatch_OversizedLineIsSkipped(t *testing.T) {
	good := `{"ticker":"TLKM","title":"TLKM Laba Naik","source":"cnbc","url":"https://www.cnbcindonesia.com/market/tlkm"}`
	huge := `{"ticker":"TLKM","title":"` + strings.Repeat("x", maxLineBytes) + `","source":"cnbc","url":"https://x/y"}`

	batch, bad, err := readBatch(strings.NewReader(good+"\n"+huge+"\n"+good), providers.DefaultRegistry(), logger.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, 1, bad)
	require.Len(t, batch, 2)
	assert.Equal(t, "TLKM Laba Naik", batch[1].Title)

	batch, bad, err = readBatch(strings.NewReader(good+"\r\n"+huge), providers.DefaultRegistry(), logger.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, 1, bad)
	assert.Len(t, batch, 1)
}

func TestRunIngest_BoltEndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "batch.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(sampleInput), 0o600))

	cfg := &config.Config{
		Log:    config.LogConfig{Level: "error", Format: "json"},
		Store:  config.StoreConfig{Driver: config.StoreDriverBolt, BoltPath: filepath.Join(dir, "news.db")},
		Ingest: config.IngestConfig{Timezone: "Asia/Jakarta"},
	}

	var out bytes.Buffer
	require.NoError(t, runIngest(context.Background(), cfg, logger.NopLogger{}, input, nil, &out))
	assert.Contains(t, out.String(), "inserted=1 merged=0 noise=1 duplicate=0 malformed=1 undecodable=1")

	out.Reset()
	require.NoError(t, runIngest(context.Background(), cfg, logger.NopLogger{}, "-", strings.NewReader(sampleInput), &out))
	assert.Contains(t, out.String(), "inserted=0 merged=0 noise=1 duplicate=1")
}

func TestClassifyCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  bolt_path: "+filepath.Join(dir, "x.db")+"\n"), 0o600))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "classify", "--ticker", "bumi", "--title", "Gempa Bumi Guncang Jakarta"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "decision: reject")
	assert.Contains(t, out.String(), "negative: gempa")
}

func TestSourcesCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"sources", "--symbol", "GOTO"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "https://www.kontan.co.id/tag/goto")
	assert.Equal(t, len(domain.Sources), strings.Count(out.String(), "\n"))
}
