package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Adda-Baaj/berita-emiten/internal/crawler"
	"github.com/Adda-Baaj/berita-emiten/internal/domain"
	"github.com/Adda-Baaj/berita-emiten/internal/logger"
	"github.com/Adda-Baaj/berita-emiten/pkg/providers"
)

const maxLineBytes = 4 << 20

// inputRecord is one JSON line written by the scraping layer.
// ImageHTML carries the article card markup when the scraper did not extract candidates itself.
type inputRecord struct {
	domain.RawArticle
	ImageHTML string `json:"image_html,omitempty"`
}

// readBatch decodes JSON lines. Undecodable or oversized lines are logged and counted, never fatal.
func readBatch(r io.Reader, reg *providers.Registry, log logger.Logger) ([]domain.RawArticle, int, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	var (
		out  []domain.RawArticle
		bad  int
		line int
	)
	for {
		raw, tooLong, readErr := readLine(br, maxLineBytes)
		if readErr != nil && readErr != io.EOF {
			return out, bad, fmt.Errorf("read input: %w", readErr)
		}
		if len(raw) > 0 || tooLong || readErr == nil {
			line++
		}

		switch {
		case tooLong:
			bad++
			log.WarnObj("skipping oversized input line", "input_line_too_long", map[string]any{
				"line":      line,
				"max_bytes": maxLineBytes,
			})
		default:
			if art, ok := decodeLine(raw, line, reg, log); ok {
				out = append(out, art)
			} else if len(bytes.TrimSpace(raw)) > 0 {
				bad++
			}
		}

		if readErr == io.EOF {
			return out, bad, nil
		}
	}
}

// readLine returns the next line without its terminator. A line longer than limit is
// consumed up to its end and reported as tooLong with no content.
func readLine(br *bufio.Reader, limit int) ([]byte, bool, error) {
	var (
		line    []byte
		tooLong bool
	)
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > limit+1 {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		switch err {
		case bufio.ErrBufferFull:
			continue
		case nil:
			return bytes.TrimRight(line, "\r\n"), tooLong, nil
		default:
			return bytes.TrimRight(line, "\r\n"), tooLong, err
		}
	}
}

// decodeLine turns one JSON line into a RawArticle. Blank lines and bad JSON yield ok=false.
func decodeLine(raw []byte, line int, reg *providers.Registry, log logger.Logger) (domain.RawArticle, bool) {
	text := bytes.TrimSpace(raw)
	if len(text) == 0 {
		return domain.RawArticle{}, false
	}

	var rec inputRecord
	if err := json.Unmarshal(text, &rec); err != nil {
		log.WarnObj("skipping undecodable input line", "input_decode_error", map[string]any{
			"line":  line,
			"error": err.Error(),
		})
		return domain.RawArticle{}, false
	}

	art := rec.RawArticle
	art.Source = domain.Source(strings.ToLower(strings.TrimSpace(string(art.Source))))
	if rec.ImageHTML != "" {
		selector := ""
		if p, ok := reg.Lookup(art.Source); ok {
			selector = p.ImageSelector
		}
		candidates, err := crawler.CandidatesFromHTML(rec.ImageHTML, selector)
		if err != nil {
			log.WarnObj("image html unreadable", "input_image_html_error", map[string]any{
				"line":  line,
				"error": err.Error(),
			})
		}
		art.CandidateImages = append(art.CandidateImages, candidates...)
	}
	return art, true
}
