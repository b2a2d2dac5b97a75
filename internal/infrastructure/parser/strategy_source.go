package parser

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
	"ArxivDigest/internal/scanner"
)

// cacheRecord is one line of a listing cache file.
type cacheRecord struct {
	MainPage string `json:"main_page"`
	PDF      string `json:"pdf"`
	Title    string `json:"title"`
	Authors  string `json:"authors"`
	Subjects string `json:"subjects"`
	Abstract string `json:"abstract"`
}

// StrategySource implements ports.PaperSource with a registered scanner and a
// per-category, per-day JSONL cache on disk. A cached listing is never fetched again.
type StrategySource struct {
	registry *scanner.Registry
	scanner  string
	cacheDir string
	logger   *slog.Logger
}

var _ ports.PaperSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with the cache directory.
func NewStrategySource(reg *scanner.Registry, scannerName, cacheDir string, log *slog.Logger) *StrategySource {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &StrategySource{
		registry: reg,
		scanner:  scannerName,
		cacheDir: cacheDir,
		logger:   log,
	}
}

// CachePath is the listing cache file for a category and day,
// e.g. data/cs_Wed, 10 May 23.jsonl.
func (s *StrategySource) CachePath(category string, day time.Time) string {
	return filepath.Join(s.cacheDir, fmt.Sprintf("%s_%s.jsonl", category, day.Format(domain.ListingDateLayout)))
}

// FetchPapers returns the cached listing or scans and caches it.
func (s *StrategySource) FetchPapers(ctx context.Context, category string, day time.Time) ([]domain.Paper, error) {
	path := s.CachePath(category, day)

	papers, err := readCache(path)
	if err == nil {
		s.debug("listing cache hit", "category", category, "path", path, "papers", len(papers))
		return papers, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.FetchError{Category: category, Err: err}
	}

	if s.registry == nil {
		return nil, &domain.FetchError{Category: category, Err: fmt.Errorf("scanner registry is not configured")}
	}
	strategy, err := s.registry.Resolve(s.scanner)
	if err != nil {
		return nil, &domain.FetchError{Category: category, Err: err}
	}

	listing, err := strategy.Scan(ctx, scanner.Request{Category: category, Day: day})
	if err != nil {
		return nil, &domain.FetchError{Category: category, Err: err}
	}

	want := day.Format(domain.ListingDateLayout)
	if listing.Date != "" && listing.Date != want {
		s.logger.Warn("listing date differs from requested day",
			"category", category, "listing_date", listing.Date, "day", want)
	}

	if err := writeCache(path, listing.Papers); err != nil {
		s.logger.Warn("write listing cache", "category", category, "path", path, "error", err)
	}

	s.debug("listing fetched", "category", category, "papers", len(listing.Papers))
	return listing.Papers, nil
}

func readCache(path string) ([]domain.Paper, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var papers []domain.Paper
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; sc.Scan(); line++ {
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var rec cacheRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		papers = append(papers, rec.toPaper())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return papers, nil
}

func writeCache(path string, papers []domain.Paper) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".listing-*.jsonl")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, paper := range papers {
		if err := enc.Encode(fromPaper(paper)); err != nil {
			tmp.Close()
			return fmt.Errorf("encode paper %s: %w", paper.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func (r cacheRecord) toPaper() domain.Paper {
	return domain.Paper{
		ID:       domain.ArxivIDFromURL(r.MainPage),
		Title:    r.Title,
		Authors:  r.Authors,
		Abstract: r.Abstract,
		Subjects: domain.SplitSubjects(r.Subjects),
		MainPage: r.MainPage,
		PDF:      r.PDF,
	}
}

func fromPaper(p domain.Paper) cacheRecord {
	return cacheRecord{
		MainPage: p.MainPage,
		PDF:      p.PDF,
		Title:    p.Title,
		Authors:  p.Authors,
		Subjects: strings.Join(p.Subjects, "; "),
		Abstract: p.Abstract,
	}
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
