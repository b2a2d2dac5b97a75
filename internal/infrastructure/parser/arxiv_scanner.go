package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/scanner"
)

const (
	defaultArxivBaseURL = "https://arxiv.org"
	newSubmissionsTitle = "New submissions for"
)

// ArxivScanner reads the "new submissions" listing of an arXiv archive.
type ArxivScanner struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

var _ scanner.Scanner = (*ArxivScanner)(nil)

// NewArxivScanner wires an HTTP client; baseURL defaults to https://arxiv.org.
func NewArxivScanner(client *http.Client, baseURL string, logger *slog.Logger) *ArxivScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultArxivBaseURL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ArxivScanner{client: client, baseURL: strings.TrimSuffix(baseURL, "/"), logger: logger}
}

// Name identifies the strategy inside the registry.
func (a *ArxivScanner) Name() string {
	return "arxiv"
}

// Scan downloads /list/<category>/new and parses every entry of its first
// listing block (new submissions, without cross-lists and replacements).
func (a *ArxivScanner) Scan(ctx context.Context, req scanner.Request) (scanner.Listing, error) {
	if req.Category == "" {
		return scanner.Listing{}, fmt.Errorf("no category provided")
	}

	pageURL, err := buildListURL(a.baseURL, req.Category)
	if err != nil {
		return scanner.Listing{}, err
	}

	doc, err := a.fetchDocument(ctx, pageURL)
	if err != nil {
		return scanner.Listing{}, fmt.Errorf("category %s: %w", req.Category, err)
	}

	listing := a.extractListing(doc)
	a.logger.Debug("scanned listing",
		"category", req.Category,
		"listing_date", listing.Date,
		"papers", len(listing.Papers),
	)
	return listing, nil
}

func (a *ArxivScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "ArxivDigest/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (a *ArxivScanner) extractListing(doc *goquery.Document) scanner.Listing {
	content := doc.Find("#content").First()
	if content.Length() == 0 {
		content = doc.Selection
	}

	var listing scanner.Listing
	content.Find("h3").EachWithBreak(func(_ int, h3 *goquery.Selection) bool {
		text := strings.TrimSpace(h3.Text())
		if strings.HasPrefix(text, newSubmissionsTitle) {
			listing.Date = strings.TrimSpace(strings.TrimPrefix(text, newSubmissionsTitle))
			return false
		}
		return true
	})

	content.Find("dl").First().Children().Filter("dt").Each(func(i int, dt *goquery.Selection) {
		dd := dt.NextFiltered("dd")
		paper, err := parseEntry(dt, dd, a.baseURL)
		if err != nil {
			a.logger.Debug("skip listing entry", "index", i, "error", err)
			return
		}
		listing.Papers = append(listing.Papers, paper)
	})

	return listing
}

func parseEntry(dt, dd *goquery.Selection, baseURL string) (domain.Paper, error) {
	number := ""
	for _, token := range strings.Fields(dt.Text()) {
		if strings.HasPrefix(strings.ToLower(token), "arxiv:") {
			number = token[len("arxiv:"):]
			break
		}
	}
	if number == "" {
		if href, ok := dt.Find(`a[href*="/abs/"]`).First().Attr("href"); ok {
			number = domain.ArxivIDFromURL(href)
		}
	}
	if number == "" {
		return domain.Paper{}, fmt.Errorf("entry without arXiv identifier")
	}

	title := collapse(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))
	if title == "" {
		return domain.Paper{}, fmt.Errorf("entry %s without title", number)
	}

	authors := collapse(dd.Find(".list-authors").First().Text())
	authors = strings.TrimSpace(strings.TrimPrefix(authors, "Authors:"))

	subjects := collapse(dd.Find(".list-subjects").First().Text())
	subjects = strings.TrimSpace(strings.TrimPrefix(subjects, "Subjects:"))

	abstract := dd.Find("p.mathjax").First().Text()
	abstract = strings.TrimSpace(strings.ReplaceAll(abstract, "\n", " "))

	return domain.Paper{
		ID:       number,
		Title:    title,
		Authors:  authors,
		Abstract: abstract,
		Subjects: domain.SplitSubjects(subjects),
		MainPage: baseURL + "/abs/" + number,
		PDF:      baseURL + "/pdf/" + number,
	}, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func buildListURL(base, category string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid arxiv base url %s: %w", base, err)
	}
	return parsed.JoinPath("list", category, "new").String(), nil
}
