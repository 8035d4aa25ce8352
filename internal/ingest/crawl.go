package ingest

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
	"golang.org/x/sync/errgroup"

	"github.com/koopa0/kiosk/internal/knowledge"
)

// minArticleLen filters navigation shells and stub pages out of the
// index: flattened article text shorter than this is skipped.
const minArticleLen = 80

// CrawlReport summarizes one crawl run.
type CrawlReport struct {
	PagesVisited    int
	ArticlesIndexed int
	ChunksUpserted  int
	Failures        int
	Duration        time.Duration
}

// page is one fetched HTML document awaiting extraction.
type page struct {
	url  *url.URL
	body []byte
}

// Crawl walks the help center starting at startURL and indexes every
// article page into the FAQ collection. Fetching happens first under
// colly's per-domain limits; extraction and embedding run afterwards in
// a bounded errgroup so a slow embedder never stalls the crawler.
func (ing *Ingestor) Crawl(ctx context.Context, startURL string) (CrawlReport, error) {
	start, err := url.Parse(startURL)
	if err != nil || start.Host == "" {
		return CrawlReport{}, fmt.Errorf("invalid start URL %q", startURL)
	}

	release, err := ing.lock()
	if err != nil {
		return CrawlReport{}, err
	}
	defer release()

	domains := ing.cfg.AllowedDomains
	if len(domains) == 0 {
		domains = []string{start.Hostname()}
	}

	began := time.Now()
	var (
		mu       sync.Mutex
		pages    []page
		failures int
	)

	c := colly.NewCollector(
		colly.AllowedDomains(domains...),
		colly.MaxDepth(ing.cfg.MaxDepth),
		colly.Async(true),
		colly.UserAgent("kiosk-ingest/1.0"),
	)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: ing.cfg.Parallelism,
		Delay:       ing.cfg.Delay,
	}); err != nil {
		return CrawlReport{}, fmt.Errorf("configuring crawl limits: %w", err)
	}

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		_ = e.Request.Visit(e.Attr("href"))
	})
	c.OnResponse(func(r *colly.Response) {
		if !strings.Contains(r.Headers.Get("Content-Type"), "text/html") {
			return
		}
		body := make([]byte, len(r.Body))
		copy(body, r.Body)
		mu.Lock()
		pages = append(pages, page{url: r.Request.URL, body: body})
		mu.Unlock()
	})
	c.OnError(func(r *colly.Response, err error) {
		ing.logger.Warn("fetch failed", "url", r.Request.URL.String(), "error", err)
		mu.Lock()
		failures++
		mu.Unlock()
	})

	if err := c.Visit(startURL); err != nil {
		return CrawlReport{}, fmt.Errorf("starting crawl at %s: %w", startURL, err)
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return CrawlReport{}, fmt.Errorf("crawl canceled: %w", err)
	}

	report := CrawlReport{PagesVisited: len(pages), Failures: failures}
	var (
		indexed int
		chunks  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.cfg.Parallelism)
	for _, p := range pages {
		g.Go(func() error {
			n, err := ing.indexPage(gctx, p)
			if err != nil {
				return err
			}
			if n > 0 {
				mu.Lock()
				indexed++
				chunks += n
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("indexing crawled pages: %w", err)
	}

	report.ArticlesIndexed = indexed
	report.ChunksUpserted = chunks
	report.Duration = time.Since(began)
	ing.logger.Info("crawl finished",
		"pages", report.PagesVisited,
		"articles", report.ArticlesIndexed,
		"chunks", report.ChunksUpserted,
		"failures", report.Failures,
		"duration", report.Duration)
	return report, nil
}

// indexPage extracts the article from one fetched page and upserts its
// chunks. Returns the number of chunks written; 0 means the page did
// not look like an article.
func (ing *Ingestor) indexPage(ctx context.Context, p page) (int, error) {
	text, category := ing.extract(p)
	if len(text) < minArticleLen {
		return 0, nil
	}

	sourceURL := p.url.String()
	// Re-indexing a page replaces its prior chunks wholesale, so edits
	// that shorten an article never leave stale tail chunks behind.
	if _, err := ing.store.DeleteBySource(ctx, sourceURL); err != nil {
		return 0, fmt.Errorf("clearing prior chunks for %s: %w", sourceURL, err)
	}

	parts := chunkText(text, maxChunkLen)
	for _, part := range parts {
		err := ing.store.Upsert(ctx, knowledge.Entry{
			Collection: knowledge.CollectionFAQ,
			Category:   category,
			Content:    part,
			SourceURL:  sourceURL,
		})
		if err != nil {
			return 0, fmt.Errorf("upserting chunk from %s: %w", sourceURL, err)
		}
	}
	return len(parts), nil
}

// extract pulls the article text and category out of a fetched page.
// Readability isolates the article body; when it cannot, the whole page
// is flattened instead. The category comes from a meta tag or the last
// breadcrumb link.
func (ing *Ingestor) extract(p page) (text, category string) {
	raw := string(p.body)

	article, err := readability.FromReader(bytes.NewReader(p.body), p.url)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		if flat, ferr := flattenHTML(article.Content); ferr == nil {
			text = flat
		}
	}
	if len(text) < minArticleLen {
		if flat, ferr := flattenHTML(raw); ferr == nil {
			text = flat
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return text, ""
	}
	if meta, ok := doc.Find(`meta[name="category"]`).Attr("content"); ok {
		return text, strings.TrimSpace(meta)
	}
	category = strings.TrimSpace(doc.Find("nav.breadcrumbs a, .breadcrumb a").Last().Text())
	return text, category
}
