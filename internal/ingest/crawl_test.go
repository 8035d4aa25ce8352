package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/kiosk/internal/knowledge"
	"github.com/koopa0/kiosk/internal/log"
)

const articleBody = `
<article>
<h1>%TITLE%</h1>
<p>Standard shipping takes three to five business days within the
continental United States. Express options are shown at checkout and
depend on the destination address. Orders placed before noon ship the
same day; later orders ship the next business day.</p>
<p>Tracking numbers are emailed as soon as the carrier scans the
package, which can take up to twenty-four hours after the shipping
confirmation.</p>
</article>`

func helpCenter(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>
			<a href="/articles/shipping">Shipping</a>
			<a href="/articles/returns">Returns</a>
		</body></html>`))
	})
	article := func(title, category string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			page := `<html><head><title>` + title + `</title>
				<meta name="category" content="` + category + `"></head><body>` +
				strings.ReplaceAll(articleBody, "%TITLE%", title) +
				`</body></html>`
			_, _ = w.Write([]byte(page))
		}
	}
	mux.Handle("/articles/shipping", article("Shipping times", "Shipping"))
	mux.Handle("/articles/returns", article("Return policy", "Returns"))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func crawlConfig(t *testing.T, srv *httptest.Server) Config {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return Config{
		AllowedDomains: []string{u.Hostname(), u.Host},
		Parallelism:    2,
		Delay:          time.Millisecond,
		MaxDepth:       3,
		LockPath:       filepath.Join(t.TempDir(), "ingest.lock"),
	}
}

func TestCrawl(t *testing.T) {
	t.Parallel()
	srv := helpCenter(t)
	store := &fakeStore{}
	ing, err := New(store, crawlConfig(t, srv), log.NewNop())
	require.NoError(t, err)

	report, err := ing.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, 3, report.PagesVisited)
	assert.Equal(t, 2, report.ArticlesIndexed, "the link index page is too thin to index")
	assert.Zero(t, report.Failures)

	entries := store.snapshot()
	require.NotEmpty(t, entries)
	categories := make(map[string]bool)
	for _, e := range entries {
		assert.Equal(t, knowledge.CollectionFAQ, e.Collection)
		assert.Contains(t, e.SourceURL, srv.URL)
		categories[e.Category] = true
	}
	assert.True(t, categories["Shipping"], "category comes from the meta tag")
	assert.True(t, categories["Returns"])

	var shippingText string
	for _, e := range entries {
		if e.Category == "Shipping" {
			shippingText += e.Content
		}
	}
	assert.Contains(t, shippingText, "three to five business days")
}

func TestCrawl_ReindexReplacesPriorChunks(t *testing.T) {
	t.Parallel()
	srv := helpCenter(t)
	store := &fakeStore{}
	ing, err := New(store, crawlConfig(t, srv), log.NewNop())
	require.NoError(t, err)

	_, err = ing.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Contains(t, store.deleted, srv.URL+"/articles/shipping",
		"indexing clears the page's prior chunks first")
}

func TestCrawl_InvalidStartURL(t *testing.T) {
	t.Parallel()
	ing, err := New(&fakeStore{}, Config{
		LockPath: filepath.Join(t.TempDir(), "ingest.lock"),
	}, log.NewNop())
	require.NoError(t, err)

	_, err = ing.Crawl(context.Background(), "not a url")
	require.Error(t, err)
}

func TestCrawl_CountsFetchFailures(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="/missing">gone</a></body></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := &fakeStore{}
	ing, err := New(store, crawlConfig(t, srv), log.NewNop())
	require.NoError(t, err)

	report, err := ing.Crawl(context.Background(), srv.URL)
	require.NoError(t, err, "a failed page does not fail the run")
	assert.Equal(t, 1, report.Failures)
	assert.Zero(t, report.ArticlesIndexed)
}
