package crawler

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/quotes-crawler/internal/metrics"
)

// Config controls crawl behavior.
type Config struct {
	// AuthorConcurrency bounds parallel author page fetches within one
	// listing page. Values below 1 mean strictly sequential.
	AuthorConcurrency int
	// AuthorCacheSize enables a per-run cache of author pages keyed by URL.
	// Zero disables it and every quote fetches its author page again.
	AuthorCacheSize int
	// MaxPages stops pagination after this many listing pages. Zero means
	// no cap.
	MaxPages int
}

// Crawler walks the paginated listing and assembles normalized quote rows.
type Crawler struct {
	fetcher PageFetcher
	quotes  QuoteParser
	authors AuthorParser
	tags    *TagRegistry
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Crawler. The registry is owned by the crawler for the
// duration of each Crawl call and is reset when a crawl starts.
func New(
	fetcher PageFetcher,
	quotes QuoteParser,
	authors AuthorParser,
	tags *TagRegistry,
	cfg Config,
	logger *zap.Logger,
) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tags == nil {
		tags = NewTagRegistry()
	}
	if cfg.AuthorConcurrency < 1 {
		cfg.AuthorConcurrency = 1
	}
	return &Crawler{
		fetcher: fetcher,
		quotes:  quotes,
		authors: authors,
		tags:    tags,
		cfg:     cfg,
		logger:  logger,
	}
}

// PageURL builds the listing URL for page n under baseURL.
func PageURL(baseURL string, n int) string {
	return withTrailingSlash(baseURL) + fmt.Sprintf("page/%d/", n)
}

// Crawl fetches listing pages starting at 1 until a page has no quote blocks
// or a listing fetch fails. Both end the crawl without error and return what
// was collected. The only error is cancellation of ctx, checked between
// pages, which is returned together with the partial result.
func (c *Crawler) Crawl(ctx context.Context, baseURL string) (CrawlResult, error) {
	base := withTrailingSlash(baseURL)
	c.tags.Reset()
	cache := c.newAuthorCache()
	result := CrawlResult{Quotes: []QuoteRecord{}}

	for page := 1; c.cfg.MaxPages <= 0 || page <= c.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			result.Tags = c.tags.Mapping()
			return result, fmt.Errorf("crawl stopped before page %d: %w", page, err)
		}

		pageURL := PageURL(base, page)
		document, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			metrics.ObservePage(metrics.PageFetchError)
			if ctxErr := ctx.Err(); ctxErr != nil {
				result.Tags = c.tags.Mapping()
				return result, fmt.Errorf("crawl stopped at page %d: %w", page, ctxErr)
			}
			c.logger.Warn("listing fetch failed, stopping crawl",
				zap.Int("page", page),
				zap.String("url", pageURL),
				zap.Error(err),
			)
			break
		}

		raws, err := c.quotes.ParseQuotes(document, base)
		if err != nil {
			c.logger.Error("listing parse failed, stopping crawl", zap.Int("page", page), zap.Error(err))
			break
		}
		if len(raws) == 0 {
			metrics.ObservePage(metrics.PageEmpty)
			c.logger.Info("no quote blocks on page, end of pagination", zap.Int("page", page))
			break
		}
		metrics.ObservePage(metrics.PageOK)

		records := c.buildRecords(ctx, raws, cache)
		result.Quotes = append(result.Quotes, records...)
		result.Pages++
		c.logger.Debug("page crawled",
			zap.Int("page", page),
			zap.Int("quote_blocks", len(raws)),
			zap.Int("quotes_kept", len(records)),
		)
	}

	result.Tags = c.tags.Mapping()
	return result, nil
}

// buildRecords fetches author pages for one listing page and turns the raw
// blocks into QuoteRecords. Author fetches may overlap up to the configured
// concurrency; tag ids are assigned afterwards in block order so the output
// matches a sequential walk.
func (c *Crawler) buildRecords(ctx context.Context, raws []RawQuote, cache *lru.Cache[string, AuthorDetail]) []QuoteRecord {
	details := make([]*AuthorDetail, len(raws))

	var g errgroup.Group
	g.SetLimit(c.cfg.AuthorConcurrency)
	for i, raw := range raws {
		g.Go(func() error {
			detail, err := c.authorDetail(ctx, raw.AuthorURL, cache)
			if err != nil {
				c.logger.Warn("author fetch failed, skipping quote",
					zap.String("url", raw.AuthorURL),
					zap.String("author", raw.AuthorNameRaw),
					zap.Error(err),
				)
				return nil
			}
			details[i] = &detail
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	records := make([]QuoteRecord, 0, len(raws))
	for i, raw := range raws {
		if details[i] == nil {
			continue
		}
		records = append(records, c.newRecord(raw, *details[i]))
	}
	return records
}

func (c *Crawler) authorDetail(ctx context.Context, url string, cache *lru.Cache[string, AuthorDetail]) (AuthorDetail, error) {
	if cache != nil {
		if detail, ok := cache.Get(url); ok {
			metrics.ObserveAuthorFetch(metrics.AuthorCached)
			return detail, nil
		}
	}
	document, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		metrics.ObserveAuthorFetch(metrics.AuthorError)
		return AuthorDetail{}, err
	}
	metrics.ObserveAuthorFetch(metrics.AuthorOK)
	detail := c.authors.ParseAuthor(document)
	detail.Description = strings.TrimSpace(detail.Description)
	if cache != nil {
		cache.Add(url, detail)
	}
	return detail, nil
}

func (c *Crawler) newRecord(raw RawQuote, detail AuthorDetail) QuoteRecord {
	ids := make([]int, len(raw.TagLabels))
	labels := make([]string, len(raw.TagLabels))
	for i, label := range raw.TagLabels {
		ids[i] = c.tags.IDOf(label)
		labels[i] = label
	}
	return QuoteRecord{
		Text:               raw.Text,
		AuthorName:         raw.AuthorName,
		AuthorSurname:      raw.AuthorSurname,
		AuthorURL:          raw.AuthorURL,
		AuthorBornDate:     detail.BornDate,
		AuthorBornLocation: detail.BornLocation,
		AuthorDescription:  detail.Description,
		TagIDs:             ids,
		Tags:               labels,
	}
}

func (c *Crawler) newAuthorCache() *lru.Cache[string, AuthorDetail] {
	if c.cfg.AuthorCacheSize <= 0 {
		return nil
	}
	cache, err := lru.New[string, AuthorDetail](c.cfg.AuthorCacheSize)
	if err != nil {
		c.logger.Warn("author cache disabled", zap.Error(err))
		return nil
	}
	return cache
}

func withTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
