// Package crawler walks a company site breadth-first looking for
// contact email addresses, under hard page and failure budgets.
package crawler

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/extract"
	"github.com/sells-group/outreach-cli/internal/fetcher"
	"github.com/sells-group/outreach-cli/internal/model"
)

// Fetch is the page retrieval dependency, satisfied by
// fetcher.Fetcher.
type Fetch interface {
	Fetch(ctx context.Context, url string) (*fetcher.Page, error)
}

// agent token matched against robots.txt groups
const robotsAgent = "outreach-cli"

// link paths worth visiting before anything else
var priorityHints = []string{
	"career", "job", "recruit", "talent", "hiring",
	"contact", "about", "team", "people",
}

// Config bounds one crawl. Every limit is a hard ceiling; hitting one
// ends the crawl with a non-error report.
type Config struct {
	MaxPages    int `mapstructure:"max_pages"`
	MaxFailures int `mapstructure:"max_failures"`
	// EarlyExitEmails stops the crawl once this many distinct
	// addresses are in hand. 0 disables early exit.
	EarlyExitEmails int `mapstructure:"early_exit_emails"`
}

func DefaultConfig() Config {
	return Config{MaxPages: 20, MaxFailures: 5, EarlyExitEmails: 3}
}

type Crawler struct {
	fetch Fetch
	cfg   Config
	log   *zap.Logger
}

func New(fetch Fetch, cfg Config) *Crawler {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultConfig().MaxPages
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultConfig().MaxFailures
	}
	return &Crawler{fetch: fetch, cfg: cfg, log: zap.L().Named("crawler")}
}

// Crawl visits pages breadth-first from seeds, staying on the target's
// registrable domain, and returns every address found plus a report on
// why it stopped. Individual page failures are counted, not fatal; the
// crawl aborts only when the failure budget is spent or ctx ends.
func (c *Crawler) Crawl(ctx context.Context, seeds []string, domain string) ([]extract.Found, model.CrawlReport, error) {
	var (
		report  model.CrawlReport
		found   []extract.Found
		seen    = map[string]bool{}
		visited = map[string]bool{}
		robots  = map[string]*robotstxt.RobotsData{} // per-origin, nil means allow all
		high    []string                             // career-ish links, drained first
		low     []string
	)

	for _, s := range seeds {
		if model.SameRegistrableDomain(s, domain) {
			high = append(high, s)
		}
	}

	pop := func() (string, bool) {
		if len(high) > 0 {
			u := high[0]
			high = high[1:]
			return u, true
		}
		if len(low) > 0 {
			u := low[0]
			low = low[1:]
			return u, true
		}
		return "", false
	}

	for {
		if ctx.Err() != nil {
			report.StopReason = model.CrawlAborted
			return found, report, ctx.Err()
		}
		if report.PagesFetched >= c.cfg.MaxPages {
			report.StopReason = model.CrawlPageBudget
			return found, report, nil
		}
		if c.cfg.EarlyExitEmails > 0 && len(found) >= c.cfg.EarlyExitEmails {
			report.StopReason = model.CrawlEarlyExit
			return found, report, nil
		}

		raw, ok := pop()
		if !ok {
			report.StopReason = model.CrawlCompleted
			return found, report, nil
		}
		canon := canonicalize(raw)
		if canon == "" || visited[canon] {
			continue
		}
		visited[canon] = true
		report.Visited = len(visited)

		if !c.robotsAllowed(ctx, robots, raw) {
			c.log.Debug("blocked by robots.txt", zap.String("url", raw))
			continue
		}

		// every attempt spends page budget, failures included
		report.PagesFetched++
		page, err := c.fetch.Fetch(ctx, raw)
		if err != nil {
			report.Failures++
			c.log.Debug("page fetch failed", zap.String("url", raw), zap.Error(err))
			if report.Failures >= c.cfg.MaxFailures {
				report.StopReason = model.CrawlAborted
				return found, report, nil
			}
			continue
		}
		if !page.IsHTML() {
			continue
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
		if err != nil {
			report.Failures++
			continue
		}

		for _, f := range extract.FromHTML(doc, page.FinalURL) {
			if !seen[f.Address] {
				seen[f.Address] = true
				found = append(found, f)
			}
		}

		hi, lo := c.outlinks(doc, page.FinalURL, domain, visited)
		high = append(high, hi...)
		low = append(low, lo...)
	}
}

// robotsAllowed checks the origin's robots.txt, fetching and caching it
// on first contact. An absent or unreadable robots.txt allows
// everything.
func (c *Crawler) robotsAllowed(ctx context.Context, cache map[string]*robotstxt.RobotsData, raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	origin := u.Scheme + "://" + u.Host
	data, ok := cache[origin]
	if !ok {
		data = c.loadRobots(ctx, origin)
		cache[origin] = data
	}
	if data == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.TestAgent(path, robotsAgent)
}

func (c *Crawler) loadRobots(ctx context.Context, origin string) *robotstxt.RobotsData {
	page, err := c.fetch.Fetch(ctx, origin+"/robots.txt")
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromBytes(page.Body)
	if err != nil {
		return nil
	}
	return data
}

// outlinks collects same-domain links from the page, split into
// career-priority and everything else.
func (c *Crawler) outlinks(doc *goquery.Document, base, domain string, visited map[string]bool) (high, low []string) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, nil
	}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := baseURL.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		u := abs.String()
		if visited[canonicalize(u)] || !model.SameRegistrableDomain(u, domain) {
			return
		}
		if isPriority(abs.Path + " " + strings.ToLower(sel.Text())) {
			high = append(high, u)
		} else {
			low = append(low, u)
		}
	})
	return high, low
}

func isPriority(s string) bool {
	s = strings.ToLower(s)
	for _, hint := range priorityHints {
		if strings.Contains(s, hint) {
			return true
		}
	}
	return false
}

// canonicalize normalizes a URL for the visited set: lowercase host,
// no fragment, no trailing slash.
func canonicalize(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
