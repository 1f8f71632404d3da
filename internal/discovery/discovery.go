// Package discovery resolves a company's website domain and finds
// recruiting contacts through a web search provider.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/extract"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/resilience"
)

// SearchResult is one hit from the search provider.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// SearchProvider is the web search dependency, satisfied by
// pkg/brave.
type SearchProvider interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

// aggregator and social domains that outrank company sites in search
// but are never the company's own domain
var excludedDomains = map[string]bool{
	"linkedin.com": true, "facebook.com": true, "twitter.com": true,
	"x.com": true, "instagram.com": true, "youtube.com": true,
	"wikipedia.org": true, "glassdoor.com": true, "indeed.com": true,
	"crunchbase.com": true, "bloomberg.com": true, "yelp.com": true,
	"zoominfo.com": true, "apollo.io": true, "reddit.com": true,
	"google.com": true, "medium.com": true, "github.com": true,
}

const (
	searchCount   = 10
	rankWeightMax = 5 // first result's vote weight, decaying by rank
	nameMatchBonus = 5
)

type Service struct {
	provider SearchProvider
	breaker  *resilience.CircuitBreaker
	retry    resilience.RetryConfig
	log      *zap.Logger
}

func New(provider SearchProvider, breaker *resilience.CircuitBreaker, retry resilience.RetryConfig) *Service {
	return &Service{
		provider: provider,
		breaker:  breaker,
		retry:    retry,
		log:      zap.L().Named("discovery"),
	}
}

func (s *Service) search(ctx context.Context, query string) ([]SearchResult, error) {
	return resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) ([]SearchResult, error) {
		return resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]SearchResult, error) {
			return s.provider.Search(ctx, query, searchCount)
		})
	})
}

// ResolveDomain finds the company's registrable domain by voting over
// search results: earlier ranks carry more weight and a domain
// containing the company name gets a bonus. Returns "" with a nil
// error when no plausible domain appears; ties break on the
// lexically smaller domain so reruns agree.
func (s *Service) ResolveDomain(ctx context.Context, org model.Organization) (string, error) {
	if d := model.RegistrableDomain(org.Domain); d != "" {
		return d, nil
	}
	if strings.TrimSpace(org.Name) == "" {
		return "", eris.Wrap(model.ErrInvalidInput, "organization has no name or domain")
	}

	results, err := s.search(ctx, fmt.Sprintf("%q official website", org.Name))
	if err != nil {
		return "", eris.Wrapf(err, "resolving domain for %s", org.Name)
	}

	nameToken := compactName(org.Name)
	votes := map[string]int{}
	for i, r := range results {
		dom := model.RegistrableDomain(r.URL)
		if dom == "" || excludedDomains[dom] {
			continue
		}
		weight := rankWeightMax - i
		if weight < 1 {
			weight = 1
		}
		if nameToken != "" && strings.Contains(strings.ReplaceAll(dom, "-", ""), nameToken) {
			weight += nameMatchBonus
		}
		votes[dom] += weight
	}
	if len(votes) == 0 {
		return "", nil
	}

	domains := make([]string, 0, len(votes))
	for d := range votes {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool {
		if votes[domains[i]] != votes[domains[j]] {
			return votes[domains[i]] > votes[domains[j]]
		}
		return domains[i] < domains[j]
	})
	winner := domains[0]
	s.log.Debug("resolved domain",
		zap.String("company", org.Name),
		zap.String("domain", winner),
		zap.Int("votes", votes[winner]),
	)
	return winner, nil
}

// FindContacts searches for recruiters at the company. It returns the
// people parsed from result titles and any addresses on the company
// domain observed verbatim in snippets.
func (s *Service) FindContacts(ctx context.Context, org model.Organization, domain string) ([]model.Contact, []extract.Found, error) {
	query := fmt.Sprintf(`%q recruiter OR "talent acquisition" email`, org.Name)
	results, err := s.search(ctx, query)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "finding contacts for %s", org.Name)
	}

	var (
		contacts  []model.Contact
		observed  []extract.Found
		seenName  = map[string]bool{}
		seenEmail = map[string]bool{}
	)
	for _, r := range results {
		if c := extract.PersonFromTitle(r.Title, r.URL); c != nil {
			key := strings.ToLower(c.FullName())
			if !seenName[key] {
				seenName[key] = true
				contacts = append(contacts, *c)
			}
		}
		for _, f := range extract.FromText(r.Snippet, r.URL) {
			if !seenEmail[f.Address] && model.SameRegistrableDomain("mailto:"+f.Address, domain) {
				seenEmail[f.Address] = true
				observed = append(observed, f)
			}
		}
	}
	return contacts, observed, nil
}

// SeedURLs returns the crawl entry points for a resolved domain:
// the homepage plus the paths where contact addresses usually live.
func SeedURLs(domain string) []string {
	base := "https://" + domain
	return []string{
		base,
		base + "/careers",
		base + "/jobs",
		base + "/contact",
		base + "/about",
	}
}

// compactName lowercases the company name and strips spaces,
// punctuation, and legal suffixes for domain matching.
func compactName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	for len(fields) > 1 {
		switch strings.Trim(fields[len(fields)-1], ".,") {
		case "inc", "llc", "ltd", "corp", "co", "gmbh", "plc", "group":
			fields = fields[:len(fields)-1]
			continue
		}
		break
	}
	var b strings.Builder
	for _, f := range fields {
		for _, r := range f {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
