// Package pipeline runs the per-organization contact discovery flow:
// resolve domain, find people, crawl, generate and rank candidates,
// persist the outcome.
package pipeline

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/crawler"
	"github.com/sells-group/outreach-cli/internal/discovery"
	"github.com/sells-group/outreach-cli/internal/extract"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/pattern"
	"github.com/sells-group/outreach-cli/internal/scorer"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/apollo"
)

// Verifier checks deliverability, satisfied by pkg/apollo. Nil
// disables verification.
type Verifier interface {
	VerifyEmail(ctx context.Context, email string) (apollo.Verdict, error)
}

// how many top-ranked candidates get a verifier call per organization
const verifyTopN = 3

type Processor struct {
	discovery     *discovery.Service
	crawler       *crawler.Crawler
	scorer        *scorer.Scorer
	verifier      Verifier
	store         store.Store
	skipProcessed bool
	log           *zap.Logger
}

func NewProcessor(d *discovery.Service, c *crawler.Crawler, s *scorer.Scorer, v Verifier, st store.Store) *Processor {
	return &Processor{
		discovery: d,
		crawler:   c,
		scorer:    s,
		verifier:  v,
		store:     st,
		log:       zap.L().Named("pipeline"),
	}
}

// SkipProcessed makes Process short-circuit organizations that already
// have a persisted result from an earlier run.
func (p *Processor) SkipProcessed(skip bool) {
	p.skipProcessed = skip
}

// Process runs one organization end to end. It always returns a
// result; failures become StatusError rows so one bad organization
// never takes down a batch. The result is persisted before returning.
func (p *Processor) Process(ctx context.Context, org model.Organization) *model.OutreachResult {
	res := p.process(ctx, org)
	if err := p.store.SaveResult(ctx, res); err != nil {
		p.log.Error("failed to persist result",
			zap.String("company", org.Name), zap.Error(err))
	}
	return res
}

func (p *Processor) process(ctx context.Context, org model.Organization) *model.OutreachResult {
	res := &model.OutreachResult{Org: org}

	if strings.TrimSpace(org.Name) == "" && model.RegistrableDomain(org.Domain) == "" {
		res.Status = model.StatusError
		res.Reason = "organization has neither a name nor a domain"
		return res
	}

	if p.skipProcessed {
		done, err := p.store.WasProcessed(ctx, org)
		if err != nil {
			p.log.Warn("processed-organization check failed",
				zap.String("company", org.Name), zap.Error(err))
		}
		if done {
			res.Status = model.StatusSkippedDuplicate
			res.Reason = "organization already processed in an earlier run"
			return res
		}
	}

	domain, err := p.discovery.ResolveDomain(ctx, org)
	if err != nil {
		if errors.Is(err, model.ErrInvalidInput) {
			res.Status = model.StatusError
			res.Reason = "domain resolution failed: " + err.Error()
			return res
		}
		// provider failure after bounded retries degrades to no results
		p.log.Warn("domain resolution degraded to no results",
			zap.String("company", org.Name), zap.Error(err))
		res.Status = model.StatusNoDomainResolved
		res.Reason = "search provider unavailable: " + err.Error()
		return res
	}
	if domain == "" {
		res.Status = model.StatusNoDomainResolved
		res.Reason = "no plausible domain in search results"
		return res
	}
	res.Org.Domain = domain

	contacts, observed, err := p.discovery.FindContacts(ctx, org, domain)
	if err != nil {
		// domain is known; keep going with the crawl alone
		p.log.Warn("contact search failed",
			zap.String("company", org.Name), zap.Error(err))
	}

	crawled, report, err := p.crawler.Crawl(ctx, discovery.SeedURLs(domain), domain)
	if err != nil {
		res.Status = model.StatusError
		res.Reason = "crawl aborted: " + err.Error()
		return res
	}
	res.Pages = report.PagesFetched
	p.log.Debug("crawl finished",
		zap.String("company", org.Name),
		zap.String("stop_reason", string(report.StopReason)),
		zap.Int("pages", report.PagesFetched),
		zap.Int("emails", len(crawled)),
	)

	candidates := p.buildCandidates(org, domain, contacts, observed, crawled)
	res.Candidates = len(candidates)
	if len(candidates) == 0 {
		res.Status = model.StatusNoContactFound
		res.Reason = "no addresses observed or generated"
		return res
	}

	ranked := p.scorer.Rank(candidates)
	ranked = p.verifyTop(ctx, ranked)
	if len(ranked) == 0 {
		res.Status = model.StatusNoContactFound
		res.Reason = "every candidate failed verification"
		return res
	}

	best := ranked[0]
	already, err := p.store.WasSent(ctx, res.Org.Key(), best.Address)
	if err != nil {
		p.log.Warn("sent-log check failed", zap.Error(err))
	}
	if already {
		res.Status = model.StatusSkippedDuplicate
		res.Email = best.Address
		res.Contact = best.Contact
		res.Reason = "best address already contacted"
		return res
	}

	res.Status = model.StatusFound
	res.Email = best.Address
	res.Contact = best.Contact
	res.Score = best.Score
	res.Confidence = scorer.Confidence(best.Score)
	return res
}

// buildCandidates merges observed addresses from search snippets and
// crawled pages with pattern-generated addresses for each known
// contact. Observed entries win address collisions.
func (p *Processor) buildCandidates(org model.Organization, domain string, contacts []model.Contact, observed, crawled []extract.Found) []model.EmailCandidate {
	seen := map[string]bool{}
	var out []model.EmailCandidate

	addFound := func(f extract.Found) {
		if !model.SameRegistrableDomain("mailto:"+f.Address, domain) {
			return
		}
		if seen[f.Address] {
			return
		}
		seen[f.Address] = true
		out = append(out, model.EmailCandidate{
			Address:   f.Address,
			Observed:  true,
			Context:   f.Context,
			SourceURL: f.SourceURL,
			Contact:   matchContact(f.Address, contacts),
		})
	}
	for _, f := range observed {
		addFound(f)
	}
	for _, f := range crawled {
		addFound(f)
	}

	for i := range contacts {
		contact := contacts[i]
		gen, err := pattern.Generate(contact.FullName(), domain)
		if err != nil {
			p.log.Debug("pattern generation skipped",
				zap.String("contact", contact.FullName()), zap.Error(err))
			continue
		}
		for _, g := range gen {
			if seen[g.Address] {
				continue
			}
			seen[g.Address] = true
			out = append(out, model.EmailCandidate{
				Address:      g.Address,
				Pattern:      g.Pattern,
				PatternIndex: g.Index,
				Contact:      &contact,
			})
		}
	}
	return out
}

// matchContact links an observed address back to a found person when
// the local part contains their first or last name.
func matchContact(address string, contacts []model.Contact) *model.Contact {
	local, _, _ := strings.Cut(strings.ToLower(address), "@")
	for i := range contacts {
		first := strings.ToLower(contacts[i].FirstName)
		last := strings.ToLower(contacts[i].LastName)
		if (first != "" && strings.Contains(local, first)) ||
			(last != "" && strings.Contains(local, last)) {
			return &contacts[i]
		}
	}
	return nil
}

// verifyTop runs the verifier over the leading candidates and
// re-ranks. Valid verdicts pin an address to the top, invalid ones
// remove it, unknown (including verifier errors) changes nothing.
func (p *Processor) verifyTop(ctx context.Context, ranked []model.EmailCandidate) []model.EmailCandidate {
	if p.verifier == nil || len(ranked) == 0 {
		return ranked
	}
	n := verifyTopN
	if n > len(ranked) {
		n = len(ranked)
	}
	changed := false
	for i := 0; i < n; i++ {
		verdict, err := p.verifier.VerifyEmail(ctx, ranked[i].Address)
		if err != nil {
			p.log.Debug("verification failed",
				zap.String("address", ranked[i].Address), zap.Error(err))
			continue
		}
		switch verdict {
		case apollo.VerdictValid:
			ranked[i].Verification = model.VerifyValid
			changed = true
		case apollo.VerdictInvalid:
			ranked[i].Verification = model.VerifyInvalid
			changed = true
		default:
			ranked[i].Verification = model.VerifyUnknown
		}
	}
	if !changed {
		return ranked
	}
	return p.scorer.Rank(ranked)
}
