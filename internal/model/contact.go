package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrInvalidInput marks a malformed organization record or component input.
// Rows failing with this error are logged and skipped, never batch-fatal.
var ErrInvalidInput = eris.New("invalid input")

// ResultStatus is the terminal state of processing one organization.
type ResultStatus string

const (
	StatusFound            ResultStatus = "found"
	StatusNoContactFound   ResultStatus = "no_contact_found"
	StatusNoDomainResolved ResultStatus = "no_domain_resolved"
	StatusSkippedDuplicate ResultStatus = "skipped_duplicate"
	StatusError            ResultStatus = "error"
)

// ContactSource records where a contact candidate came from.
type ContactSource string

const (
	SourceSearchResult ContactSource = "search-result"
	SourceCrawledPage  ContactSource = "crawled-page"
)

// Organization is a single input row: a company name and an optional
// domain. The domain is resolved via search when absent and is immutable
// once resolved for a run.
type Organization struct {
	Name   string `json:"name" csv:"company_name"`
	Domain string `json:"domain,omitempty" csv:"company_domain"`
}

// Key returns the dedup identity for the organization: the normalized
// registrable domain when known, otherwise the normalized name.
func (o Organization) Key() string {
	if d := RegistrableDomain(o.Domain); d != "" {
		return d
	}
	return strings.ToLower(strings.Join(strings.Fields(o.Name), " "))
}

// Contact is a person discovered for an organization. Contacts are
// derived per run and only persisted when selected as the best result.
type Contact struct {
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	Title     string        `json:"title,omitempty"`
	Source    ContactSource `json:"source"`
	SourceURL string        `json:"source_url,omitempty"`
}

// FullName returns "First Last" (or just the first name for
// single-token contacts).
func (c Contact) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Verification is the verdict from an external email verifier.
type Verification string

const (
	VerifyValid   Verification = "valid"
	VerifyInvalid Verification = "invalid"
	VerifyUnknown Verification = "unknown"
)

// EmailCandidate is one possible address for a contact, before ranking.
// Observed candidates were seen verbatim in page or snippet text;
// generated ones were synthesized from a name pattern.
type EmailCandidate struct {
	Address      string       `json:"address"`
	Contact      *Contact     `json:"contact,omitempty"`
	Pattern      string       `json:"pattern,omitempty"`
	PatternIndex int          `json:"pattern_index"`
	Observed     bool         `json:"observed"`
	Context      string       `json:"context,omitempty"`
	SourceURL    string       `json:"source_url,omitempty"`
	Score        float64      `json:"score"`
	Verification Verification `json:"verification,omitempty"`
}

// SentRecord is the durable dedup gate: at most one active record per
// (organization key, address) pair.
type SentRecord struct {
	OrgKey  string    `json:"org_key"`
	Address string    `json:"address"`
	SentAt  time.Time `json:"sent_at"`
	Status  string    `json:"status"`
}

// CrawlStopReason explains why a crawl terminated. Both terminal states
// are non-error outcomes returned to the caller.
type CrawlStopReason string

const (
	CrawlCompleted  CrawlStopReason = "completed"   // frontier exhausted
	CrawlPageBudget CrawlStopReason = "page_budget" // max pages reached
	CrawlEarlyExit  CrawlStopReason = "early_exit"  // enough emails found
	CrawlAborted    CrawlStopReason = "aborted"     // failure budget exceeded
)

// CrawlReport summarizes one bounded crawl of an organization's domain.
// PagesFetched counts fetch attempts, failed ones included, so it never
// exceeds the page budget.
type CrawlReport struct {
	Visited      int             `json:"visited"`
	PagesFetched int             `json:"pages_fetched"`
	Failures     int             `json:"failures"`
	StopReason   CrawlStopReason `json:"stop_reason"`
}

// OutreachResult is the per-organization output row.
type OutreachResult struct {
	Org        Organization `json:"organization"`
	Contact    *Contact     `json:"contact,omitempty"`
	Email      string       `json:"email,omitempty"`
	Score      float64      `json:"score"`
	Confidence float64      `json:"confidence"`
	Status     ResultStatus `json:"status"`
	Candidates int          `json:"candidates"`
	Pages      int          `json:"pages"`
	Reason     string       `json:"reason,omitempty"`
}

// multi-part public suffixes where the registrable domain spans three
// labels (careers.stripe.co.uk -> stripe.co.uk)
var twoLevelSuffixes = map[string]bool{
	"co.uk": true, "org.uk": true, "ac.uk": true, "gov.uk": true,
	"com.au": true, "net.au": true, "org.au": true,
	"co.jp": true, "co.nz": true, "co.in": true, "com.br": true,
	"com.mx": true, "com.sg": true, "co.kr": true, "com.cn": true,
}

// RegistrableDomain reduces a URL, host, or bare domain to its
// registrable form: "https://jobs.acme.com/x" -> "acme.com". Returns ""
// when no plausible domain is present.
func RegistrableDomain(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	labels := strings.Split(s, ".")
	if len(labels) < 2 {
		return ""
	}
	for _, l := range labels {
		if l == "" {
			return ""
		}
	}
	if len(labels) >= 3 {
		suffix := labels[len(labels)-2] + "." + labels[len(labels)-1]
		if twoLevelSuffixes[suffix] {
			return strings.Join(labels[len(labels)-3:], ".")
		}
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// SameRegistrableDomain reports whether a URL or host belongs to the
// given target domain.
func SameRegistrableDomain(rawURL, target string) bool {
	d := RegistrableDomain(rawURL)
	return d != "" && d == RegistrableDomain(target)
}
