package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/crawler"
	"github.com/sells-group/outreach-cli/internal/discovery"
	"github.com/sells-group/outreach-cli/internal/fetcher"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/scorer"
	"github.com/sells-group/outreach-cli/pkg/apollo"
)

type fakeSearch struct {
	results map[string][]discovery.SearchResult
	err     error
	calls   atomic.Int64
}

func (f *fakeSearch) Search(_ context.Context, query string, _ int) ([]discovery.SearchResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

type fakePages struct {
	pages map[string]string
}

func (f *fakePages) Fetch(_ context.Context, url string) (*fetcher.Page, error) {
	body, ok := f.pages[url]
	if !ok {
		return nil, eris.Errorf("fetching %s: status 404", url)
	}
	return &fetcher.Page{URL: url, FinalURL: url, Body: []byte(body), ContentType: "text/html"}, nil
}

type fakeVerifier struct {
	verdicts map[string]apollo.Verdict
}

func (f *fakeVerifier) VerifyEmail(_ context.Context, email string) (apollo.Verdict, error) {
	if v, ok := f.verdicts[email]; ok {
		return v, nil
	}
	return apollo.VerdictUnknown, nil
}

// memStore keeps results and the sent log in memory for tests.
type memStore struct {
	mu      sync.Mutex
	results []model.OutreachResult
	sent    map[string]bool
}

func newMemStore() *memStore { return &memStore{sent: map[string]bool{}} }

func (m *memStore) Init(context.Context) error { return nil }
func (m *memStore) SaveResult(_ context.Context, res *model.OutreachResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, *res)
	return nil
}
func (m *memStore) ListResults(context.Context, int) ([]model.OutreachResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.OutreachResult(nil), m.results...), nil
}
func (m *memStore) WasProcessed(_ context.Context, org model.Organization) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, res := range m.results {
		if res.Org.Key() == org.Key() {
			return true, nil
		}
	}
	return false, nil
}
func (m *memStore) RecordSent(_ context.Context, rec model.SentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[rec.OrgKey+"|"+rec.Address] = true
	return nil
}
func (m *memStore) WasSent(_ context.Context, orgKey, address string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[orgKey+"|"+address], nil
}
func (m *memStore) SentCountSince(context.Context, time.Time) (int, error) { return 0, nil }
func (m *memStore) Close() error                                           { return nil }

func contactQuery(name string) string {
	return fmt.Sprintf(`%q recruiter OR "talent acquisition" email`, name)
}

func resolveQuery(name string) string {
	return fmt.Sprintf("%q official website", name)
}

func newTestProcessor(search discovery.SearchProvider, pages map[string]string, verifier Verifier, st *memStore) *Processor {
	d := discovery.New(search,
		resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		resilience.RetryConfig{MaxAttempts: 1})
	c := crawler.New(&fakePages{pages: pages}, crawler.Config{MaxPages: 10, MaxFailures: 10})
	return NewProcessor(d, c, scorer.New(scorer.DefaultWeights()), verifier, st)
}

func stripeSearch() *fakeSearch {
	return &fakeSearch{results: map[string][]discovery.SearchResult{
		contactQuery("Stripe"): {
			{
				Title:   "Amy Salazar - Technical Recruiter at Stripe | LinkedIn",
				URL:     "https://linkedin.com/in/amysalazar",
				Snippet: "Technical recruiter at Stripe.",
			},
		},
	}}
}

func TestProcessFindsRecruiterEmail(t *testing.T) {
	st := newMemStore()
	pages := map[string]string{
		"https://stripe.com":          `<html><a href="/careers">Careers</a></html>`,
		"https://stripe.com/careers":  `<html>We are hiring! Questions about recruiting: <a href="mailto:recruiting@stripe.com">email our talent team</a></html>`,
	}
	p := newTestProcessor(stripeSearch(), pages, nil, st)

	res := p.Process(context.Background(), model.Organization{Name: "Stripe", Domain: "stripe.com"})
	require.Equal(t, model.StatusFound, res.Status)
	assert.Equal(t, "recruiting@stripe.com", res.Email) // observed beats generated
	assert.Greater(t, res.Score, 7.0)
	assert.Greater(t, res.Confidence, 0.5)
	assert.Greater(t, res.Candidates, 8) // 1 observed + 8 patterns for Amy
	assert.Greater(t, res.Pages, 0)

	// persisted
	saved, err := st.ListResults(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, model.StatusFound, saved[0].Status)
}

func TestProcessGeneratedFallback(t *testing.T) {
	// no observed addresses anywhere; patterns from the found
	// recruiter are the only candidates
	st := newMemStore()
	pages := map[string]string{
		"https://stripe.com": `<html>nothing useful</html>`,
	}
	p := newTestProcessor(stripeSearch(), pages, nil, st)

	res := p.Process(context.Background(), model.Organization{Name: "Stripe", Domain: "stripe.com"})
	require.Equal(t, model.StatusFound, res.Status)
	assert.Equal(t, "amy.salazar@stripe.com", res.Email) // first convention wins
	require.NotNil(t, res.Contact)
	assert.Equal(t, "Amy Salazar", res.Contact.FullName())
}

func TestProcessVerificationOverride(t *testing.T) {
	st := newMemStore()
	pages := map[string]string{
		"https://stripe.com": `<html>nothing useful</html>`,
	}
	verifier := &fakeVerifier{verdicts: map[string]apollo.Verdict{
		"amy.salazar@stripe.com": apollo.VerdictInvalid,
		"amysalazar@stripe.com":  apollo.VerdictValid,
	}}
	p := newTestProcessor(stripeSearch(), pages, verifier, st)

	res := p.Process(context.Background(), model.Organization{Name: "Stripe", Domain: "stripe.com"})
	require.Equal(t, model.StatusFound, res.Status)
	// top candidate failed verification and was dropped; the verified
	// second convention takes its place
	assert.Equal(t, "amysalazar@stripe.com", res.Email)
}

func TestProcessNoDomainResolved(t *testing.T) {
	st := newMemStore()
	search := &fakeSearch{results: map[string][]discovery.SearchResult{
		resolveQuery("Ghost Co"): {
			{URL: "https://linkedin.com/company/ghost"},
		},
	}}
	p := newTestProcessor(search, nil, nil, st)

	res := p.Process(context.Background(), model.Organization{Name: "Ghost Co"})
	assert.Equal(t, model.StatusNoDomainResolved, res.Status)
	assert.Empty(t, res.Email)
}

func TestProcessSearchOutageDegradesToNoDomain(t *testing.T) {
	st := newMemStore()
	search := &fakeSearch{err: eris.New("web search: status 429")}
	p := newTestProcessor(search, nil, nil, st)

	// provider down for the whole run: retries exhaust, row degrades
	// instead of erroring
	res := p.Process(context.Background(), model.Organization{Name: "Ghost Co"})
	assert.Equal(t, model.StatusNoDomainResolved, res.Status)
	assert.Contains(t, res.Reason, "search provider unavailable")
}

func TestProcessNoContactFound(t *testing.T) {
	st := newMemStore()
	pages := map[string]string{
		"https://acme.com": `<html>just marketing copy</html>`,
	}
	p := newTestProcessor(&fakeSearch{}, pages, nil, st)

	res := p.Process(context.Background(), model.Organization{Name: "Acme", Domain: "acme.com"})
	assert.Equal(t, model.StatusNoContactFound, res.Status)
}

func TestProcessSkipsAlreadyContacted(t *testing.T) {
	st := newMemStore()
	st.sent["stripe.com|amy.salazar@stripe.com"] = true
	pages := map[string]string{
		"https://stripe.com": `<html>nothing useful</html>`,
	}
	p := newTestProcessor(stripeSearch(), pages, nil, st)

	res := p.Process(context.Background(), model.Organization{Name: "Stripe", Domain: "stripe.com"})
	assert.Equal(t, model.StatusSkippedDuplicate, res.Status)
	assert.Equal(t, "amy.salazar@stripe.com", res.Email)
}

func TestProcessSkipsAlreadyProcessed(t *testing.T) {
	st := newMemStore()
	pages := map[string]string{
		"https://stripe.com": `<html>contact recruiting@stripe.com</html>`,
	}
	search := stripeSearch()
	p := newTestProcessor(search, pages, nil, st)
	p.SkipProcessed(true)

	org := model.Organization{Name: "Stripe", Domain: "stripe.com"}
	first := p.Process(context.Background(), org)
	require.Equal(t, model.StatusFound, first.Status)

	calls := search.calls.Load()
	second := p.Process(context.Background(), org)
	assert.Equal(t, model.StatusSkippedDuplicate, second.Status)
	// the rerun never reached the search provider
	assert.Equal(t, calls, search.calls.Load())
}

func TestProcessInvalidInput(t *testing.T) {
	p := newTestProcessor(&fakeSearch{}, nil, nil, newMemStore())
	res := p.Process(context.Background(), model.Organization{})
	assert.Equal(t, model.StatusError, res.Status)
	assert.Contains(t, res.Reason, "neither a name nor a domain")
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	st := newMemStore()
	pages := map[string]string{
		"https://stripe.com": `<html>contact recruiting@stripe.com</html>`,
	}
	p := newTestProcessor(stripeSearch(), pages, nil, st)

	orgs := []model.Organization{
		{Name: "Stripe", Domain: "stripe.com"},
		{}, // invalid row
		{Name: "Acme", Domain: "acme.com"}, // crawl finds nothing
	}
	results, sum := p.RunBatch(context.Background(), orgs, 2)

	require.Len(t, results, 3)
	assert.Equal(t, model.StatusFound, results[0].Status)
	assert.Equal(t, model.StatusError, results[1].Status)
	assert.Equal(t, model.StatusNoContactFound, results[2].Status)

	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Found)
	assert.Equal(t, 1, sum.Errors)
	assert.Equal(t, 1, sum.NoContactFound)
}

func TestReadOrganizations(t *testing.T) {
	in := strings.NewReader(`Company Name,Website,Notes
Stripe,stripe.com,payments
Acme Inc,,
,,
`)
	orgs, err := ReadOrganizations(in)
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	assert.Equal(t, model.Organization{Name: "Stripe", Domain: "stripe.com"}, orgs[0])
	assert.Equal(t, "Acme Inc", orgs[1].Name)
}

func TestReadOrganizationsMissingNameColumn(t *testing.T) {
	_, err := ReadOrganizations(strings.NewReader("foo,bar\n1,2\n"))
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestWriteResults(t *testing.T) {
	var sb strings.Builder
	err := WriteResults(&sb, []*model.OutreachResult{
		{
			Org:        model.Organization{Name: "Stripe", Domain: "stripe.com"},
			Contact:    &model.Contact{FirstName: "Amy", LastName: "Salazar", Title: "Recruiter"},
			Email:      "amy.salazar@stripe.com",
			Score:      12.5,
			Confidence: 0.9,
			Status:     model.StatusFound,
			Candidates: 9,
			Pages:      4,
		},
		nil,
		{Org: model.Organization{Name: "Ghost"}, Status: model.StatusNoDomainResolved, Reason: "no domain"},
	})
	require.NoError(t, err)

	out := sb.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3) // header + 2 rows, nil skipped
	assert.Contains(t, lines[0], "company_name")
	assert.Contains(t, lines[1], "amy.salazar@stripe.com")
	assert.Contains(t, lines[1], "recruiting") // label for score 12.5
	assert.Contains(t, lines[2], "no_domain_resolved")
}

func TestReadResultsRoundTrip(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, WriteResults(&sb, []*model.OutreachResult{
		{
			Org:     model.Organization{Name: "Stripe", Domain: "stripe.com"},
			Contact: &model.Contact{FirstName: "Amy", LastName: "Salazar", Title: "Recruiter"},
			Email:   "amy.salazar@stripe.com",
			Status:  model.StatusFound,
		},
	}))

	got, err := ReadResults(strings.NewReader(sb.String()))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.StatusFound, got[0].Status)
	assert.Equal(t, "amy.salazar@stripe.com", got[0].Email)
	require.NotNil(t, got[0].Contact)
	assert.Equal(t, "Amy", got[0].Contact.FirstName)
	assert.Equal(t, "Recruiter", got[0].Contact.Title)
}

func TestReadResultsMissingColumns(t *testing.T) {
	_, err := ReadResults(strings.NewReader("a,b\n1,2\n"))
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}