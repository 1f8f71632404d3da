package discovery

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/resilience"
)

type fakeProvider struct {
	results map[string][]SearchResult
	err     error
	queries []string
}

func (f *fakeProvider) Search(_ context.Context, query string, _ int) ([]SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

func newService(p SearchProvider) *Service {
	return New(p, resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()), resilience.RetryConfig{MaxAttempts: 1})
}

func TestResolveDomainPrefersGivenDomain(t *testing.T) {
	s := newService(&fakeProvider{})
	d, err := s.ResolveDomain(context.Background(), model.Organization{Name: "Stripe", Domain: "https://www.stripe.com"})
	require.NoError(t, err)
	assert.Equal(t, "stripe.com", d)
}

func TestResolveDomainByVote(t *testing.T) {
	p := &fakeProvider{results: map[string][]SearchResult{
		`"Stripe Inc" official website`: {
			{Title: "Stripe | LinkedIn", URL: "https://www.linkedin.com/company/stripe"},
			{Title: "Stripe - Payments", URL: "https://stripe.com"},
			{Title: "Stripe careers", URL: "https://stripe.com/jobs"},
			{Title: "Stripe review", URL: "https://somereview.net/stripe"},
		},
	}}
	s := newService(p)
	d, err := s.ResolveDomain(context.Background(), model.Organization{Name: "Stripe Inc"})
	require.NoError(t, err)
	// linkedin excluded; stripe.com gets rank votes plus the name bonus
	assert.Equal(t, "stripe.com", d)
}

func TestResolveDomainNoPlausibleResult(t *testing.T) {
	p := &fakeProvider{results: map[string][]SearchResult{
		`"Ghost Co" official website`: {
			{URL: "https://www.linkedin.com/company/ghost"},
			{URL: "https://facebook.com/ghost"},
		},
	}}
	s := newService(p)
	d, err := s.ResolveDomain(context.Background(), model.Organization{Name: "Ghost Co"})
	require.NoError(t, err)
	assert.Empty(t, d)
}

func TestResolveDomainTieBreakLexical(t *testing.T) {
	p := &fakeProvider{results: map[string][]SearchResult{
		`"Zed" official website`: {
			{URL: "https://bbb.org"},
			{URL: "https://aaa.org"},
		},
	}}
	s := newService(p)
	// bbb gets weight 5, aaa weight 4; swap ranks to force a tie
	p.results[`"Zed" official website`] = []SearchResult{
		{URL: "https://bbb.org"},
		{URL: "https://aaa.org"},
		{URL: "https://aaa.org"}, // aaa: 4+3=7, bbb: 5
		{URL: "https://bbb.org"}, // bbb: 5+2=7
	}
	d, err := s.ResolveDomain(context.Background(), model.Organization{Name: "Zed"})
	require.NoError(t, err)
	assert.Equal(t, "aaa.org", d)
}

func TestResolveDomainInvalidOrg(t *testing.T) {
	s := newService(&fakeProvider{})
	_, err := s.ResolveDomain(context.Background(), model.Organization{})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestResolveDomainProviderError(t *testing.T) {
	s := newService(&fakeProvider{err: eris.New("search down")})
	_, err := s.ResolveDomain(context.Background(), model.Organization{Name: "Stripe"})
	assert.Error(t, err)
}

func TestFindContacts(t *testing.T) {
	query := `"Stripe" recruiter OR "talent acquisition" email`
	p := &fakeProvider{results: map[string][]SearchResult{
		query: {
			{
				Title:   "Amy Salazar - Technical Recruiter at Stripe | LinkedIn",
				URL:     "https://linkedin.com/in/amysalazar",
				Snippet: "Reach me at amy.salazar@stripe.com for roles.",
			},
			{
				Title:   "Amy Salazar - Technical Recruiter at Stripe | LinkedIn",
				URL:     "https://linkedin.com/in/amysalazar2",
				Snippet: "",
			},
			{
				Title:   "Top Recruiters - 2025 Edition",
				URL:     "https://listicle.com",
				Snippet: "contact editor@listicle.com",
			},
		},
	}}
	s := newService(p)
	contacts, observed, err := s.FindContacts(context.Background(), model.Organization{Name: "Stripe"}, "stripe.com")
	require.NoError(t, err)

	// duplicate person collapsed, listicle title rejected
	require.Len(t, contacts, 1)
	assert.Equal(t, "Amy Salazar", contacts[0].FullName())
	assert.Equal(t, "Technical Recruiter", contacts[0].Title)

	// off-domain snippet address dropped
	require.Len(t, observed, 1)
	assert.Equal(t, "amy.salazar@stripe.com", observed[0].Address)
}

func TestSeedURLs(t *testing.T) {
	seeds := SeedURLs("acme.com")
	assert.Contains(t, seeds, "https://acme.com")
	assert.Contains(t, seeds, "https://acme.com/careers")
	assert.Contains(t, seeds, "https://acme.com/contact")
}
