package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

func TestScoreObservedRecruitingAddress(t *testing.T) {
	s := New(DefaultWeights())
	c := &model.EmailCandidate{
		Address:   "recruiting@stripe.com",
		Observed:  true,
		Context:   "join our talent team, we are hiring",
		SourceURL: "https://stripe.com/careers",
	}
	got := s.Score(c)
	// observed 15 + email keyword 6 + context 3+3 + url 2 - functional 2 = 27
	assert.InDelta(t, 27, got, 0.001)
	assert.Equal(t, got, c.Score)
}

func TestScoreGeneratedDecaysByPatternIndex(t *testing.T) {
	s := New(DefaultWeights())
	first := s.Score(&model.EmailCandidate{Address: "amy.salazar@stripe.com", PatternIndex: 0})
	third := s.Score(&model.EmailCandidate{Address: "asalazar@stripe.com", PatternIndex: 2})
	assert.Greater(t, first, third)
	assert.InDelta(t, 6, first, 0.001)
	assert.InDelta(t, 1.5, third, 0.001) // 6 * 0.5^2
}

func TestScoreObservedOutranksGenerated(t *testing.T) {
	s := New(DefaultWeights())
	observed := s.Score(&model.EmailCandidate{Address: "rando@stripe.com", Observed: true})
	generated := s.Score(&model.EmailCandidate{
		Address: "amy.salazar@stripe.com",
		Context: "talent hiring",
	})
	assert.Greater(t, observed, generated)
}

func TestScoreRecruiterTitleOutranksGenericStaff(t *testing.T) {
	s := New(DefaultWeights())
	recruiter := s.Score(&model.EmailCandidate{
		Address: "zed.ziegler@acme.com",
		Contact: &model.Contact{FirstName: "Zed", LastName: "Ziegler", Title: "Technical Recruiter"},
	})
	engineer := s.Score(&model.EmailCandidate{
		Address: "aaron.able@acme.com",
		Contact: &model.Contact{FirstName: "Aaron", LastName: "Able", Title: "Software Engineer"},
	})
	// same pattern rank; the recruiting title is the deciding signal
	assert.Greater(t, recruiter, engineer)
	assert.InDelta(t, 11, recruiter, 0.001) // pattern base 6 + title 5
	assert.InDelta(t, 6, engineer, 0.001)
}

func TestRankRecruiterBeatsLexicallyEarlierEngineer(t *testing.T) {
	s := New(DefaultWeights())
	ranked := s.Rank([]model.EmailCandidate{
		{
			Address: "aaron.able@acme.com",
			Contact: &model.Contact{FirstName: "Aaron", LastName: "Able", Title: "Software Engineer"},
		},
		{
			Address: "zed.ziegler@acme.com",
			Contact: &model.Contact{FirstName: "Zed", LastName: "Ziegler", Title: "Technical Recruiter"},
		},
	})
	require.Len(t, ranked, 2)
	assert.Equal(t, "zed.ziegler@acme.com", ranked[0].Address)
}

func TestScoreNegatives(t *testing.T) {
	s := New(DefaultWeights())
	c := &model.EmailCandidate{
		Address:  "privacy@stripe.com",
		Observed: true,
		Context:  "data subject requests and billing questions",
	}
	// observed 15 - strong 6 - weak 3 - functional 2 = 4
	assert.InDelta(t, 4, s.Score(c), 0.001)
}

func TestConfidence(t *testing.T) {
	assert.InDelta(t, 0.0, Confidence(-10), 0.001)
	assert.InDelta(t, 1.0, Confidence(15), 0.001)
	assert.InDelta(t, 0.4, Confidence(0), 0.001)
	// clamped outside the range
	assert.Equal(t, 1.0, Confidence(30))
	assert.Equal(t, 0.0, Confidence(-20))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "recruiting", Label(7))
	assert.Equal(t, "careers", Label(4.5))
	assert.Equal(t, "unknown", Label(3.9))
}

func TestRankDeterministicWithLexicalTieBreak(t *testing.T) {
	s := New(DefaultWeights())
	cands := []model.EmailCandidate{
		{Address: "zoe.b@acme.com", Observed: true},
		{Address: "amy.a@acme.com", Observed: true},
	}
	ranked := s.Rank(cands)
	require.Len(t, ranked, 2)
	// equal scores, address ascending breaks the tie
	assert.Equal(t, "amy.a@acme.com", ranked[0].Address)

	again := s.Rank(cands)
	assert.Equal(t, ranked, again)
}

func TestRankVerificationOverride(t *testing.T) {
	s := New(DefaultWeights())
	cands := []model.EmailCandidate{
		{Address: "recruiting@acme.com", Observed: true, Context: "talent hiring careers"},
		{Address: "amy.salazar@acme.com", Verification: model.VerifyValid},
		{Address: "bogus@acme.com", Observed: true, Verification: model.VerifyInvalid},
		{Address: "maybe@acme.com", Verification: model.VerifyUnknown},
	}
	ranked := s.Rank(cands)
	require.Len(t, ranked, 3)
	// valid verdict beats a higher raw score; invalid is gone entirely
	assert.Equal(t, "amy.salazar@acme.com", ranked[0].Address)
	for _, c := range ranked {
		assert.NotEqual(t, "bogus@acme.com", c.Address)
	}
	// unknown ranks on score alone
	assert.Equal(t, "recruiting@acme.com", ranked[1].Address)
}

func TestRankEmpty(t *testing.T) {
	s := New(DefaultWeights())
	assert.Empty(t, s.Rank(nil))
}
