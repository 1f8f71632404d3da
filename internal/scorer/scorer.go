// Package scorer ranks email candidates by how likely they are to
// reach a recruiting inbox that a human reads.
package scorer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/outreach-cli/internal/extract"
	"github.com/sells-group/outreach-cli/internal/model"
)

// Weights tune the keyword scorer. All fields are additive signal
// weights except ContextCap, which bounds total context contribution,
// and PatternDecay, which shrinks the generated-address prior per
// convention index.
type Weights struct {
	EmailKeyword   float64 `mapstructure:"email_keyword"`
	TitleKeyword   float64 `mapstructure:"title_keyword"`
	ContextKeyword float64 `mapstructure:"context_keyword"`
	ContextCap     float64 `mapstructure:"context_cap"`
	URLKeyword     float64 `mapstructure:"url_keyword"`
	NegativeStrong float64 `mapstructure:"negative_strong"`
	NegativeWeak   float64 `mapstructure:"negative_weak"`
	Functional     float64 `mapstructure:"functional"`
	Observed       float64 `mapstructure:"observed"`
	PatternBase    float64 `mapstructure:"pattern_base"`
	PatternDecay   float64 `mapstructure:"pattern_decay"`
}

// DefaultWeights favor observed addresses over generated ones: a bare
// observed address outranks every generated candidate unless the page
// signals push it hard negative.
func DefaultWeights() Weights {
	return Weights{
		EmailKeyword:   6,
		TitleKeyword:   5,
		ContextKeyword: 3,
		ContextCap:     9,
		URLKeyword:     2,
		NegativeStrong: -6,
		NegativeWeak:   -3,
		Functional:     -2,
		Observed:       15,
		PatternBase:    6,
		PatternDecay:   0.5,
	}
}

var positiveKeywords = []string{
	"recruit", "talent", "hiring", "career", "jobs", "job",
	"staffing", "people", "apply",
}

// matched on token boundaries only; as a bare substring "hr" hits
// names like "chris"
var hrTokenRe = regexp.MustCompile(`(?i)(?:^|[^a-z])hr(?:[^a-z]|$)`)

var strongNegatives = []string{
	"privacy", "legal", "abuse", "unsubscribe", "gdpr", "dmca",
}

var weakNegatives = []string{
	"sales", "billing", "support", "marketing", "press", "media",
	"investor", "partner",
}

// confidence normalization bounds; scores land in this range under the
// default weights
const (
	scoreFloor = -10
	scoreCeil  = 15
)

type Scorer struct {
	w Weights
}

func New(w Weights) *Scorer {
	return &Scorer{w: w}
}

// Score computes the candidate's signal score in place and returns it.
// Scoring depends only on the candidate's own fields, so equal inputs
// always score equally.
func (s *Scorer) Score(c *model.EmailCandidate) float64 {
	var score float64
	addr := strings.ToLower(c.Address)
	local, _, _ := strings.Cut(addr, "@")

	if c.Observed {
		score += s.w.Observed
	} else {
		decay := 1.0
		for i := 0; i < c.PatternIndex; i++ {
			decay *= 1 - s.w.PatternDecay
			if s.w.PatternDecay >= 1 {
				decay = 0
				break
			}
		}
		score += s.w.PatternBase * decay
	}

	if hrTokenRe.MatchString(local) {
		score += s.w.EmailKeyword
	} else {
		for _, kw := range positiveKeywords {
			if strings.Contains(local, kw) {
				score += s.w.EmailKeyword
				break // one address-keyword hit is enough signal
			}
		}
	}

	if c.Contact != nil {
		title := strings.ToLower(c.Contact.Title)
		if hrTokenRe.MatchString(title) {
			score += s.w.TitleKeyword
		} else {
			for _, kw := range positiveKeywords {
				if strings.Contains(title, kw) {
					score += s.w.TitleKeyword
					break // recruiting-titled contact, one hit is the signal
				}
			}
		}
	}

	ctx := strings.ToLower(c.Context)
	var ctxScore float64
	for _, kw := range positiveKeywords {
		if strings.Contains(ctx, kw) {
			ctxScore += s.w.ContextKeyword
		}
	}
	if hrTokenRe.MatchString(ctx) {
		ctxScore += s.w.ContextKeyword
	}
	if ctxScore > s.w.ContextCap {
		ctxScore = s.w.ContextCap
	}
	score += ctxScore

	u := strings.ToLower(c.SourceURL)
	for _, kw := range positiveKeywords {
		if strings.Contains(u, kw) {
			score += s.w.URLKeyword
			break
		}
	}

	haystack := addr + " " + ctx + " " + u
	for _, kw := range strongNegatives {
		if strings.Contains(haystack, kw) {
			score += s.w.NegativeStrong
			break
		}
	}
	for _, kw := range weakNegatives {
		if strings.Contains(haystack, kw) {
			score += s.w.NegativeWeak
			break
		}
	}

	if extract.IsFunctional(c.Address) {
		score += s.w.Functional
	}

	c.Score = score
	return score
}

// Confidence maps a score onto [0,1].
func Confidence(score float64) float64 {
	c := (score - scoreFloor) / (scoreCeil - scoreFloor)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Label buckets a score the way results are reported: "recruiting" for
// strong signal, "careers" for moderate, "unknown" otherwise.
func Label(score float64) string {
	switch {
	case score >= 7:
		return "recruiting"
	case score >= 4:
		return "careers"
	default:
		return "unknown"
	}
}

// Rank scores every candidate and orders them best-first. The order is
// total and deterministic: verifier-valid addresses sort above all
// others, then score descending, then address ascending as the tie
// break. Verifier-invalid candidates are dropped; unknown verdicts
// rank on score alone.
func (s *Scorer) Rank(candidates []model.EmailCandidate) []model.EmailCandidate {
	out := make([]model.EmailCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Verification == model.VerifyInvalid {
			continue
		}
		s.Score(&c)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := out[i].Verification == model.VerifyValid, out[j].Verification == model.VerifyValid
		if vi != vj {
			return vi
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Address < out[j].Address
	})
	return out
}
