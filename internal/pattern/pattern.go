// Package pattern synthesizes candidate email addresses for a person at
// a company domain using the common corporate local-part conventions.
package pattern

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Candidate is one generated address with the convention that produced
// it. Index is the position in the fixed convention order, used as a
// prior: earlier conventions are more common in the wild.
type Candidate struct {
	Address string
	Pattern string
	Index   int
}

// Names of the generation conventions, in likelihood order. The order
// is fixed so output is deterministic for identical input.
var conventions = []string{
	"first.last",
	"firstlast",
	"flast",
	"first.l",
	"first_last",
	"f.last",
	"last.first",
	"first-last",
}

// Generate returns candidate addresses for name at domain, one per
// convention, deduplicated, in convention order. Single-token names get
// the lone fallback first@domain. Returns model.ErrInvalidInput when
// the name has no usable tokens or the domain is not a valid
// registrable domain.
func Generate(name, domain string) ([]Candidate, error) {
	dom := model.RegistrableDomain(domain)
	if dom == "" {
		return nil, eris.Wrapf(model.ErrInvalidInput, "domain %q", domain)
	}
	first, last := splitName(name)
	if first == "" {
		return nil, eris.Wrapf(model.ErrInvalidInput, "name %q", name)
	}
	if last == "" {
		return []Candidate{{Address: first + "@" + dom, Pattern: "first", Index: 0}}, nil
	}

	locals := []string{
		first + "." + last,
		first + last,
		first[:1] + last,
		first + "." + last[:1],
		first + "_" + last,
		first[:1] + "." + last,
		last + "." + first,
		first + "-" + last,
	}
	seen := make(map[string]bool, len(locals))
	out := make([]Candidate, 0, len(locals))
	for i, local := range locals {
		addr := local + "@" + dom
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, Candidate{Address: addr, Pattern: conventions[i], Index: i})
	}
	return out, nil
}

// splitName lowercases the name and reduces it to (first, last) tokens,
// dropping everything that is not a letter. Middle names and suffixes
// are ignored; the last alphabetic token is taken as the surname.
func splitName(name string) (string, string) {
	var tokens []string
	for _, f := range strings.Fields(strings.ToLower(name)) {
		var b strings.Builder
		for _, r := range f {
			if r >= 'a' && r <= 'z' {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
		}
	}
	switch len(tokens) {
	case 0:
		return "", ""
	case 1:
		return tokens[0], ""
	default:
		return tokens[0], tokens[len(tokens)-1]
	}
}
