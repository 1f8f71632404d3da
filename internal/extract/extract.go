// Package extract pulls email addresses and people from HTML pages and
// search-result snippets.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/outreach-cli/internal/model"
)

var emailRe = regexp.MustCompile(`(?i)\b[a-z0-9][a-z0-9._%+-]*@[a-z0-9][a-z0-9.-]*\.[a-z]{2,}\b`)

// local parts that are never a deliverable person or team inbox:
// placeholders from docs and asset filenames picked up by the regex
var invalidLocals = map[string]bool{
	"example": true, "email": true, "your": true, "name": true,
	"user": true, "username": true, "firstname": true, "lastname": true,
	"first.last": true,
	"test": true, "someone": true, "you": true, "me": true,
}

// "logo@2x.png" style srcset tokens match the address regex with an
// asset extension where the TLD should be
var assetSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".css", ".js", ".ico", ".pdf"}

// functional inboxes: usable but penalized against named-person addresses
var functionalPrefixes = map[string]bool{
	"info": true, "contact": true, "hello": true, "hi": true,
	"hr": true, "jobs": true, "careers": true, "recruiting": true,
	"recruitment": true, "talent": true, "hiring": true, "apply": true,
	"team": true, "sales": true, "support": true, "admin": true,
	"office": true, "press": true, "media": true, "help": true,
	"noreply": true, "no-reply": true, "donotreply": true,
	"webmaster": true, "postmaster": true, "abuse": true,
	"privacy": true, "legal": true, "billing": true, "security": true,
	"marketing": true, "newsletter": true, "feedback": true,
}

// undeliverable by construction, dropped outright
var blockedPrefixes = map[string]bool{
	"noreply": true, "no-reply": true, "donotreply": true,
	"postmaster": true, "abuse": true,
}

// Found is an address seen verbatim in a page or snippet, with the
// text surrounding it for the scorer.
type Found struct {
	Address   string
	Context   string
	SourceURL string
	Mailto    bool
}

// IsFunctional reports whether the address is a shared mailbox
// (info@, careers@, ...) rather than a named person.
func IsFunctional(addr string) bool {
	local, _, ok := strings.Cut(strings.ToLower(addr), "@")
	return ok && functionalPrefixes[local]
}

// valid filters regex matches that are not real addresses.
func valid(addr string) bool {
	local, domain, ok := strings.Cut(strings.ToLower(addr), "@")
	if !ok || local == "" || len(local) > 64 {
		return false
	}
	if invalidLocals[local] || blockedPrefixes[local] {
		return false
	}
	for _, suf := range assetSuffixes {
		if strings.HasSuffix(domain, suf) {
			return false
		}
	}
	return true
}

// FromText extracts addresses from plain text after de-obfuscation.
// Matching is case-insensitive; returned addresses are lowercased and
// deduplicated, first occurrence wins.
func FromText(text, sourceURL string) []Found {
	text = Deobfuscate(text)
	seen := map[string]bool{}
	var out []Found
	for _, loc := range emailRe.FindAllStringIndex(text, -1) {
		addr := strings.ToLower(text[loc[0]:loc[1]])
		if seen[addr] || !valid(addr) {
			continue
		}
		seen[addr] = true
		out = append(out, Found{
			Address:   addr,
			Context:   window(text, loc[0], loc[1], 80),
			SourceURL: sourceURL,
		})
	}
	return out
}

// FromHTML extracts addresses from a parsed page: mailto links first
// (they carry the strongest signal), then visible text.
func FromHTML(doc *goquery.Document, sourceURL string) []Found {
	seen := map[string]bool{}
	var out []Found

	doc.Find("a[href^='mailto:']").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		addr := strings.ToLower(strings.TrimPrefix(href, "mailto:"))
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		addr = strings.TrimSpace(addr)
		if addr == "" || seen[addr] || !valid(addr) || !emailRe.MatchString(addr) {
			return
		}
		seen[addr] = true
		out = append(out, Found{
			Address:   addr,
			Context:   strings.TrimSpace(sel.Text()),
			SourceURL: sourceURL,
			Mailto:    true,
		})
	})

	for _, f := range FromText(doc.Text(), sourceURL) {
		if !seen[f.Address] {
			seen[f.Address] = true
			out = append(out, f)
		}
	}
	return out
}

// window returns up to pad characters of context either side of
// [start,end), collapsed to single spaces.
func window(text string, start, end, pad int) string {
	lo := start - pad
	if lo < 0 {
		lo = 0
	}
	hi := end + pad
	if hi > len(text) {
		hi = len(text)
	}
	return strings.Join(strings.Fields(text[lo:hi]), " ")
}

// leading "First Last" followed by a separator, the shape of a
// person-titled search result
var personTitleRe = regexp.MustCompile(`^([A-Z][a-z]+)\s+([A-Z][a-z]+)\s*[-–—|·]\s*(.*)$`)

// first tokens that look like names but start listing or how-to pages
var titleSkipWords = map[string]bool{
	"Top": true, "Best": true, "How": true, "What": true, "Why": true,
	"The": true, "Join": true, "Jobs": true, "Careers": true,
	"Hiring": true, "Meet": true, "Our": true, "New": true,
	"Senior": true, "Find": true, "Contact": true, "About": true,
}

// PersonFromTitle parses a search-result title like "Amy Salazar -
// Technical Recruiter at Stripe" into a contact. Returns nil when the
// title does not look like a person.
func PersonFromTitle(title, sourceURL string) *model.Contact {
	m := personTitleRe.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil || titleSkipWords[m[1]] || titleSkipWords[m[2]] {
		return nil
	}
	role := strings.TrimSpace(m[3])
	if i := strings.Index(role, " at "); i >= 0 {
		role = strings.TrimSpace(role[:i])
	}
	role = strings.TrimSuffix(role, " | LinkedIn")
	return &model.Contact{
		FirstName: m[1],
		LastName:  m[2],
		Title:     role,
		Source:    model.SourceSearchResult,
		SourceURL: sourceURL,
	}
}
