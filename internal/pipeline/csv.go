package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/scorer"
)

// ReadOrganizations parses input CSV. The header must contain a
// company name column; a domain column is optional. Column matching is
// case-insensitive and tolerates the common spellings.
func ReadOrganizations(r io.Reader) ([]model.Organization, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "reading csv header")
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "reading csv rows")
	}
	return orgsFromRows(header, rows)
}

// orgsFromRows maps tabular input onto organizations, shared by the
// CSV and XLSX readers. Blank rows are skipped.
func orgsFromRows(header []string, rows [][]string) ([]model.Organization, error) {
	nameIdx, domainIdx := -1, -1
	for i, col := range header {
		switch normalizeHeader(col) {
		case "companyname", "company", "name", "organization":
			if nameIdx < 0 {
				nameIdx = i
			}
		case "companydomain", "domain", "website", "url":
			if domainIdx < 0 {
				domainIdx = i
			}
		}
	}
	if nameIdx < 0 {
		return nil, eris.Wrap(model.ErrInvalidInput, "input has no company name column")
	}

	var orgs []model.Organization
	for _, row := range rows {
		var org model.Organization
		if nameIdx < len(row) {
			org.Name = strings.TrimSpace(row[nameIdx])
		}
		if domainIdx >= 0 && domainIdx < len(row) {
			org.Domain = strings.TrimSpace(row[domainIdx])
		}
		if org.Name == "" && org.Domain == "" {
			continue
		}
		orgs = append(orgs, org)
	}
	return orgs, nil
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

var resultHeader = []string{
	"company_name", "company_domain", "status", "contact_name",
	"contact_title", "email", "score", "confidence", "label",
	"candidates", "pages", "reason",
}

// WriteResults writes one row per result in input order.
func WriteResults(w io.Writer, results []*model.OutreachResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resultHeader); err != nil {
		return eris.Wrap(err, "writing csv header")
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		var contactName, contactTitle string
		if res.Contact != nil {
			contactName = res.Contact.FullName()
			contactTitle = res.Contact.Title
		}
		var label string
		if res.Status == model.StatusFound {
			label = scorer.Label(res.Score)
		}
		row := []string{
			res.Org.Name,
			res.Org.Domain,
			string(res.Status),
			contactName,
			contactTitle,
			res.Email,
			formatFloat(res.Score),
			formatFloat(res.Confidence),
			label,
			fmt.Sprintf("%d", res.Candidates),
			fmt.Sprintf("%d", res.Pages),
			res.Reason,
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "writing csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "flushing csv")
}

// ReadResults parses a CSV written by WriteResults, for feeding found
// rows into the send stage.
func ReadResults(r io.Reader) ([]*model.OutreachResult, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "reading results header")
	}
	idx := map[string]int{}
	for i, col := range header {
		idx[strings.TrimSpace(col)] = i
	}
	for _, required := range []string{"company_name", "status", "email"} {
		if _, ok := idx[required]; !ok {
			return nil, eris.Wrapf(model.ErrInvalidInput, "results csv missing %s column", required)
		}
	}
	get := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []*model.OutreachResult
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "reading results row")
		}
		res := &model.OutreachResult{
			Org: model.Organization{
				Name:   get(row, "company_name"),
				Domain: get(row, "company_domain"),
			},
			Status: model.ResultStatus(get(row, "status")),
			Email:  get(row, "email"),
			Reason: get(row, "reason"),
		}
		if name := get(row, "contact_name"); name != "" {
			first, last, _ := strings.Cut(name, " ")
			res.Contact = &model.Contact{
				FirstName: first,
				LastName:  last,
				Title:     get(row, "contact_title"),
			}
		}
		out = append(out, res)
	}
	return out, nil
}

func formatFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}
