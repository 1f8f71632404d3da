// Package outreach drafts and sends the actual contact emails, with a
// durable dedup gate and a global send throttle.
package outreach

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

// Draft is a composed message before sending.
type Draft struct {
	Subject string
	Body    string
}

// Composer produces an outreach draft for a contact at a company.
type Composer interface {
	Compose(ctx context.Context, org model.Organization, contact *model.Contact) (Draft, error)
}

const defaultBodyTemplate = `Hi {{.FirstName}},

I came across your work{{if .Title}} as {{.Title}}{{end}} at {{.Company}} and wanted to reach out about candidates we work with who could be a fit for roles you're hiring for.

Would you be open to a short call this week?

Best,
{{.FromName}}`

// templateData is what both composers expose to the body template.
type templateData struct {
	FirstName string
	Title     string
	Company   string
	FromName  string
}

// TemplateComposer fills a fixed text template. It is the fallback
// when no model is configured and the safety net when the model call
// fails.
type TemplateComposer struct {
	tmpl     *template.Template
	fromName string
}

func NewTemplateComposer(fromName string) (*TemplateComposer, error) {
	return NewTemplateComposerWith(defaultBodyTemplate, fromName)
}

// NewTemplateComposerWith parses a custom body template.
func NewTemplateComposerWith(body, fromName string) (*TemplateComposer, error) {
	tmpl, err := template.New("outreach").Parse(body)
	if err != nil {
		return nil, eris.Wrap(err, "parsing outreach template")
	}
	return &TemplateComposer{tmpl: tmpl, fromName: fromName}, nil
}

func (t *TemplateComposer) Compose(_ context.Context, org model.Organization, contact *model.Contact) (Draft, error) {
	data := templateData{
		FirstName: "there",
		Company:   org.Name,
		FromName:  t.fromName,
	}
	if contact != nil {
		data.FirstName = contact.FirstName
		data.Title = contact.Title
	}

	var b strings.Builder
	if err := t.tmpl.Execute(&b, data); err != nil {
		return Draft{}, eris.Wrap(err, "executing outreach template")
	}
	return Draft{
		Subject: fmt.Sprintf("Candidates for %s", org.Name),
		Body:    b.String(),
	}, nil
}

const composeSystemPrompt = `You write short, personal recruiting-outreach emails.
Rules: under 120 words, plain text, no subject line, no placeholders,
one concrete ask, professional but warm tone.`

// LLMComposer drafts with a language model and falls back to the
// template when the model call fails, so outreach never stalls on a
// provider outage.
type LLMComposer struct {
	llm      anthropic.Client
	fallback *TemplateComposer
	log      *zap.Logger
}

func NewLLMComposer(llm anthropic.Client, fallback *TemplateComposer) *LLMComposer {
	return &LLMComposer{llm: llm, fallback: fallback, log: zap.L().Named("compose")}
}

func (l *LLMComposer) Compose(ctx context.Context, org model.Organization, contact *model.Contact) (Draft, error) {
	prompt := buildPrompt(org, contact)
	body, err := l.llm.CreateMessage(ctx, composeSystemPrompt, prompt)
	if err != nil {
		l.log.Warn("model draft failed, using template",
			zap.String("company", org.Name), zap.Error(err))
		return l.fallback.Compose(ctx, org, contact)
	}
	return Draft{
		Subject: fmt.Sprintf("Candidates for %s", org.Name),
		Body:    body,
	}, nil
}

func buildPrompt(org model.Organization, contact *model.Contact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an outreach email to a recruiter at %s.\n", org.Name)
	if contact != nil {
		fmt.Fprintf(&b, "Recipient: %s", contact.FullName())
		if contact.Title != "" {
			fmt.Fprintf(&b, ", %s", contact.Title)
		}
		b.WriteString("\n")
	}
	b.WriteString("We are a staffing agency with pre-vetted candidates in their space.")
	return b.String()
}
