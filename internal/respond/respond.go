// Package respond drafts issue replies from fixed templates.
package respond

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"strings"
	"text/template"

	"github.com/david/issue-hunter/internal/models"
)

// DefaultGreetings open every drafted reply.
var DefaultGreetings = []string{"Hi there,", "Hello,", "Hey,"}

var defaultTemplates = []string{
	`Hi @{{.Author}}

I've encountered similar {{.ProblemType}} issues before. Looking at the details, I can see where the root cause is likely to be.

I can provide a complete solution with full implementation and testing. My rate is fair and I accept USDT payments.

Would you like me to send you a detailed proposal?`,
	`@{{.Author}}, I have solved this kind of {{.ProblemType}} problem{{if .Labels}} ({{.Labels}}){{end}} multiple times.

For a complete solution, I can deliver a working implementation, handle edge cases, and optimize performance. I'm available to start immediately.

Payment: USDT (crypto-friendly). Interested in discussing details?`,
}

const proposalTemplate = `---
**Proposal:** {{.Quote.TotalAmount}} {{.Quote.Currency}} via {{.Quote.Network}}
**Terms:** {{.Terms}}{{if .Quote.Escrow}}
**Escrow:** available for this project size{{end}}`

// Draft is the data every template sees.
type Draft struct {
	Author      string
	ProblemType string
	Labels      string
	Title       string
	Quote       models.PriceQuote
	Terms       string
}

// Drafter renders replies. The zero value is not usable; call NewDrafter.
type Drafter struct {
	greetings []string
	templates []*template.Template
	proposal  *template.Template
}

// NewDrafter parses the reply templates. Nil arguments use the built-in sets.
func NewDrafter(greetings, templates []string) (*Drafter, error) {
	if len(greetings) == 0 {
		greetings = DefaultGreetings
	}
	if len(templates) == 0 {
		templates = defaultTemplates
	}

	d := &Drafter{greetings: greetings}
	for i, src := range templates {
		t, err := template.New(fmt.Sprintf("reply-%d", i)).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parsing reply template %d: %w", i, err)
		}
		d.templates = append(d.templates, t)
	}

	p, err := template.New("proposal").Parse(proposalTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing proposal template: %w", err)
	}
	d.proposal = p
	return d, nil
}

// SelectVariant picks one of variants from seed. It is pure: the same seed
// always gives the same variant. Returns "" for an empty list.
func SelectVariant(variants []string, seed int64) string {
	if len(variants) == 0 {
		return ""
	}
	return variants[variantIndex(len(variants), seed)]
}

func variantIndex(n int, seed int64) int {
	idx := seed % int64(n)
	if idx < 0 {
		idx += int64(n)
	}
	return int(idx)
}

// SeedFor derives a stable seed from an opportunity ID.
func SeedFor(id string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return int64(h.Sum64() >> 1)
}

// Compose renders a greeting, a reply template and the proposal footer.
func (d *Drafter) Compose(opp models.FilteredOpportunity, analysis models.ProjectAnalysis, quote models.PriceQuote, seed int64) (string, error) {
	data := Draft{
		Author:      authorOrDefault(opp.Author),
		ProblemType: HumanCategory(analysis.Category),
		Labels:      strings.Join(analysis.Labels, ", "),
		Title:       opp.Title,
		Quote:       quote,
		Terms:       DescribeTerms(quote.Terms),
	}

	var buf bytes.Buffer
	buf.WriteString(SelectVariant(d.greetings, seed))
	buf.WriteString("\n\n")

	tmpl := d.templates[variantIndex(len(d.templates), seed)]
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering reply: %w", err)
	}

	buf.WriteString("\n\n")
	if err := d.proposal.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering proposal: %w", err)
	}
	return buf.String(), nil
}

// HumanCategory turns bug_fix into "bug fix".
func HumanCategory(category string) string {
	if category == "" {
		return "issue"
	}
	return strings.ReplaceAll(category, "_", " ")
}

// DescribeTerms summarises a payment schedule in one line.
func DescribeTerms(terms models.PaymentTerms) string {
	if len(terms.Milestones) == 0 {
		return terms.Description
	}
	parts := make([]string, len(terms.Milestones))
	for i, m := range terms.Milestones {
		parts[i] = fmt.Sprintf("%d%% (%d) at %s", m.Percent, m.Amount, strings.ReplaceAll(m.Trigger, "_", " "))
	}
	return strings.Join(parts, ", ")
}

func authorOrDefault(author string) string {
	if author == "" {
		return "there"
	}
	return author
}
