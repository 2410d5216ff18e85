package notify

import (
	"fmt"
	"text/template"

	"maintflow/domain"
)

// Template renders the subject and body of one notification.
type Template struct {
	Name    string
	Subject *template.Template
	Body    *template.Template
}

func MustTemplate(name, subject, body string) *Template {
	t, err := NewTemplate(name, subject, body)
	if err != nil {
		panic(err)
	}
	return t
}

func NewTemplate(name, subject, body string) (*Template, error) {
	s, err := template.New(name + ".subject").Option("missingkey=error").Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("parse subject of %s: %w", name, err)
	}
	b, err := template.New(name + ".body").Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse body of %s: %w", name, err)
	}
	return &Template{Name: name, Subject: s, Body: b}, nil
}

const defaultBody = `Hello {{.RecipientName}},

{{.KindLabel}} "{{.Title}}" is now {{.State}}.

Amount:    {{.CurrencySymbol}}{{.Amount}}
Site:      {{.SiteName}}
Reference: {{.Reference}}
Severity:  {{.Severity}}

Review it at {{.Link}}
`

var fallbackTemplate = MustTemplate("fallback", `[{{.Severity}}] {{.KindLabel}} {{.Title}}: {{.State}}`, defaultBody)

func defaultTemplates() map[templateKey]*Template {
	return map[templateKey]*Template{
		{domain.KindTaskBudget, domain.StatePending}: MustTemplate("task-budget-created",
			`[{{.Severity}}] New task budget {{.Title}} ({{.CurrencySymbol}}{{.Amount}})`,
			`Hello {{.RecipientName}},

A task budget was registered for {{.SiteName}} and is waiting to start.

Title:     {{.Title}}
Amount:    {{.CurrencySymbol}}{{.Amount}}
Reference: {{.Reference}}

Follow it at {{.Link}}
`),
		{domain.KindMeasurementApproval, domain.StateTier1Approved}: MustTemplate("measurement-tier1",
			`Measurement {{.Title}} passed first approval`, defaultBody),
		{domain.KindMeasurementApproval, domain.StateTier2Approved}: MustTemplate("measurement-tier2",
			`[{{.Severity}}] Measurement {{.Title}} needs final approval`, defaultBody),
		{domain.KindMeasurementApproval, domain.StateTier3Approved}: MustTemplate("measurement-approved",
			`Measurement {{.Title}} fully approved`, defaultBody),
		{domain.KindCutApproval, domain.StatePending}: MustTemplate("cut-submitted",
			`Cut {{.Title}} submitted for approval`, defaultBody),
		{domain.KindQuotationReview, domain.StatePending}: MustTemplate("quotation-submitted",
			`Quotation {{.Title}} waiting for review`, defaultBody),
		{domain.KindContractLegalReview, domain.StateApproved}: MustTemplate("contract-approved",
			`Contract {{.Title}} approved by legal review`, defaultBody),
	}
}

var kindLabels = map[domain.Kind]string{
	domain.KindTaskBudget:          "Task budget",
	domain.KindMeasurementApproval: "Measurement",
	domain.KindQuotationReview:     "Quotation",
	domain.KindCutApproval:         "Cut",
	domain.KindContractLegalReview: "Contract",
}
