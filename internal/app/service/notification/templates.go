package notification

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	templatePaymentConfirmed = "payment_confirmed"
	templateRenewalReminder  = "renewal_reminder"
	templateCoachAssigned    = "coach_assigned"
)

type templateData struct {
	Name            string
	Service         string
	SubscriptionID  string
	ChargeID        string
	Amount          string
	Currency        string
	NextBillingDate string
}

// renderer holds one parsed set per email, each sharing the base layout.
type renderer struct {
	templates map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	r := &renderer{templates: make(map[string]*template.Template)}
	for _, name := range []string{templatePaymentConfirmed, templateRenewalReminder, templateCoachAssigned} {
		tpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = tpl
	}
	return r, nil
}

func (r *renderer) render(name string, data templateData) (subject, body string, err error) {
	tpl, ok := r.templates[name]
	if !ok {
		return "", "", fmt.Errorf("template not found: %s", name)
	}
	var sb, bb bytes.Buffer
	if err := tpl.ExecuteTemplate(&sb, "subject", data); err != nil {
		return "", "", fmt.Errorf("render subject %s: %w", name, err)
	}
	if err := tpl.ExecuteTemplate(&bb, "base", data); err != nil {
		return "", "", fmt.Errorf("render body %s: %w", name, err)
	}
	return strings.TrimSpace(sb.String()), bb.String(), nil
}
