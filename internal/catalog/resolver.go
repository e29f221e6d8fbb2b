package catalog

import (
	"strings"
)

// Match is a template that fired for a question, rendered for one tenant.
type Match struct {
	TemplateID string
	SQL        string
}

type Resolver struct {
	templates []Template
}

// NewResolver evaluates templates in the given order. With no arguments it
// uses Default.
func NewResolver(templates ...Template) *Resolver {
	if len(templates) == 0 {
		templates = Default()
	}
	return &Resolver{templates: templates}
}

// Match returns the first template whose predicate accepts the question.
func (r *Resolver) Match(question, tenantID string) (Match, bool) {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return Match{}, false
	}

	for _, t := range r.templates {
		if t.Match != nil && t.Match(q) {
			return Match{TemplateID: t.ID, SQL: t.Render(tenantID)}, true
		}
	}
	return Match{}, false
}

func (r *Resolver) Templates() []Template {
	out := make([]Template, len(r.templates))
	copy(out, r.templates)
	return out
}
