// Package schema provides the default per-kind content validators for
// simplepublish. Rules are registered per unit kind and can be replaced or
// extended without touching the engine.
package schema

import (
	"fmt"
	"net/url"

	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// Rule describes the schema constraints for one unit kind. Zero limits mean
// "no limit"; an empty Layouts list accepts any layout value.
type Rule struct {
	MaxTitle     int
	MaxSubtitle  int
	MaxBody      int
	MaxCTALabel  int
	MaxMediaAlt  int
	Layouts      []string
	RequireTitle bool
}

// Registry maps unit kinds to their rules and implements
// simplepublish.ContentValidator.
type Registry struct {
	rules map[simplepublish.UnitKind]Rule
}

// New creates a registry preloaded with the default rules for every known
// unit kind.
func New() *Registry {
	r := &Registry{rules: make(map[simplepublish.UnitKind]Rule)}

	r.Register(simplepublish.KindSection, Rule{
		MaxTitle:    120,
		MaxSubtitle: 180,
		MaxBody:     10_000,
		MaxCTALabel: 60,
		MaxMediaAlt: 160,
		Layouts:     []string{"hero", "grid", "pricing", "logos", "cta", "custom"},
	})
	r.Register(simplepublish.KindCard, Rule{
		MaxTitle:    120,
		MaxBody:     10_000,
		MaxCTALabel: 60,
		MaxMediaAlt: 160,
	})
	r.Register(simplepublish.KindArticle, Rule{
		MaxTitle:     160,
		MaxSubtitle:  240,
		MaxBody:      100_000,
		MaxCTALabel:  60,
		MaxMediaAlt:  160,
		RequireTitle: true,
	})
	r.Register(simplepublish.KindCategory, Rule{
		MaxTitle:     80,
		MaxBody:      1_000,
		RequireTitle: true,
	})
	r.Register(simplepublish.KindTag, Rule{
		MaxTitle:     40,
		RequireTitle: true,
	})

	return r
}

// Register sets or replaces the rule for a kind.
func (r *Registry) Register(kind simplepublish.UnitKind, rule Rule) {
	r.rules[kind] = rule
}

// ValidateContent checks the payload against the kind's rule and reports
// every violated field at once.
func (r *Registry) ValidateContent(kind simplepublish.UnitKind, content simplepublish.Content) error {
	rule, ok := r.rules[kind]
	if !ok {
		return fmt.Errorf("%w: no schema registered for %q", simplepublish.ErrInvalidKind, kind)
	}

	verr := &simplepublish.ValidationError{Kind: kind}

	if rule.RequireTitle && content.Title == "" {
		verr.Add("title", "is required")
	}
	checkMax(verr, "title", content.Title, rule.MaxTitle)
	checkMax(verr, "subtitle", content.Subtitle, rule.MaxSubtitle)
	checkMax(verr, "body", content.Body, rule.MaxBody)

	if content.CTA != nil {
		checkMax(verr, "cta.label", content.CTA.Label, rule.MaxCTALabel)
		checkURL(verr, "cta.href", content.CTA.Href)
	}
	if content.Media != nil {
		checkURL(verr, "media.url", content.Media.URL)
		checkMax(verr, "media.alt", content.Media.Alt, rule.MaxMediaAlt)
	}
	if content.Layout != "" && len(rule.Layouts) > 0 && !contains(rule.Layouts, content.Layout) {
		verr.Add("layout", fmt.Sprintf("must be one of %v", rule.Layouts))
	}

	if verr.HasViolations() {
		return verr
	}
	return nil
}

func checkMax(verr *simplepublish.ValidationError, field, value string, max int) {
	if max > 0 && len(value) > max {
		verr.Add(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

// checkURL accepts empty strings; a set value must be an absolute http(s) URL.
func checkURL(verr *simplepublish.ValidationError, field, value string) {
	if value == "" {
		return
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		verr.Add(field, "must be an absolute http or https URL")
	}
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
