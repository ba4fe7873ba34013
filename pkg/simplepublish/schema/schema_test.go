package schema_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-publish/pkg/simplepublish"
	"github.com/tendant/simple-publish/pkg/simplepublish/schema"
)

func TestValidateContent(t *testing.T) {
	registry := schema.New()

	t.Run("valid section", func(t *testing.T) {
		err := registry.ValidateContent(simplepublish.KindSection, simplepublish.Content{
			Title:  "Welcome",
			Layout: "hero",
			CTA:    &simplepublish.CallToAction{Label: "Get started", Href: "https://example.com/start"},
		})
		assert.NoError(t, err)
	})

	t.Run("article requires a title", func(t *testing.T) {
		err := registry.ValidateContent(simplepublish.KindArticle, simplepublish.Content{Body: "text"})
		verr := requireValidationError(t, err)
		assertViolated(t, verr, "title")
	})

	t.Run("section accepts an empty title", func(t *testing.T) {
		err := registry.ValidateContent(simplepublish.KindSection, simplepublish.Content{})
		assert.NoError(t, err)
	})

	t.Run("title over the limit", func(t *testing.T) {
		err := registry.ValidateContent(simplepublish.KindTag, simplepublish.Content{
			Title: strings.Repeat("x", 41),
		})
		verr := requireValidationError(t, err)
		assertViolated(t, verr, "title")
	})

	t.Run("unknown layout for section", func(t *testing.T) {
		err := registry.ValidateContent(simplepublish.KindSection, simplepublish.Content{
			Layout: "carousel",
		})
		verr := requireValidationError(t, err)
		assertViolated(t, verr, "layout")
	})

	t.Run("card accepts any layout", func(t *testing.T) {
		err := registry.ValidateContent(simplepublish.KindCard, simplepublish.Content{
			Layout: "carousel",
		})
		assert.NoError(t, err)
	})

	t.Run("relative media url is rejected", func(t *testing.T) {
		err := registry.ValidateContent(simplepublish.KindCard, simplepublish.Content{
			Media: &simplepublish.MediaRef{URL: "/images/a.png"},
		})
		verr := requireValidationError(t, err)
		assertViolated(t, verr, "media.url")
	})

	t.Run("non-http scheme is rejected", func(t *testing.T) {
		err := registry.ValidateContent(simplepublish.KindCard, simplepublish.Content{
			CTA: &simplepublish.CallToAction{Href: "javascript:alert(1)"},
		})
		verr := requireValidationError(t, err)
		assertViolated(t, verr, "cta.href")
	})

	t.Run("all violations are reported together", func(t *testing.T) {
		err := registry.ValidateContent(simplepublish.KindArticle, simplepublish.Content{
			Subtitle: strings.Repeat("s", 241),
			Media:    &simplepublish.MediaRef{URL: "not-a-url"},
		})
		verr := requireValidationError(t, err)
		assertViolated(t, verr, "title")
		assertViolated(t, verr, "subtitle")
		assertViolated(t, verr, "media.url")
		assert.Len(t, verr.Fields, 3)
	})

	t.Run("unregistered kind", func(t *testing.T) {
		err := registry.ValidateContent(simplepublish.UnitKind("banner"), simplepublish.Content{})
		assert.ErrorIs(t, err, simplepublish.ErrInvalidKind)
	})
}

func TestRegisterOverridesRule(t *testing.T) {
	registry := schema.New()
	registry.Register(simplepublish.KindTag, schema.Rule{MaxTitle: 5})

	err := registry.ValidateContent(simplepublish.KindTag, simplepublish.Content{Title: "toolong"})
	verr := requireValidationError(t, err)
	assertViolated(t, verr, "title")

	// The replacement rule dropped RequireTitle
	assert.NoError(t, registry.ValidateContent(simplepublish.KindTag, simplepublish.Content{}))
}

func requireValidationError(t *testing.T, err error) *simplepublish.ValidationError {
	t.Helper()
	var verr *simplepublish.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr
}

func assertViolated(t *testing.T, verr *simplepublish.ValidationError, field string) {
	t.Helper()
	for _, f := range verr.Fields {
		if f.Field == field {
			return
		}
	}
	t.Errorf("expected a violation for field %q, got %v", field, verr.Fields)
}
