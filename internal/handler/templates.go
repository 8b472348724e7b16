package handler

import (
	"encoding/json"
	"html/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TemplateFuncs returns a FuncMap with custom template functions
func TemplateFuncs() template.FuncMap {
	frenchTitle := cases.Title(language.French)

	return template.FuncMap{
		// Footer copyright year
		"year": func() int {
			return time.Now().Year()
		},

		// French title casing for labels coming from data
		"title": func(s string) string {
			return frenchTitle.String(s)
		},

		// jsonLD serializes structured data for a <script type="application/ld+json">
		// block. The value is marshaled, not user-controlled markup.
		"jsonLD": func(v interface{}) (template.JS, error) {
			raw, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return template.JS(raw), nil
		},
	}
}
