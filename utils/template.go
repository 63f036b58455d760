// Package utils provides utility functions for the application.
package utils

import "regexp"

var placeholderPattern = regexp.MustCompile(`\{([a-z0-9_]+)\}`)

// RenderTemplate fills {name} style placeholders in tpl from fields.
// Placeholders with no matching field render as an empty string; they are
// never left literally in the output and rendering never fails.
func RenderTemplate(tpl string, fields map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tpl, func(m string) string {
		key := m[1 : len(m)-1]
		return fields[key]
	})
}
