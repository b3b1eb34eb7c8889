// Package redact masks secret values embedded in free-form text before it
// reaches logs, stored results, or reports.
package redact

import "regexp"

var secretPattern = regexp.MustCompile(`(?i)(token|key|secret|password)=([^\s&]+)`)

// Mask replaces the value side of token=, key=, secret= and password=
// pairs with a fixed mask, preserving the key name.
func Mask(text string) string {
	if text == "" {
		return text
	}
	return secretPattern.ReplaceAllString(text, "${1}=***")
}
