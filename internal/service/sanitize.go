package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// plainText strips markup and returns unescaped text, so quotes in names survive.
func plainText(policy *bluemonday.Policy, value string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(value)))
}
