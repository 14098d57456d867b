package textutil

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictOnce   sync.Once
	strictPolicy *bluemonday.Policy
)

// PlainText strips every HTML element from value, decodes entities and collapses runs of
// whitespace. Customer reviews, payment notes and names pass through it before being stored.
func PlainText(value string) string {
	strictOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	cleaned := html.UnescapeString(strictPolicy.Sanitize(value))
	return strings.Join(strings.Fields(cleaned), " ")
}
