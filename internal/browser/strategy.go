package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/courier-cli/api/schemas"
)

// toQuery translates a locator strategy into a chromedp selector and query
// option. Text strategies compile to an XPath over the scoped tag so that a
// button's label matches through nested spans.
func toQuery(s schemas.Strategy) (string, chromedp.QueryOption, error) {
	switch s.Kind {
	case schemas.KindCSS:
		return s.Expression, chromedp.ByQuery, nil
	case schemas.KindXPath:
		return s.Expression, chromedp.BySearch, nil
	case schemas.KindText:
		scope := s.Expression
		if scope == "" {
			scope = "*"
		}
		xp := fmt.Sprintf("//%s[contains(normalize-space(.), %s)]",
			scope, xpathLiteral(s.TextPattern))
		return xp, chromedp.BySearch, nil
	default:
		return "", nil, fmt.Errorf("unsupported strategy kind %q", s.Kind)
	}
}

// xpathLiteral quotes a string for embedding in an XPath expression. XPath 1.0
// has no escape sequence, so mixed quotes need concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	var b strings.Builder
	b.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(`, "'", `)
		}
		b.WriteString("'" + p + "'")
	}
	b.WriteString(")")
	return b.String()
}
