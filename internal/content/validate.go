// internal/content/validate.go
package content

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xkilldash9x/courier-cli/api/schemas"
	"github.com/xkilldash9x/courier-cli/internal/config"
)

// spamPatterns flag promotional language the site's abuse filters key on.
// A rejected note is replaced by a template, never sent.
var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:buy|sale|discount|offer|promotion)\b`),
	regexp.MustCompile(`(?i)\b(?:free|cheap|easy|quick)\b`),
	regexp.MustCompile(`!{3,}`),
	regexp.MustCompile(`\?{3,}`),
	regexp.MustCompile(`\.{3,}`),
	regexp.MustCompile(`\$\d+`),
}

const placeholderArtifacts = "{}[]<>"

// validateMessage checks AI output against the quality rubric. A non-nil
// error names the first rule the text broke; the caller logs it and falls
// back to a template.
func validateMessage(text string, p schemas.Prospect, cfg config.ContentConfig) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("empty text")
	}

	if n := utf8.RuneCountInString(trimmed); n > cfg.MaxLength {
		return fmt.Errorf("text is %d characters, limit is %d", n, cfg.MaxLength)
	}

	if i := strings.IndexAny(trimmed, placeholderArtifacts); i >= 0 {
		return fmt.Errorf("text contains placeholder artifact %q", trimmed[i])
	}

	for _, re := range spamPatterns {
		if m := re.FindString(trimmed); m != "" {
			return fmt.Errorf("text matches spam pattern %q", m)
		}
	}

	if cfg.RequirePersonalization && !isPersonalized(trimmed, p) {
		return fmt.Errorf("text mentions none of the prospect's name, title, company or industry")
	}
	return nil
}

// isPersonalized reports whether the text references at least one
// prospect-specific token.
func isPersonalized(text string, p schemas.Prospect) bool {
	lower := strings.ToLower(text)
	for _, token := range []string{p.FirstName(), p.JobTitle, p.Company, p.Industry} {
		if token == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(token)) {
			return true
		}
	}
	return false
}
