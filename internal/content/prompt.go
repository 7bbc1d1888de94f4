// internal/content/prompt.go
package content

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/courier-cli/api/schemas"
)

const systemPrompt = `You are a professional networking expert writing LinkedIn connection request notes.

Requirements:
- Professional but personable tone
- Reference specific profile elements from the context provided
- Keep under %d characters (the site's note limit)
- Avoid generic phrases like "I came across your profile"
- Include a clear, professional reason for connecting
- Do not use emojis or excessive punctuation
- Make it sound natural and human-written

Reply with the note text only, without quotes, explanations or additional text.`

// buildPrompt assembles the system and user prompts for one prospect. Context
// lines are emitted only for fields that carry data so the model never sees
// empty labels to parrot back.
func buildPrompt(p schemas.Prospect, maxLength int) (system, user string) {
	var ctx strings.Builder
	if p.JobTitle != "" && p.Company != "" {
		fmt.Fprintf(&ctx, "- Current Role: %s at %s\n", p.JobTitle, p.Company)
	} else if p.JobTitle != "" {
		fmt.Fprintf(&ctx, "- Current Role: %s\n", p.JobTitle)
	} else if p.Company != "" {
		fmt.Fprintf(&ctx, "- Company: %s\n", p.Company)
	}
	if p.Industry != "" {
		fmt.Fprintf(&ctx, "- Industry: %s\n", p.Industry)
	}
	if p.Headline != "" {
		fmt.Fprintf(&ctx, "- Headline: %s\n", truncateRunes(p.Headline, 200))
	}

	who := p.Name
	if p.JobTitle != "" {
		who += ", a " + p.JobTitle
	}
	if p.Company != "" {
		who += " at " + p.Company
	}

	user = fmt.Sprintf("Write a connection request note for %s.", who)
	if ctx.Len() > 0 {
		user += "\n\nContext:\n" + strings.TrimRight(ctx.String(), "\n")
	}
	return fmt.Sprintf(systemPrompt, maxLength), user
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
