// internal/prospects/scrape.go
package prospects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/courier-cli/api/schemas"
)

// maxHeadlineLen rejects container nodes whose string value merely happens to
// contain a headline marker. LinkedIn caps headlines at 220 characters.
const maxHeadlineLen = 220

// nameProbes and headlineProbes are ordered most-specific first; extraction
// takes the first node whose normalized text passes validation.
var nameProbes = []string{
	`//h1[@data-test-id='profile-name']`,
	`//*[@data-test-id='profile-name']`,
	`//main//h1`,
	`//h1`,
}

var headlineProbes = []string{
	`//*[@data-test-id='headline']`,
	`//*[@data-field='headline']`,
	`//*[contains(@class, 'text-body-medium')]`,
	`//h2[contains(., ' at ')]`,
	`//span[contains(., ' at ')]`,
}

// ProfileCard holds the fields extractable from a profile page. Any of them
// may be empty when the page did not yield a confident match.
type ProfileCard struct {
	Name     string
	Headline string
	JobTitle string
	Company  string
}

// Scraper captures a profile page and extracts prospect fields from it.
// Single mode uses it to backfill records the operator left incomplete.
type Scraper struct {
	driver schemas.PageDriver
	log    *zap.Logger
}

// NewScraper wires a scraper over an existing page driver.
func NewScraper(driver schemas.PageDriver, logger *zap.Logger) (*Scraper, error) {
	if driver == nil {
		return nil, errors.New("prospects: page driver must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{driver: driver, log: logger.Named("scraper")}, nil
}

// Scrape navigates to the profile and extracts whatever fields the page
// offers. Browser failures are returned; extraction itself never fails, it
// degrades to empty fields.
func (s *Scraper) Scrape(ctx context.Context, profileURL string) (ProfileCard, error) {
	if err := s.driver.Navigate(ctx, profileURL); err != nil {
		return ProfileCard{}, fmt.Errorf("loading profile for extraction: %w", err)
	}
	raw, err := s.driver.OuterHTML(ctx)
	if err != nil {
		return ProfileCard{}, fmt.Errorf("capturing profile html: %w", err)
	}

	card := ExtractProfile(raw)
	s.log.Debug("Profile extracted.",
		zap.String("url", profileURL),
		zap.String("name", card.Name),
		zap.String("company", card.Company),
	)
	return card, nil
}

// ExtractProfile pulls name, headline, job title and company out of serialized
// profile HTML. Missing or ambiguous sections come back as empty fields.
func ExtractProfile(rawHTML string) ProfileCard {
	doc, err := htmlquery.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ProfileCard{}
	}

	var card ProfileCard
	card.Name = firstText(doc, nameProbes, validName)
	card.Headline = firstText(doc, headlineProbes, validHeadline)
	if title, company, ok := splitHeadline(card.Headline); ok {
		card.JobTitle = title
		card.Company = company
	}
	return card
}

// Backfill copies extracted fields into empty prospect slots. Fields the
// operator supplied are never overwritten.
func Backfill(p *schemas.Prospect, card ProfileCard) {
	if strings.TrimSpace(p.Name) == "" {
		p.Name = card.Name
	}
	if strings.TrimSpace(p.Headline) == "" {
		p.Headline = card.Headline
	}
	if strings.TrimSpace(p.JobTitle) == "" {
		p.JobTitle = card.JobTitle
	}
	if strings.TrimSpace(p.Company) == "" {
		p.Company = card.Company
	}
}

// firstText walks probes in order and returns the first normalized node text
// that passes valid. Document order within a probe means an oversized
// container is skipped in favor of the tighter node inside it.
func firstText(doc *html.Node, probes []string, valid func(string) bool) string {
	for _, probe := range probes {
		nodes, err := htmlquery.QueryAll(doc, probe)
		if err != nil {
			continue
		}
		for _, node := range nodes {
			if text := collapse(htmlquery.InnerText(node)); valid(text) {
				return text
			}
		}
	}
	return ""
}

// collapse folds the whitespace runs InnerText produces for nested markup
// into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func validName(text string) bool {
	return len(text) > 1 && len(text) <= 120
}

func validHeadline(text string) bool {
	return text != "" && len(text) <= maxHeadlineLen
}

// splitHeadline parses the conventional "<title> at <company>" headline shape.
func splitHeadline(headline string) (title, company string, ok bool) {
	before, after, found := strings.Cut(headline, " at ")
	if !found {
		return "", "", false
	}
	title = strings.TrimSpace(before)
	company = strings.TrimSpace(after)
	if title == "" || company == "" {
		return "", "", false
	}
	return title, company, true
}
