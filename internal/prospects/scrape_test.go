package prospects_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/courier-cli/api/schemas"
	"github.com/xkilldash9x/courier-cli/internal/prospects"
)

const classMarkupHTML = `<!DOCTYPE html>
<html>
<head><title>Priya Sharma | LinkedIn</title></head>
<body>
  <main>
    <section class="top-card">
      <h1>
        <span>Priya
          Sharma</span>
      </h1>
      <div class="text-body-medium break-words">Staff Engineer at Acme Robotics</div>
      <span class="text-body-small">Berlin, Germany</span>
    </section>
    <section><h2>Activity</h2></section>
  </main>
</body>
</html>`

const taggedMarkupHTML = `<html><body>
  <h1 data-test-id="profile-name">Noah Okafor</h1>
  <p data-test-id="headline">Founder at Lagos Mobility Labs</p>
</body></html>`

const sparseMarkupHTML = `<html><body><main>
  <h1> </h1>
  <h1>Ana Ruiz</h1>
  <div>Independent consultant</div>
</main></body></html>`

func TestExtractProfileClassMarkup(t *testing.T) {
	card := prospects.ExtractProfile(classMarkupHTML)

	assert.Equal(t, "Priya Sharma", card.Name, "nested whitespace should collapse")
	assert.Equal(t, "Staff Engineer at Acme Robotics", card.Headline)
	assert.Equal(t, "Staff Engineer", card.JobTitle)
	assert.Equal(t, "Acme Robotics", card.Company)
}

func TestExtractProfileTaggedMarkup(t *testing.T) {
	card := prospects.ExtractProfile(taggedMarkupHTML)

	assert.Equal(t, "Noah Okafor", card.Name)
	assert.Equal(t, "Founder at Lagos Mobility Labs", card.Headline)
	assert.Equal(t, "Founder", card.JobTitle)
	assert.Equal(t, "Lagos Mobility Labs", card.Company)
}

func TestExtractProfileSkipsEmptyNodes(t *testing.T) {
	card := prospects.ExtractProfile(sparseMarkupHTML)

	assert.Equal(t, "Ana Ruiz", card.Name, "blank leading h1 should be passed over")
	assert.Empty(t, card.Headline)
	assert.Empty(t, card.JobTitle)
	assert.Empty(t, card.Company)
}

func TestExtractProfileSkipsOversizedContainers(t *testing.T) {
	filler := strings.Repeat("lorem ipsum dolor ", 20)
	page := `<html><body><span class="feed">` + filler +
		` she works at many places <span>Product Lead at Nimbus Health</span></span></body></html>`

	card := prospects.ExtractProfile(page)

	assert.Equal(t, "Product Lead at Nimbus Health", card.Headline)
	assert.Equal(t, "Product Lead", card.JobTitle)
	assert.Equal(t, "Nimbus Health", card.Company)
}

func TestExtractProfileKeepsUnsplittableHeadline(t *testing.T) {
	page := `<html><body>
	  <h1 data-test-id="profile-name">Mira Chen</h1>
	  <p data-test-id="headline">Security researcher and speaker</p>
	</body></html>`

	card := prospects.ExtractProfile(page)

	assert.Equal(t, "Security researcher and speaker", card.Headline)
	assert.Empty(t, card.JobTitle)
	assert.Empty(t, card.Company)
}

func TestExtractProfileDegradesToEmptyFields(t *testing.T) {
	card := prospects.ExtractProfile("plain text, no markup at all")

	assert.Empty(t, card.Name)
	assert.Empty(t, card.Headline)
	assert.Empty(t, card.JobTitle)
	assert.Empty(t, card.Company)
}

func TestBackfillFillsOnlyEmptyFields(t *testing.T) {
	p := schemas.Prospect{
		ProfileURL: "https://www.linkedin.com/in/ana-ruiz",
		Company:    "Keystone Ventures",
	}
	card := prospects.ProfileCard{
		Name:     "Ana Ruiz",
		Headline: "CTO at ShouldNotWin",
		JobTitle: "CTO",
		Company:  "ShouldNotWin",
	}

	prospects.Backfill(&p, card)

	assert.Equal(t, "Ana Ruiz", p.Name)
	assert.Equal(t, "CTO at ShouldNotWin", p.Headline)
	assert.Equal(t, "CTO", p.JobTitle)
	assert.Equal(t, "Keystone Ventures", p.Company, "operator-supplied fields win")
}

// -- Scraper over a fake driver --

type scrapeDriver struct {
	navigated []string
	html      string
	navErr    error
	htmlErr   error
}

func (d *scrapeDriver) Navigate(_ context.Context, url string) error {
	d.navigated = append(d.navigated, url)
	return d.navErr
}

func (d *scrapeDriver) WaitVisible(context.Context, schemas.Strategy, time.Duration) error {
	return nil
}

func (d *scrapeDriver) Click(context.Context, schemas.ResolvedElement) error { return nil }

func (d *scrapeDriver) Fill(context.Context, schemas.ResolvedElement, string) error { return nil }

func (d *scrapeDriver) PageText(context.Context) (string, error) { return "", nil }

func (d *scrapeDriver) OuterHTML(context.Context) (string, error) { return d.html, d.htmlErr }

func TestNewScraperRequiresDriver(t *testing.T) {
	_, err := prospects.NewScraper(nil, zap.NewNop())
	require.Error(t, err)
}

func TestScrapeExtractsProfileCard(t *testing.T) {
	driver := &scrapeDriver{html: classMarkupHTML}
	s, err := prospects.NewScraper(driver, zap.NewNop())
	require.NoError(t, err)

	card, err := s.Scrape(context.Background(), "https://www.linkedin.com/in/priya-sharma")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://www.linkedin.com/in/priya-sharma"}, driver.navigated)
	assert.Equal(t, "Priya Sharma", card.Name)
	assert.Equal(t, "Acme Robotics", card.Company)
}

func TestScrapeNavigationFailure(t *testing.T) {
	driver := &scrapeDriver{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	s, err := prospects.NewScraper(driver, zap.NewNop())
	require.NoError(t, err)

	_, err = s.Scrape(context.Background(), "https://www.linkedin.com/in/gone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading profile for extraction")
}

func TestScrapeCaptureFailure(t *testing.T) {
	driver := &scrapeDriver{htmlErr: errors.New("target closed")}
	s, err := prospects.NewScraper(driver, zap.NewNop())
	require.NoError(t, err)

	_, err = s.Scrape(context.Background(), "https://www.linkedin.com/in/priya-sharma")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capturing profile html")
}
