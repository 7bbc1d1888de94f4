// internal/content/templates.go
package content

import (
	"math/rand"
	"strings"

	"github.com/xkilldash9x/courier-cli/api/schemas"
)

// category names the most specific template family a prospect's data
// supports. Families are ordered from richest to sparsest.
type category string

const (
	catJobTitleCompany category = "job_title_company"
	catJobTitle        category = "job_title"
	catIndustry        category = "industry"
	catGeneric         category = "generic"
)

// templateBank holds the deterministic fallback notes. Placeholders use
// {name}, {job_title}, {company} and {industry}; fillTemplate substitutes
// every one of them, so a filled note can never leak braces.
var templateBank = map[category][]string{
	catJobTitleCompany: {
		"Hi {name}, I'm impressed by your work as a {job_title} at {company}. I'm also in the {industry} space and would love to connect and exchange insights.",
		"Hello {name}, I noticed your role as {job_title} at {company}. Given our shared interest in {industry}, I'd appreciate connecting to discuss industry trends.",
		"Hi {name}, your experience as a {job_title} at {company} caught my attention. I'd value connecting with professionals in {industry}.",
		"Hello {name}, your background in {industry} as a {job_title} at {company} stood out to me. I'd be interested in connecting to learn from your experience.",
		"Hi {name}, as someone also working in {industry}, I'd love to connect. Your role as {job_title} at {company} aligns with my professional interests.",
	},
	catJobTitle: {
		"Hi {name}, I'm impressed by your work as a {job_title}. I'm also passionate about {industry} and would love to connect and exchange insights.",
		"Hello {name}, I noticed your role as {job_title} and wanted to reach out. Given our shared interest in {industry}, I'd appreciate connecting.",
		"Hi {name}, your experience as a {job_title} caught my attention. I'd value connecting with professionals in the {industry} field.",
		"Hello {name}, your background in {industry} as a {job_title} stood out to me. I'd be interested in connecting to learn from your experience.",
		"Hi {name}, as someone also working in {industry}, I'd love to connect. Your role as {job_title} aligns with my professional interests.",
	},
	catIndustry: {
		"Hi {name}, I'm impressed by your work in the {industry} industry. I'm also passionate about this field and would love to connect and exchange insights.",
		"Hello {name}, I noticed your involvement in the {industry} space and wanted to reach out. I'd appreciate connecting to discuss industry developments.",
		"Hi {name}, your experience in the {industry} industry caught my attention. I'd value connecting with professionals in this field.",
		"Hello {name}, your background in {industry} stood out to me. I'd be interested in connecting to learn from your experience.",
		"Hi {name}, as someone also working in {industry}, I'd love to connect. Your experience aligns with my professional interests.",
	},
	catGeneric: {
		"Hi {name}, I was impressed by your professional background. I'm always looking to expand my network with accomplished professionals like yourself.",
		"Hello {name}, I noticed we share some professional interests and thought it would be valuable to connect.",
		"Hi {name}, I'm impressed by your professional journey and would appreciate connecting with you.",
		"Hello {name}, I thought it would be valuable to connect. I'm always interested in expanding my professional network.",
		"Hi {name}, I'm looking to connect with professionals who are passionate about their work. Your profile caught my attention.",
	},
}

// categorize picks the richest family the prospect's fields can fill.
func categorize(p schemas.Prospect) category {
	switch {
	case p.JobTitle != "" && p.Company != "":
		return catJobTitleCompany
	case p.JobTitle != "":
		return catJobTitle
	case industryFor(p) != "":
		return catIndustry
	default:
		return catGeneric
	}
}

// industryFor returns the prospect's industry, inferring one from the company
// or job title when the record doesn't carry it.
func industryFor(p schemas.Prospect) string {
	if p.Industry != "" {
		return p.Industry
	}
	if p.Company != "" {
		if ind := industryFromCompany(p.Company); ind != "" {
			return ind
		}
	}
	if p.JobTitle != "" {
		return industryFromJobTitle(p.JobTitle)
	}
	return ""
}

var (
	techCompanies    = []string{"google", "microsoft", "amazon", "apple", "meta", "netflix", "tesla", "nvidia"}
	financeCompanies = []string{"jpmorgan", "goldman", "morgan", "citigroup", "bank", "capital", "credit"}
	healthCompanies  = []string{"pfizer", "novartis", "roche", "merck", "johnson", "medtronic", "abbott"}

	techTitles      = []string{"developer", "engineer", "programmer", "software", "tech", "data", "ai", "ml"}
	financeTitles   = []string{"analyst", "cfo", "finance", "accounting", "banking"}
	marketingTitles = []string{"marketer", "marketing", "brand", "content", "social", "digital", "growth"}
)

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func industryFromCompany(company string) string {
	c := strings.ToLower(company)
	switch {
	case containsAny(c, techCompanies):
		return "technology"
	case containsAny(c, financeCompanies):
		return "finance"
	case containsAny(c, healthCompanies):
		return "healthcare"
	}
	return ""
}

func industryFromJobTitle(title string) string {
	t := strings.ToLower(title)
	switch {
	case containsAny(t, techTitles):
		return "technology"
	case containsAny(t, financeTitles):
		return "finance"
	case containsAny(t, marketingTitles):
		return "marketing"
	}
	return "professional"
}

// fillTemplate substitutes every placeholder the bank uses.
func fillTemplate(tpl string, p schemas.Prospect) string {
	industry := industryFor(p)
	if industry == "" {
		industry = "professional"
	}
	return strings.NewReplacer(
		"{name}", p.FirstName(),
		"{job_title}", p.JobTitle,
		"{company}", p.Company,
		"{industry}", industry,
	).Replace(tpl)
}

// templateMessage composes the deterministic fallback note. It assumes the
// prospect has a name; the pipeline guards that before calling.
func templateMessage(p schemas.Prospect, rng *rand.Rand) (text string, template string) {
	cat := categorize(p)
	variants := templateBank[cat]
	idx := rng.Intn(len(variants))
	return fillTemplate(variants[idx], p), string(cat)
}
