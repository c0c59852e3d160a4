// Package jobinfo pulls the posting details out of an application page so a
// run can be reported to the application-history collaborator.
package jobinfo

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/v0xg/jobfill/internal/dom"
)

// MaxDescription caps the stored description length in characters.
const MaxDescription = 500

// StatusApplied is the status recorded for a submitted application.
const StatusApplied = "applied"

// Info describes one job posting.
type Info struct {
	URL         string `json:"job_url"`
	Title       string `json:"job_title,omitempty"`
	Company     string `json:"company_name,omitempty"`
	Description string `json:"job_description,omitempty"`
	Location    string `json:"job_location,omitempty"`
	Status      string `json:"application_status"`
}

var titleSeparator = regexp.MustCompile(`\s*[-|–]\s*`)

var descriptionSelectors = []string{
	".job-description",
	"#job-description",
	`[data-test="job-description"]`,
	".description",
	".job-details",
	".details",
	"section.description",
	`div[class*="description"]`,
	`div[class*="job-description"]`,
	`div[id*="job-description"]`,
}

var locationSelectors = []string{
	`meta[name="job-location"]`,
	`meta[property="job:location"]`,
	".job-location",
	".location",
	`[data-test="location"]`,
	`div[class*="location"]`,
	`span[class*="location"]`,
}

// Extract reads job details from snap. The page title is split on the
// first dash or pipe into job title and company.
func Extract(snap dom.Snapshot) Info {
	info := Info{URL: snap.URL, Status: StatusApplied}

	parts := titleSeparator.Split(strings.TrimSpace(snap.Title), -1)
	if len(parts) >= 2 {
		info.Title = strings.TrimSpace(parts[0])
		info.Company = strings.TrimSpace(parts[1])
	} else {
		info.Title = strings.TrimSpace(snap.Title)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.HTML))
	if err != nil {
		return info
	}

	for _, sel := range descriptionSelectors {
		if el := doc.Find(sel).First(); el.Length() > 0 {
			info.Description = truncate(strings.TrimSpace(el.Text()), MaxDescription)
			break
		}
	}

	for _, sel := range locationSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if goquery.NodeName(el) == "meta" {
			info.Location = strings.TrimSpace(el.AttrOr("content", ""))
		} else {
			info.Location = strings.TrimSpace(el.Text())
		}
		break
	}
	return info
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
