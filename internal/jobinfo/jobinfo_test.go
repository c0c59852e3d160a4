package jobinfo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/v0xg/jobfill/internal/dom"
)

func TestExtract(t *testing.T) {
	snap := dom.Snapshot{
		URL:   "https://boards.greenhouse.io/acme/jobs/42",
		Title: "Backend Engineer - Acme Corp | Greenhouse",
		HTML: `<html><head><meta name="job-location" content=" Berlin, Germany "></head><body>
			<div class="job-description">  Build reliable services.  </div>
			<span class="location">Remote</span>
		</body></html>`,
	}

	info := Extract(snap)
	assert.Equal(t, "https://boards.greenhouse.io/acme/jobs/42", info.URL)
	assert.Equal(t, "Backend Engineer", info.Title)
	assert.Equal(t, "Acme Corp", info.Company)
	assert.Equal(t, "Build reliable services.", info.Description)
	assert.Equal(t, "Berlin, Germany", info.Location)
	assert.Equal(t, StatusApplied, info.Status)
}

func TestExtract_TitleWithoutSeparator(t *testing.T) {
	info := Extract(dom.Snapshot{Title: "  Careers  ", HTML: "<body></body>"})
	assert.Equal(t, "Careers", info.Title)
	assert.Empty(t, info.Company)
	assert.Empty(t, info.Description)
	assert.Empty(t, info.Location)
}

func TestExtract_EnDashAndTruncation(t *testing.T) {
	long := strings.Repeat("é", MaxDescription+20)
	info := Extract(dom.Snapshot{
		Title: "Data Scientist – Initech",
		HTML:  `<section class="description">` + long + `</section><div class="job-location">Austin, TX</div>`,
	})
	assert.Equal(t, "Data Scientist", info.Title)
	assert.Equal(t, "Initech", info.Company)
	assert.Equal(t, MaxDescription, len([]rune(info.Description)))
	assert.Equal(t, "Austin, TX", info.Location)
}
