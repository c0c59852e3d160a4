package jobinfo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/jobfill/internal/dom"
	"github.com/v0xg/jobfill/internal/dom/domtest"
)

const filledForm = `<html><body><form>
	<label for="first_name">First Name</label>
	<input id="first_name" name="fname" value="Ada">
	<div class="row"><span class="field-label">Work email</span><input name="email" value="ada@example.com"></div>
	<div><input name="linkedinProfile" value="https://linkedin.com/in/ada"></div>
	<div><input name="years_experience" value="7"></div>
	<div><input name="nickname" value=""></div>
	<div><input value="orphan"></div>
	<input type="hidden" name="csrf" value="tok">
	<div><input type="checkbox" name="relocate" value="yes" checked></div>
	<div><input type="checkbox" name="newsletter" value="yes"></div>
	<div><select name="country"><option value="us">United States</option><option value="ca" selected>Canada</option></select></div>
	<div><textarea name="cover_note">Happy to relocate.</textarea></div>
	<div><input type="file" name="resume" data-jobfill-file="ada.pdf"></div>
	<div><input type="file" id="cover_letter_upload" data-jobfill-file="letter.pdf"></div>
	<input type="submit" name="go" value="Submit">
</form></body></html>`

func TestCollectAnswers(t *testing.T) {
	page := domtest.NewPage("Thanks for applying")
	page.URL = "https://jobs.example.com/apply/42"
	page.Title = "Backend Engineer - Acme"
	page.HTML = filledForm

	snap, err := page.Snapshot(context.Background())
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	got := CollectAnswers(snap, at)

	assert.Equal(t, map[string]string{
		"First Name":       "Ada",
		"Work email":       "ada@example.com",
		"Linkedin Profile": "https://linkedin.com/in/ada",
		"Years experience": "7",
		"Relocate":         "yes",
		"Country":          "ca",
		"Cover note":       "Happy to relocate.",
	}, got.Fields)
	assert.Equal(t, "ada.pdf", got.ResumeUsed)
	assert.Equal(t, "letter.pdf", got.CoverLetterUsed)
	assert.Equal(t, "https://jobs.example.com/apply/42", got.PageURL)
	assert.Equal(t, "Backend Engineer - Acme", got.PageTitle)
	assert.Equal(t, time.UTC, got.SubmittedAt.Location())
	assert.True(t, got.SubmittedAt.Equal(at))
}

func TestCollectAnswers_SelectWithoutSelection(t *testing.T) {
	snap := dom.Snapshot{HTML: `<div><select id="size"><option value="s">S</option><option value="m">M</option></select></div>`}
	got := CollectAnswers(snap, time.Now())
	assert.Equal(t, map[string]string{"Size": "s"}, got.Fields, "a select shows its first option")
}

func TestCollectAnswers_EmptyPage(t *testing.T) {
	got := CollectAnswers(dom.Snapshot{URL: "https://example.com"}, time.Now())
	assert.NotNil(t, got.Fields)
	assert.Empty(t, got.Fields)
	assert.Empty(t, got.ResumeUsed)
}

func TestHumanize(t *testing.T) {
	tests := map[string]string{
		"firstName":  "First Name",
		"first_name": "First name",
		"zip-code":   "Zip code",
		"email":      "Email",
	}
	for in, want := range tests {
		assert.Equal(t, want, humanize(in), in)
	}
}
