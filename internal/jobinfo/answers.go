package jobinfo

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/v0xg/jobfill/internal/dom"
)

// Answers is what the form held when a run finished.
type Answers struct {
	Fields          map[string]string `json:"answers_provided"`
	ResumeUsed      string            `json:"resume_used,omitempty"`
	CoverLetterUsed string            `json:"cover_letter_used,omitempty"`
	PageURL         string            `json:"page_url"`
	PageTitle       string            `json:"page_title"`
	SubmittedAt     time.Time         `json:"form_submission_time"`
}

var labelLike = []string{
	"label",
	`div[class*="label"]`,
	`span[class*="label"]`,
	`div[class*="field-name"]`,
	`span[class*="field-name"]`,
}

var upperRun = regexp.MustCompile(`([A-Z])`)

// CollectAnswers reads the filled controls of snap, keyed by field label.
// Controls without a value or without a name and id are skipped, as are
// unchecked boxes and buttons. Attached files are reported by name through
// dom.FileNameAttr.
func CollectAnswers(snap dom.Snapshot, at time.Time) Answers {
	out := Answers{
		Fields:      map[string]string{},
		PageURL:     snap.URL,
		PageTitle:   snap.Title,
		SubmittedAt: at.UTC(),
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.HTML))
	if err != nil {
		return out
	}

	doc.Find("input, textarea, select").Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		typ := strings.ToLower(s.AttrOr("type", ""))
		id := s.AttrOr("name", "")
		if id == "" {
			id = s.AttrOr("id", "")
		}

		if tag == "input" && typ == "file" {
			name := s.AttrOr(dom.FileNameAttr, "")
			key := strings.ToLower(id + " " + s.AttrOr("id", ""))
			switch {
			case name == "":
			case strings.Contains(key, "cover"):
				if out.CoverLetterUsed == "" {
					out.CoverLetterUsed = name
				}
			case strings.Contains(key, "resume"), strings.Contains(key, "cv"):
				if out.ResumeUsed == "" {
					out.ResumeUsed = name
				}
			}
			return
		}

		value, ok := controlValue(s, tag, typ)
		if !ok || value == "" || id == "" {
			return
		}
		out.Fields[fieldLabel(doc, s, id)] = value
	})
	return out
}

func controlValue(s *goquery.Selection, tag, typ string) (string, bool) {
	switch tag {
	case "textarea":
		return s.Text(), true
	case "select":
		opt := s.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = s.Find("option").First()
		}
		if v, ok := opt.Attr("value"); ok {
			return v, true
		}
		return strings.TrimSpace(opt.Text()), true
	}
	switch typ {
	case "hidden", "submit", "button", "reset", "image":
		return "", false
	case "checkbox", "radio":
		if _, checked := s.Attr("checked"); !checked {
			return "", false
		}
		return s.AttrOr("value", "on"), true
	}
	return s.AttrOr("value", ""), true
}

// fieldLabel prefers a label[for] naming the control's id or name, then the first label-like sibling under
// the same parent, then a humanised form of the field name.
func fieldLabel(doc *goquery.Document, s *goquery.Selection, id string) string {
	for _, ref := range []string{s.AttrOr("id", ""), id} {
		if ref == "" {
			continue
		}
		label := doc.Find(`label[for="` + cssEscape(ref) + `"]`).First()
		if text := strings.TrimSpace(label.Text()); text != "" {
			return text
		}
	}
	parent := s.Parent()
	for _, sel := range labelLike {
		var found string
		parent.Find(sel).EachWithBreak(func(_ int, l *goquery.Selection) bool {
			found = strings.TrimSpace(l.Text())
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return humanize(id)
}

// humanize turns "firstName" or "first_name" into "First Name" or
// "First name".
func humanize(id string) string {
	s := upperRun.ReplaceAllString(id, " $1")
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func cssEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
