// Package classifier decides whether a page is a job-application form using
// weighted keyword heuristics. It runs entirely on a page snapshot and is
// deterministic for a given weight table version.
package classifier

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/v0xg/jobfill/internal/dom"
)

// Methods reported for the short-circuit exclusions.
const (
	MethodQuickExclusion = "Quick Exclusion"
	MethodMinimalContent = "Minimal Content"
)

// Signal categories.
const (
	CategoryURLStrong     = "url_strong"
	CategoryURLMedium     = "url_medium"
	CategoryTitleStrong   = "title_strong"
	CategoryTitleMedium   = "title_medium"
	CategoryInputStrong   = "input_strong"
	CategoryInputMedium   = "input_medium"
	CategoryInputBasic    = "input_basic"
	CategoryHeadingStrong = "heading_strong"
	CategoryHeadingMedium = "heading_medium"
	CategoryText          = "text"
	CategoryResumeUpload  = "resume_upload"
	CategoryApplyButton   = "apply_button"
	CategoryComplexity    = "form_complexity"
	CategoryStructure     = "application_structure"
	CategoryPenalty       = "penalty"
)

// Signal is one contribution to the score.
type Signal struct {
	Category string  `json:"category"`
	Keyword  string  `json:"keyword"`
	Weight   float64 `json:"weight"`
}

// Result is the verdict for one page.
type Result struct {
	Score     float64  `json:"score"`
	Threshold float64  `json:"threshold"`
	IsMatch   bool     `json:"is_match"`
	Signals   []Signal `json:"contributing_signals"`
	Method    string   `json:"method"`
	Version   int      `json:"weights_version"`
}

// Classifier scores pages against one weight table.
type Classifier struct {
	weights *Weights
	logger  *zap.Logger
}

// New returns a classifier over w, or over the embedded table when w is nil.
func New(w *Weights, logger *zap.Logger) *Classifier {
	if w == nil {
		w = DefaultWeights()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{weights: w, logger: logger.Named("classifier")}
}

// Classify scores snap. It never fails: an unparsable document contributes
// no page signals.
func (c *Classifier) Classify(snap dom.Snapshot) Result {
	w := c.weights
	url := strings.ToLower(snap.URL)
	title := strings.ToLower(snap.Title)

	res := Result{Threshold: w.Threshold, Version: w.Version, Signals: []Signal{}}

	if containsAny(url, w.ExcludedDomains) || containsAny(url, w.ExcludedURLFragments) {
		res.Method = MethodQuickExclusion
		c.logger.Debug("quick exclusion", zap.String("url", snap.URL))
		return res
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.HTML))
	if err != nil {
		c.logger.Debug("unparsable document", zap.Error(err))
		doc = nil
	}

	body := strings.TrimSpace(snap.Text)
	if body == "" && doc != nil {
		body = strings.TrimSpace(doc.Find("body").Text())
	}
	if utf8.RuneCountInString(body) < w.MinTextLength {
		res.Method = MethodMinimalContent
		return res
	}

	s := &scorer{weights: w, signals: []Signal{}}
	s.url(url)
	s.title(title)
	if doc != nil {
		s.inputs(doc)
		s.headings(doc)
		s.text(doc)
		s.bonuses(doc)
	}
	s.penalty(url, title)

	res.Score = s.score
	res.Signals = s.signals
	res.IsMatch = s.score >= w.Threshold
	if res.IsMatch {
		res.Method = fmt.Sprintf("Enhanced Score (%.1f >= %g)", s.score, w.Threshold)
	} else {
		res.Method = fmt.Sprintf("Enhanced Score (%.1f < %g)", s.score, w.Threshold)
	}

	c.logger.Debug("classified",
		zap.String("url", snap.URL),
		zap.Float64("score", res.Score),
		zap.Bool("match", res.IsMatch),
		zap.Int("signals", len(res.Signals)),
	)
	return res
}

type scorer struct {
	weights *Weights
	score   float64
	signals []Signal
}

func (s *scorer) add(category, keyword string, weight float64) {
	s.score += weight
	s.signals = append(s.signals, Signal{Category: category, Keyword: keyword, Weight: weight})
}

// tier adds every keyword of t found in text that is not yet in seen and
// reports how many were added.
func (s *scorer) tier(category string, t Tier, text string, seen map[string]bool) int {
	n := 0
	for _, kw := range t.Keywords {
		if seen != nil && seen[kw] {
			continue
		}
		if strings.Contains(text, kw) {
			s.add(category, kw, t.Weight)
			if seen != nil {
				seen[kw] = true
			}
			n++
		}
	}
	return n
}

func (s *scorer) url(url string) {
	if s.tier(CategoryURLStrong, s.weights.URLStrong, url, nil) == 0 {
		s.tier(CategoryURLMedium, s.weights.URLMedium, url, nil)
	}
}

func (s *scorer) title(title string) {
	if s.tier(CategoryTitleStrong, s.weights.TitleStrong, title, nil) == 0 {
		s.tier(CategoryTitleMedium, s.weights.TitleMedium, title, nil)
	}
}

func (s *scorer) inputs(doc *goquery.Document) {
	seen := make(map[string]bool)
	doc.Find("input, textarea, select").Each(func(_ int, field *goquery.Selection) {
		combined := strings.ToLower(strings.Join([]string{
			field.AttrOr("name", ""),
			field.AttrOr("id", ""),
			field.AttrOr("placeholder", ""),
			field.AttrOr("aria-label", ""),
			labelText(doc, field),
		}, " "))
		s.tier(CategoryInputStrong, s.weights.InputStrong, combined, seen)
		s.tier(CategoryInputMedium, s.weights.InputMedium, combined, seen)
		s.tier(CategoryInputBasic, s.weights.InputBasic, combined, seen)
	})
}

func (s *scorer) headings(doc *goquery.Document) {
	seen := make(map[string]bool)
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, h *goquery.Selection) {
		text := strings.ToLower(h.Text())
		s.tier(CategoryHeadingStrong, s.weights.HeadingStrong, text, seen)
		s.tier(CategoryHeadingMedium, s.weights.HeadingMedium, text, seen)
	})
}

func (s *scorer) text(doc *goquery.Document) {
	t := s.weights.Text
	seen := make(map[string]bool)
	matches := 0
	doc.Find(`p, li, dt, dd, span, div[class*="description"], div[class*="content"]`).
		EachWithBreak(func(_ int, el *goquery.Selection) bool {
			text := strings.ToLower(el.Text())
			n := utf8.RuneCountInString(text)
			if n <= t.MinLength || n >= t.MaxLength {
				return true
			}
			for _, kw := range t.Keywords {
				if seen[kw] || !strings.Contains(text, kw) {
					continue
				}
				s.add(CategoryText, kw, t.Weight)
				seen[kw] = true
				matches++
				if matches >= t.MaxMatches {
					return false
				}
			}
			return true
		})
}

func (s *scorer) bonuses(doc *goquery.Document) {
	w := s.weights

	if resume := doc.Find(`input[type="file"]`).FilterFunction(isResumeInput(doc)); resume.Length() > 0 {
		s.add(CategoryResumeUpload, "file upload", w.ResumeUpload)
	}

	doc.Find(`button[type="submit"], input[type="submit"], button`).EachWithBreak(func(_ int, b *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(b.Text()))
		if text == "" {
			text = strings.ToLower(b.AttrOr("value", ""))
		}
		for _, phrase := range w.ApplyButton.Phrases {
			if strings.Contains(text, phrase) {
				s.add(CategoryApplyButton, phrase, w.ApplyButton.Weight)
				return false
			}
		}
		return true
	})

	fields := doc.Find("input, textarea, select").Length()
	switch {
	case w.Complexity.HighFields > 0 && fields >= w.Complexity.HighFields:
		s.add(CategoryComplexity, fmt.Sprintf("%d fields", fields), w.Complexity.HighWeight)
	case w.Complexity.Fields > 0 && fields >= w.Complexity.Fields:
		s.add(CategoryComplexity, fmt.Sprintf("%d fields", fields), w.Complexity.Weight)
	}

	present := 0
	for _, part := range []string{"resume", "first", "last", "email"} {
		sel := fmt.Sprintf(`input[name*=%q], input[id*=%q]`, part, part)
		if doc.Find(sel).Length() > 0 {
			present++
		}
	}
	if w.Structure.MinFields > 0 && present >= w.Structure.MinFields {
		s.add(CategoryStructure, fmt.Sprintf("%d of 4 fields", present), w.Structure.Weight)
	}
}

func (s *scorer) penalty(url, title string) {
	for _, p := range s.weights.Penalty.Patterns {
		if strings.Contains(url, p) || strings.Contains(title, p) {
			s.add(CategoryPenalty, p, -s.weights.Penalty.Weight)
			return
		}
	}
}

func isResumeInput(doc *goquery.Document) func(int, *goquery.Selection) bool {
	return func(_ int, in *goquery.Selection) bool {
		accept := strings.ToLower(in.AttrOr("accept", ""))
		name := strings.ToLower(in.AttrOr("name", ""))
		id := strings.ToLower(in.AttrOr("id", ""))
		label := strings.ToLower(labelText(doc, in))

		return strings.Contains(accept, "pdf") || strings.Contains(accept, "doc") ||
			strings.Contains(name, "resume") || strings.Contains(name, "cv") ||
			strings.Contains(id, "resume") || strings.Contains(id, "cv") ||
			strings.Contains(label, "resume") || strings.Contains(label, "cv") ||
			(strings.Contains(label, "upload") &&
				(strings.Contains(label, "document") || strings.Contains(label, "file")))
	}
}

// labelText joins the text of every <label> associated with field, either
// through for= or by nesting.
func labelText(doc *goquery.Document, field *goquery.Selection) string {
	var parts []string
	if id, ok := field.Attr("id"); ok && id != "" {
		doc.Find("label").Each(func(_ int, l *goquery.Selection) {
			if l.AttrOr("for", "") == id {
				parts = append(parts, l.Text())
			}
		})
	}
	field.ParentsFiltered("label").Each(func(_ int, l *goquery.Selection) {
		parts = append(parts, l.Text())
	})
	return strings.Join(parts, " ")
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}
