package ai

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/v0xg/jobfill/internal/dom"
	"github.com/v0xg/jobfill/internal/protocol"
)

const maxButtonText = 50

// FormMap is the analyzed form structure of a page, sent to the model in
// place of the raw HTML.
type FormMap struct {
	URL     string   `json:"url"`
	Title   string   `json:"title"`
	Fields  []Field  `json:"fields"`
	Buttons []Button `json:"buttons"`
}

// Field is one fillable control.
type Field struct {
	Selector    protocol.Selector `json:"selector"`
	Type        string            `json:"type"` // text, email, textarea, select, checkbox, radio, file...
	Name        string            `json:"name,omitempty"`
	ID          string            `json:"id,omitempty"`
	Placeholder string            `json:"placeholder,omitempty"`
	AriaLabel   string            `json:"aria_label,omitempty"`
	Label       string            `json:"label,omitempty"`
	Required    bool              `json:"required,omitempty"`
	Options     []string          `json:"options,omitempty"`
}

// Hints returns the strings a profile key is matched against, most
// specific first.
func (f Field) Hints() []string {
	var hints []string
	for _, h := range []string{f.Name, f.ID, f.Placeholder, f.AriaLabel, f.Label} {
		if h != "" {
			hints = append(hints, h)
		}
	}
	return hints
}

// Description is a human-readable name for the field.
func (f Field) Description() string {
	for _, s := range []string{f.Label, f.AriaLabel, f.Placeholder, f.Name, f.ID} {
		if s != "" {
			return s
		}
	}
	return f.Type
}

// Button is a clickable control.
type Button struct {
	Selector protocol.Selector `json:"selector"`
	Text     string            `json:"text"`
	Type     string            `json:"type,omitempty"`
}

// validIdent matches ids and names that are safe inside a CSS selector.
var validIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

var spaces = regexp.MustCompile(`\s+`)

// BuildFormMap parses snap and lists its visible form controls in document
// order. Hidden inputs and submit/button inputs are listed as buttons or
// skipped.
func BuildFormMap(snap dom.Snapshot) (*FormMap, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page html: %w", err)
	}

	fm := &FormMap{URL: snap.URL, Title: snap.Title, Fields: []Field{}, Buttons: []Button{}}
	labels := labelsByID(doc)

	doc.Find("input, textarea, select, button, [role=button]").Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		typ := strings.ToLower(s.AttrOr("type", ""))

		if tag == "button" || s.AttrOr("role", "") == "button" || (tag == "input" && (typ == "submit" || typ == "button")) {
			text := strings.TrimSpace(spaces.ReplaceAllString(s.Text(), " "))
			if text == "" {
				text = s.AttrOr("value", "")
			}
			text = truncate(text, maxButtonText)
			fm.Buttons = append(fm.Buttons, Button{Selector: selectorFor(s, tag), Text: text, Type: typ})
			return
		}
		if tag == "input" && (typ == "hidden" || typ == "image" || typ == "reset") {
			return
		}

		f := Field{
			Selector:    selectorFor(s, tag),
			Type:        fieldType(tag, typ),
			Name:        s.AttrOr("name", ""),
			ID:          s.AttrOr("id", ""),
			Placeholder: s.AttrOr("placeholder", ""),
			AriaLabel:   s.AttrOr("aria-label", ""),
			Required:    s.Is("[required]") || s.AttrOr("aria-required", "") == "true",
		}
		if f.ID != "" {
			f.Label = labels[f.ID]
		}
		if f.Label == "" {
			if wrap := s.Closest("label"); wrap.Length() > 0 {
				f.Label = strings.TrimSpace(spaces.ReplaceAllString(wrap.Text(), " "))
			}
		}
		if tag == "select" {
			s.Find("option").Each(func(_ int, o *goquery.Selection) {
				if label := strings.TrimSpace(o.Text()); label != "" {
					f.Options = append(f.Options, label)
				}
			})
		}
		fm.Fields = append(fm.Fields, f)
	})
	return fm, nil
}

func labelsByID(doc *goquery.Document) map[string]string {
	labels := make(map[string]string)
	doc.Find("label[for]").Each(func(_ int, s *goquery.Selection) {
		id := s.AttrOr("for", "")
		if _, ok := labels[id]; !ok {
			labels[id] = strings.TrimSpace(spaces.ReplaceAllString(s.Text(), " "))
		}
	})
	return labels
}

func fieldType(tag, typ string) string {
	switch tag {
	case "textarea", "select":
		return tag
	}
	if typ == "" {
		return "text"
	}
	return typ
}

// selectorFor prefers id, then name, then aria-label and placeholder, and
// falls back to a structural CSS path.
func selectorFor(s *goquery.Selection, tag string) protocol.Selector {
	if id := s.AttrOr("id", ""); validIdent.MatchString(id) {
		return protocol.Selector{Kind: protocol.SelectorID, Value: id}
	}
	if name := s.AttrOr("name", ""); name != "" {
		return protocol.Selector{Kind: protocol.SelectorName, Value: name}
	}
	if aria := s.AttrOr("aria-label", ""); aria != "" {
		return protocol.Selector{Kind: protocol.SelectorAriaLabel, Value: aria}
	}
	if ph := s.AttrOr("placeholder", ""); ph != "" {
		return protocol.Selector{Kind: protocol.SelectorPlaceholder, Value: ph}
	}
	return protocol.Selector{Kind: protocol.SelectorCSS, Value: cssPath(s, tag)}
}

// cssPath builds an nth-child chain up to the nearest ancestor with an id.
func cssPath(s *goquery.Selection, tag string) string {
	var parts []string
	for cur := s; cur.Length() > 0; cur = cur.Parent() {
		name := goquery.NodeName(cur)
		if name == "html" || name == "#document" || name == "" {
			break
		}
		if id := cur.AttrOr("id", ""); validIdent.MatchString(id) {
			parts = append(parts, "#"+id)
			break
		}
		parts = append(parts, fmt.Sprintf("%s:nth-child(%d)", name, cur.Index()+1))
	}
	if len(parts) == 0 {
		return tag
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// truncate cuts s to n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
