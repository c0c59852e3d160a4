package profile

import (
	"sort"
	"strings"
)

// Mapping pairs a field hint with the value to type into matching fields.
// A field matches when its name, id, placeholder, aria-label or label text
// contains Key.
type Mapping struct {
	Key   string
	Value string
}

// Mappings returns the non-empty field mappings in match priority order.
// Specific keys come before the generic ones they contain ("first_name"
// before "name").
func (p *Profile) Mappings() []Mapping {
	full := p.FullName()
	state := p.StateProvince
	zip := p.ZipPostalCode

	candidates := []Mapping{
		{"first_name", p.FirstName},
		{"last_name", p.LastName},
		{"full_name", full},
		{"email", p.Email},
		{"phone", p.Phone},

		{"street_address", p.StreetAddress},
		{"address_line_1", p.StreetAddress},
		{"address_line_2", p.AddressLine2},
		{"state_province", state},
		{"postal_code", zip},
		{"zip_code", zip},
		{"address", p.FullAddress()},
		{"city", p.City},
		{"state", state},
		{"province", state},
		{"zip", zip},
		{"country", p.CountryOrDefault()},

		{"linkedin", p.LinkedInURL},
		{"github", p.GitHubURL},
		{"portfolio", p.PortfolioURL},
		{"website", p.WebsiteURL},

		{"desired_salary", p.DesiredSalary},
		{"work_authorization", p.WorkAuthorization},
		{"preferred_location", p.PreferredPlace},
	}

	custom := make([]string, 0, len(p.Custom))
	for k := range p.Custom {
		custom = append(custom, k)
	}
	sort.Strings(custom)
	for _, k := range custom {
		candidates = append(candidates, Mapping{strings.ToLower(k), p.Custom[k]})
	}

	// Generic name last: it is a substring of most name-like hints.
	candidates = append(candidates, Mapping{"name", full})

	out := candidates[:0]
	for _, m := range candidates {
		if m.Value != "" {
			out = append(out, m)
		}
	}
	return out
}

var hintSeparators = strings.NewReplacer(" ", "_", "-", "_")

// Match returns the first mapping whose key occurs in hint. Matching is
// case-insensitive and treats spaces and hyphens as underscores, so the
// label "First name" matches first_name.
func (p *Profile) Match(hint string) (Mapping, bool) {
	hint = strings.ToLower(hint)
	normalized := hintSeparators.Replace(hint)
	for _, m := range p.Mappings() {
		if strings.Contains(hint, m.Key) || strings.Contains(normalized, m.Key) {
			return m, true
		}
	}
	return Mapping{}, false
}
