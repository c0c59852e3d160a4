// Package profile holds the applicant data used to fill forms.
package profile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCountry is assumed when the profile has none.
const DefaultCountry = "United States"

// Profile is the applicant record supplied by the profile collaborator.
// Files may be YAML or JSON.
type Profile struct {
	FirstName string `yaml:"first_name" json:"first_name"`
	LastName  string `yaml:"last_name" json:"last_name"`
	Email     string `yaml:"email" json:"email"`
	Phone     string `yaml:"phone" json:"phone"`

	StreetAddress  string `yaml:"street_address" json:"street_address"`
	AddressLine2   string `yaml:"address_line_2" json:"address_line_2"`
	City           string `yaml:"city" json:"city"`
	StateProvince  string `yaml:"state_province" json:"state_province"`
	ZipPostalCode  string `yaml:"zip_postal_code" json:"zip_postal_code"`
	Country        string `yaml:"country" json:"country"`
	Location       string `yaml:"location" json:"location"`
	PreferredPlace string `yaml:"preferred_location" json:"preferred_location"`

	LinkedInURL  string `yaml:"linkedin_url" json:"linkedin_url"`
	GitHubURL    string `yaml:"github_url" json:"github_url"`
	PortfolioURL string `yaml:"portfolio_url" json:"portfolio_url"`
	WebsiteURL   string `yaml:"website_url" json:"website_url"`

	DesiredSalary     string `yaml:"desired_salary" json:"desired_salary"`
	WorkAuthorization string `yaml:"work_authorization" json:"work_authorization"`
	WillingToRelocate bool   `yaml:"willing_to_relocate" json:"willing_to_relocate"`

	ResumePath      string `yaml:"resume_path" json:"resume_path"`
	CoverLetterPath string `yaml:"cover_letter_path" json:"cover_letter_path"`

	// Custom holds extra answers keyed by a field hint, e.g. "pronouns".
	Custom map[string]string `yaml:"custom,omitempty" json:"custom,omitempty"`
}

// Load reads a profile file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML or JSON profile.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the minimum needed to apply anywhere.
func (p *Profile) Validate() error {
	if p.FirstName == "" && p.LastName == "" {
		return fmt.Errorf("profile: a first or last name is required")
	}
	if p.Email == "" {
		return fmt.Errorf("profile: email is required")
	}
	return nil
}

// FullName joins first and last name.
func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// FullAddress renders the structured address on one line.
func (p *Profile) FullAddress() string {
	var parts []string
	for _, s := range []string{p.StreetAddress, p.AddressLine2, p.City, p.StateProvince, p.ZipPostalCode} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// CountryOrDefault returns Country, or DefaultCountry when unset.
func (p *Profile) CountryOrDefault() string {
	if p.Country == "" {
		return DefaultCountry
	}
	return p.Country
}

// Map flattens the non-empty profile values for prompts and for the
// document's user_profile_used record.
func (p *Profile) Map() map[string]any {
	out := make(map[string]any)
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("first_name", p.FirstName)
	set("last_name", p.LastName)
	set("full_name", p.FullName())
	set("email", p.Email)
	set("phone", p.Phone)
	set("full_address", p.FullAddress())
	set("street_address", p.StreetAddress)
	set("address_line_2", p.AddressLine2)
	set("city", p.City)
	set("state_province", p.StateProvince)
	set("zip_postal_code", p.ZipPostalCode)
	set("country", p.CountryOrDefault())
	set("location", p.Location)
	set("preferred_location", p.PreferredPlace)
	set("linkedin_url", p.LinkedInURL)
	set("github_url", p.GitHubURL)
	set("portfolio_url", p.PortfolioURL)
	set("website_url", p.WebsiteURL)
	set("desired_salary", p.DesiredSalary)
	set("work_authorization", p.WorkAuthorization)
	if p.WillingToRelocate {
		out["willing_to_relocate"] = true
	}
	for k, v := range p.Custom {
		set(k, v)
	}
	return out
}
