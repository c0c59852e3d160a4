package classifier

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed weights.yaml
var defaultWeightsYAML []byte

// Tier is one keyword table and the points each hit is worth.
type Tier struct {
	Weight   float64  `yaml:"weight"`
	Keywords []string `yaml:"keywords"`
}

// TextTier scores body text blocks whose length lies strictly between
// MinLength and MaxLength, stopping after MaxMatches hits.
type TextTier struct {
	Tier       `yaml:",inline"`
	MinLength  int `yaml:"min_length"`
	MaxLength  int `yaml:"max_length"`
	MaxMatches int `yaml:"max_matches"`
}

// Weights is a versioned scoring table.
type Weights struct {
	Version       int     `yaml:"version"`
	Threshold     float64 `yaml:"threshold"`
	MinTextLength int     `yaml:"min_text_length"`

	ExcludedDomains      []string `yaml:"excluded_domains"`
	ExcludedURLFragments []string `yaml:"excluded_url_fragments"`

	URLStrong     Tier     `yaml:"url_strong"`
	URLMedium     Tier     `yaml:"url_medium"`
	TitleStrong   Tier     `yaml:"title_strong"`
	TitleMedium   Tier     `yaml:"title_medium"`
	InputStrong   Tier     `yaml:"input_strong"`
	InputMedium   Tier     `yaml:"input_medium"`
	InputBasic    Tier     `yaml:"input_basic"`
	HeadingStrong Tier     `yaml:"heading_strong"`
	HeadingMedium Tier     `yaml:"heading_medium"`
	Text          TextTier `yaml:"text"`

	ResumeUpload float64 `yaml:"resume_upload"`

	ApplyButton struct {
		Weight  float64  `yaml:"weight"`
		Phrases []string `yaml:"phrases"`
	} `yaml:"apply_button"`

	Complexity struct {
		HighFields int     `yaml:"high_fields"`
		HighWeight float64 `yaml:"high_weight"`
		Fields     int     `yaml:"fields"`
		Weight     float64 `yaml:"weight"`
	} `yaml:"complexity"`

	Structure struct {
		MinFields int     `yaml:"min_fields"`
		Weight    float64 `yaml:"weight"`
	} `yaml:"structure"`

	Penalty struct {
		Weight   float64  `yaml:"weight"`
		Patterns []string `yaml:"patterns"`
	} `yaml:"penalty"`
}

// DefaultWeights returns the embedded table.
func DefaultWeights() *Weights {
	w, err := ParseWeights(defaultWeightsYAML)
	if err != nil {
		panic(fmt.Sprintf("classifier: embedded weights: %v", err))
	}
	return w
}

// LoadWeights reads a table from path. An empty path yields the embedded
// table.
func LoadWeights(path string) (*Weights, error) {
	if path == "" {
		return DefaultWeights(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights: %w", err)
	}
	return ParseWeights(data)
}

// ParseWeights decodes and checks a YAML table.
func ParseWeights(data []byte) (*Weights, error) {
	var w Weights
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse weights: %w", err)
	}
	if w.Version < 1 {
		return nil, fmt.Errorf("weights: version must be set")
	}
	if w.Threshold <= 0 {
		return nil, fmt.Errorf("weights: threshold must be positive")
	}
	if w.Text.MaxMatches <= 0 {
		w.Text.MaxMatches = 8
	}
	if w.Text.MaxLength <= 0 {
		w.Text.MaxLength = 1000
	}
	return &w, nil
}
