package analytics

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var defaultPatterns []byte

// PatternSet is the pluggable extraction vocabulary: brand alternations,
// price expressions, the accepted price window and the sentiment lexicons.
type PatternSet struct {
	Brands   []string `yaml:"brands"`
	Prices   []string `yaml:"prices"`
	PriceMin float64  `yaml:"price_min"`
	PriceMax float64  `yaml:"price_max"`
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`

	brandRes []*regexp.Regexp
	priceRes []*regexp.Regexp
	posRe    *regexp.Regexp
	negRe    *regexp.Regexp
}

// DefaultPatterns returns the embedded apparel-oriented pattern set.
func DefaultPatterns() *PatternSet {
	ps, err := ParsePatterns(defaultPatterns)
	if err != nil {
		panic(fmt.Sprintf("embedded patterns: %v", err))
	}
	return ps
}

// LoadPatterns reads a pattern set from a YAML file. An empty path yields
// the defaults.
func LoadPatterns(path string) (*PatternSet, error) {
	if path == "" {
		return DefaultPatterns(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patterns %s: %w", path, err)
	}
	return ParsePatterns(data)
}

// ParsePatterns decodes and compiles a YAML pattern set.
func ParsePatterns(data []byte) (*PatternSet, error) {
	var ps PatternSet
	if err := yaml.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("decode patterns: %w", err)
	}
	if ps.PriceMax <= 0 {
		ps.PriceMax = 1000
	}
	if ps.PriceMin > ps.PriceMax {
		return nil, fmt.Errorf("price_min %.2f exceeds price_max %.2f", ps.PriceMin, ps.PriceMax)
	}

	for _, alt := range ps.Brands {
		re, err := regexp.Compile(`(?i)\b(` + alt + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("brand pattern %q: %w", alt, err)
		}
		ps.brandRes = append(ps.brandRes, re)
	}
	for _, expr := range ps.Prices {
		re, err := regexp.Compile(`(?i)` + expr)
		if err != nil {
			return nil, fmt.Errorf("price pattern %q: %w", expr, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("price pattern %q: needs a capture group", expr)
		}
		ps.priceRes = append(ps.priceRes, re)
	}

	var err error
	if ps.posRe, err = lexicon(ps.Positive); err != nil {
		return nil, err
	}
	if ps.negRe, err = lexicon(ps.Negative); err != nil {
		return nil, err
	}
	return &ps, nil
}

func lexicon(words []string) (*regexp.Regexp, error) {
	if len(words) == 0 {
		return nil, nil
	}
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(w)))
	}
	re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("lexicon: %w", err)
	}
	return re, nil
}
