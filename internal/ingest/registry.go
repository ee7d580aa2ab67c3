package ingest

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/queries.yaml
var queriesYAML embed.FS

// Registry holds the search terms and keyword lists used by a hunt.
type Registry struct {
	GitHub           GitHubSourceConfig `yaml:"github"`
	QueryGroups      []QueryGroup       `yaml:"query_groups"`
	NegativeKeywords []string           `yaml:"negative_keywords"`
	Urgency          UrgencyKeywords    `yaml:"urgency"`
}

// GitHubSourceConfig describes the issue search endpoint.
type GitHubSourceConfig struct {
	APIURL  string      `yaml:"api_url"`
	PerPage int         `yaml:"per_page,omitempty"`
	Fetch   FetchConfig `yaml:"fetch,omitempty"`
}

// FetchConfig defines HTTP fetching configuration for a source.
type FetchConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds,omitempty"` // Default: 30
	MaxRetries     int     `yaml:"max_retries,omitempty"`     // Default: 3
	RateLimitRPS   float64 `yaml:"rate_limit_rps,omitempty"`  // Requests per second, default: 1.0
	ProxyURL       string  `yaml:"proxy_url,omitempty"`
	Token          string  `yaml:"token,omitempty"`
}

// QueryGroup is a named set of search terms.
type QueryGroup struct {
	Name  string   `yaml:"name"`
	Terms []string `yaml:"terms"`
}

// UrgencyKeywords are matched case-insensitively against titles and bodies.
type UrgencyKeywords struct {
	Title []string `yaml:"title"`
	Body  []string `yaml:"body"`
}

// Queries flattens all query groups in declaration order, dropping repeats.
func (r *Registry) Queries() []string {
	var out []string
	for _, g := range r.QueryGroups {
		out = mergeUniqueFold(out, g.Terms)
	}
	return out
}

// LoadRegistry parses the registry at path, or the embedded queries.yaml
// when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = queriesYAML.ReadFile("config/queries.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	// Expand environment variables within the YAML content (e.g. ${GITHUB_TOKEN})
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}

	return &reg, nil
}

// DefaultRegistry returns the embedded registry. The embedded file is part of
// the binary, so a parse failure is a build defect.
func DefaultRegistry() *Registry {
	reg, err := LoadRegistry("")
	if err != nil {
		panic(err)
	}
	return reg
}
