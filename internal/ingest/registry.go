package ingest

import (
	"embed"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for all acquisition sources. Declaration
// order in the file is the merge order of the acquisition cycle.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// FetchConfig defines HTTP fetching configuration for a scrape source.
type FetchConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"` // Default: 15
	ProxyRelay     string `yaml:"proxy_relay,omitempty"`     // CORS relay base, e.g. https://api.allorigins.win/raw?url=
	FollowDetail   bool   `yaml:"follow_detail,omitempty"`   // Crawl listing -> detail pages
	MaxDetailPages int    `yaml:"max_detail_pages,omitempty"`
}

// SourceConfig defines a single acquisition source.
type SourceConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"` // "scrape" or "generate"
	URL      string `yaml:"url,omitempty"`
	Provider string `yaml:"provider,omitempty"` // default provider label for this source

	Fetch FetchConfig `yaml:"fetch,omitempty"`

	// Generation source only.
	CandidateCount int `yaml:"candidate_count,omitempty"` // Default: 15
}

// LoadRegistry reads the embedded sources.yaml and returns a Registry.
// The path parameter allows a filesystem override for local development.
func LoadRegistry(path string) (*Registry, error) {
	var data []byte
	var err error
	if path != "" {
		data, err = os.ReadFile(path)
	}
	if path == "" || err != nil {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
		if err != nil {
			return nil, err
		}
	}

	// Expand environment variables within the YAML content (e.g. ${PROXY_RELAY})
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, err
	}

	return &reg, nil
}
