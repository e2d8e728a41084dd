package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v2"
)

// Site is one crawl target: a short slug for reporting plus a seed URL.
type Site struct {
	Slug string `yaml:"slug"`
	URL  string `yaml:"url"`
}

type sitesFile struct {
	Sites []Site `yaml:"sites"`
}

// LoadSites reads a YAML site roster from path.
func LoadSites(path string) ([]Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}
	return ParseSites(data)
}

// ParseSites parses a roster document of the form:
//
//	sites:
//	  - slug: mosser
//	    url: https://www.example.com/vacancies
//
// Every entry needs a slug and an absolute URL; duplicate slugs are
// rejected so per-site output files cannot collide.
func ParseSites(data []byte) ([]Site, error) {
	var file sitesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sites yaml: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Sites))
	for i, site := range file.Sites {
		if site.Slug == "" || site.URL == "" {
			return nil, fmt.Errorf("site entry %d must include slug and url", i)
		}
		parsed, err := url.Parse(site.URL)
		if err != nil || parsed.Host == "" {
			return nil, fmt.Errorf("site %q has invalid url %q", site.Slug, site.URL)
		}
		if _, dup := seen[site.Slug]; dup {
			return nil, fmt.Errorf("duplicate site slug: %s", site.Slug)
		}
		seen[site.Slug] = struct{}{}
	}
	return file.Sites, nil
}
