package config

import (
	"strings"
	"testing"
)

func TestParseSites(t *testing.T) {
	data := []byte(`sites:
  - slug: mosser
    url: https://www.mosser.test/vacancies
  - slug: trinity
    url: https://trinity.test/apartments?city=sf
`)

	sites, err := ParseSites(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(sites) != 2 {
		t.Fatalf("got %d sites, want 2", len(sites))
	}
	if sites[0].Slug != "mosser" || sites[1].Slug != "trinity" {
		t.Fatalf("slugs out of order: %v", sites)
	}
}

func TestParseSitesRejectsBadRosters(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		errPart string
	}{
		{
			name:    "missing slug",
			data:    "sites:\n  - url: https://a.test/\n",
			errPart: "must include slug and url",
		},
		{
			name:    "missing url",
			data:    "sites:\n  - slug: a\n",
			errPart: "must include slug and url",
		},
		{
			name:    "relative url",
			data:    "sites:\n  - slug: a\n    url: /vacancies\n",
			errPart: "invalid url",
		},
		{
			name:    "duplicate slug",
			data:    "sites:\n  - slug: a\n    url: https://a.test/\n  - slug: a\n    url: https://b.test/\n",
			errPart: "duplicate site slug",
		},
		{
			name:    "not yaml",
			data:    "{{{",
			errPart: "parse sites yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSites([]byte(tt.data))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("error %q does not mention %q", err, tt.errPart)
			}
		})
	}
}
