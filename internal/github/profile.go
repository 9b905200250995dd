// Package github holds the statically curated GitHub summary shown on the
// portfolio: a contribution chart image and a handful of pinned repos.
package github

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	chartBase   = "https://ghchart.rshah.org/"
	profileBase = "https://github.com/"

	usernamePlaceholder = "{{username}}"
)

type Repo struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	URL         string `yaml:"url" json:"url"`
	Language    string `yaml:"language" json:"language,omitempty"`
	Stars       int    `yaml:"stars" json:"stars"`
	Forks       int    `yaml:"forks" json:"forks"`
}

type Profile struct {
	Username string `yaml:"username" json:"username"`
	Repos    []Repo `yaml:"repos" json:"repos"`
}

// ChartURL is the contribution graph image. The chart service is trusted as
// an opaque URL; a broken image is not handled specially.
func (p Profile) ChartURL() string {
	return chartBase + p.Username
}

func (p Profile) ProfileURL() string {
	return profileBase + p.Username
}

// WithUsername returns a copy of p for another account, rewriting repo URLs
// that point at the old profile.
func (p Profile) WithUsername(username string) Profile {
	if username == "" || username == p.Username {
		return p
	}
	oldPrefix := p.ProfileURL() + "/"
	out := Profile{Username: username, Repos: make([]Repo, len(p.Repos))}
	for i, r := range p.Repos {
		if strings.HasPrefix(r.URL, oldPrefix) {
			r.URL = out.ProfileURL() + "/" + strings.TrimPrefix(r.URL, oldPrefix)
		}
		out.Repos[i] = r
	}
	return out
}

// Default is the built-in profile used when no file is configured.
func Default() Profile {
	p := Profile{
		Username: "Zachkp",
		Repos: []Repo{
			{
				Name:        "zach-dev",
				Description: "Personal portfolio website built with Go, Gin and HTMX",
				URL:         profileBase + usernamePlaceholder + "/zach-dev",
				Language:    "Go",
				Stars:       5,
				Forks:       2,
			},
			{
				Name:        "tui-mail",
				Description: "Terminal email client with fuzzy finding, built on Bubble Tea and go-imap",
				URL:         profileBase + usernamePlaceholder + "/tui-mail",
				Language:    "Go",
				Stars:       3,
				Forks:       1,
			},
		},
	}
	p.expand()
	return p
}

// Parse decodes a YAML profile. Repo URLs may use {{username}}, which is
// replaced with the profile's username; an empty URL defaults to the repo
// under the profile.
func Parse(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, errors.Wrap(err, "decode github profile")
	}
	if strings.TrimSpace(p.Username) == "" {
		return Profile{}, errors.New("github profile: username is required")
	}
	p.Username = strings.TrimSpace(p.Username)
	p.expand()
	return p, nil
}

// Load reads a YAML profile from disk.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, errors.Wrapf(err, "read github profile %s", path)
	}
	p, err := Parse(data)
	if err != nil {
		return Profile{}, errors.Wrapf(err, "load %s", path)
	}
	return p, nil
}

func (p *Profile) expand() {
	for i := range p.Repos {
		r := &p.Repos[i]
		if r.URL == "" {
			r.URL = p.ProfileURL() + "/" + r.Name
			continue
		}
		r.URL = strings.ReplaceAll(r.URL, usernamePlaceholder, p.Username)
	}
}
