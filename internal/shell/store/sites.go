package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/pushdock/internal/core/domain"
)

// =============================================================================
// Site Config Loading
// =============================================================================

// siteFile is the on-disk shape of one configuration file.
type siteFile struct {
	Sites []siteEntry `yaml:"sites"`
}

// siteEntry accepts either a single branch or a branch list; the two are
// normalized to one ordered, de-duplicated set.
type siteEntry struct {
	Repo          string        `yaml:"repo"`
	Branch        string        `yaml:"branch"`
	Branches      []string      `yaml:"branches"`
	ContainerName string        `yaml:"containerName"`
	Port          int           `yaml:"port"`
	NodeVersion   string        `yaml:"nodeVersion"`
	BuildCommand  string        `yaml:"buildCommand"`
	ServeCommand  string        `yaml:"serveCommand"`
	Secrets       *secretsEntry `yaml:"secrets"`
}

type secretsEntry struct {
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
	ProjectID    string `yaml:"projectId"`
	Environment  string `yaml:"environment"`
	Path         string `yaml:"path"`
	SiteURL      string `yaml:"siteURL"`
}

// SiteSource loads site targets from a directory of YAML files.
//
// Loading is deliberately uncached: every webhook reads the directory
// fresh, so a configuration edit takes effect on the very next push
// without a restart. That freshness is an operational property callers
// rely on, not an accident.
type SiteSource struct {
	dir string
}

// NewSiteSource creates a loader for the given config directory.
func NewSiteSource(dir string) *SiteSource {
	return &SiteSource{dir: dir}
}

// LoadTargets reads every *.yml / *.yaml file in the config directory, in
// lexical filename order, and returns the validated targets in declaration
// order.
func (s *SiteSource) LoadTargets() ([]domain.SiteTarget, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewStoreError("LoadTargets", s.dir, "directory does not exist", ErrConfigDirMissing)
		}
		return nil, NewStoreError("LoadTargets", s.dir, err.Error(), err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yml", ".yaml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var targets []domain.SiteTarget
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, NewStoreError("LoadTargets", path, err.Error(), err)
		}
		var file siteFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, NewStoreError("LoadTargets", path, fmt.Sprintf("parse yaml: %v", err), ErrInvalidConfig)
		}
		for _, entry := range file.Sites {
			targets = append(targets, entry.toTarget())
		}
	}

	if err := domain.ValidateTargets(targets); err != nil {
		return nil, NewStoreError("LoadTargets", s.dir, err.Error(), ErrInvalidConfig)
	}
	return targets, nil
}

func (e siteEntry) toTarget() domain.SiteTarget {
	t := domain.SiteTarget{
		Repo:          strings.TrimSpace(e.Repo),
		Branches:      normalizeBranches(e.Branch, e.Branches),
		ContainerName: strings.TrimSpace(e.ContainerName),
		Port:          e.Port,
		NodeVersion:   e.NodeVersion,
		BuildCommand:  e.BuildCommand,
		ServeCommand:  e.ServeCommand,
	}
	if e.Secrets != nil {
		t.Secrets = &domain.SecretsConfig{
			ClientID:     e.Secrets.ClientID,
			ClientSecret: e.Secrets.ClientSecret,
			ProjectID:    e.Secrets.ProjectID,
			Environment:  e.Secrets.Environment,
			Path:         e.Secrets.Path,
			SiteURL:      e.Secrets.SiteURL,
		}
	}
	return t
}

// normalizeBranches merges the single-branch and multi-branch fields into
// one ordered set, dropping blanks and duplicates.
func normalizeBranches(single string, many []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(b string) {
		b = strings.TrimSpace(b)
		if b == "" {
			return
		}
		if _, ok := seen[b]; ok {
			return
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	add(single)
	for _, b := range many {
		add(b)
	}
	return out
}
