package domain

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrPluginDisabled   = errors.New("site plugin is disabled")
	ErrChecksumMismatch = errors.New("site plugin checksum mismatch")
	ErrPluginTimeout    = errors.New("site plugin timeout")
	ErrSiteMismatch     = errors.New("site plugin serves another site")
)

var (
	sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)
	siteIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
)

// Manifest describes an out-of-process site plugin.
// SiteID must match the site the plugin reports once running.
type Manifest struct {
	Name    string `yaml:"name"`
	SiteID  string `yaml:"site_id"`
	Version string `yaml:"version"`
	Binary  string `yaml:"binary"`
	SHA256  string `yaml:"sha256"`
	Enabled bool   `yaml:"enabled"`
}

func (m Manifest) Validate() error {
	if !siteIDPattern.MatchString(m.Name) {
		return fmt.Errorf("plugin name %q must be lowercase letters, digits and hyphens", m.Name)
	}
	if !siteIDPattern.MatchString(m.SiteID) {
		return fmt.Errorf("plugin %s: site_id %q must be lowercase letters, digits and hyphens", m.Name, m.SiteID)
	}
	if m.Version == "" {
		return fmt.Errorf("plugin version is required")
	}
	if m.Binary == "" {
		return fmt.Errorf("plugin binary path is required")
	}
	if !sha256Pattern.MatchString(m.SHA256) {
		return fmt.Errorf("plugin sha256 must be lowercase 64-char hex")
	}
	return nil
}

// Metadata is what a running plugin reports about the site it serves.
type Metadata struct {
	SiteID   string
	SiteName string
	Version  string
	PageSize int
}

// Batch is one page of posts from a source. An empty Next means the source
// has nothing more.
type Batch struct {
	Posts []Post
	Next  string
}
