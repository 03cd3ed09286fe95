package out

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"focusdeck/internal/modules/site/domain"
	siteout "focusdeck/internal/modules/site/port/out"
)

const manifestFile = "plugins.yaml"

type manifestDocument struct {
	Plugins []domain.Manifest `yaml:"plugins"`
}

// FileManifestStore lists site plugins from plugins.yaml in the plugin
// directory:
//
//	plugins:
//	  - name: lobsters
//	    site_id: lobsters
//	    version: 0.3.0
//	    binary: bin/lobsters
//	    sha256: <hex>
//	    enabled: true
type FileManifestStore struct {
	dir string
}

func NewFileManifestStore(pluginDir string) siteout.ManifestStore {
	return &FileManifestStore{dir: pluginDir}
}

// Load returns no manifests when the file is missing or empty. Every entry
// must name the site it serves; relative binaries resolve against the
// plugin directory.
func (s *FileManifestStore) Load(_ context.Context) ([]domain.Manifest, error) {
	f, err := os.Open(filepath.Join(s.dir, manifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.Manifest{}, nil
		}
		return nil, fmt.Errorf("open %s: %w", manifestFile, err)
	}
	defer f.Close()

	var doc manifestDocument
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode %s: %w", manifestFile, err)
	}
	manifests := make([]domain.Manifest, 0, len(doc.Plugins))
	for i, m := range doc.Plugins {
		m.Name = strings.TrimSpace(m.Name)
		m.SiteID = strings.TrimSpace(m.SiteID)
		if m.SiteID == "" {
			return nil, fmt.Errorf("%s entry %d (%s): site_id is required", manifestFile, i+1, m.Name)
		}
		if m.Binary != "" && !filepath.IsAbs(m.Binary) {
			m.Binary = filepath.Join(s.dir, m.Binary)
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}
