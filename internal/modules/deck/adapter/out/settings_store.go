package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"focusdeck/internal/modules/deck/domain"
	deckout "focusdeck/internal/modules/deck/port/out"
)

type siteDocument struct {
	Enabled            *bool  `yaml:"enabled,omitempty"`
	SuppressPromptDate string `yaml:"suppress_prompt_date,omitempty"`
}

type settingsDocument struct {
	Session     *domain.SessionConfig    `yaml:"session,omitempty"`
	DailyLimits domain.DailyLimitsConfig `yaml:"daily_limits"`
	Sites       map[string]siteDocument  `yaml:"sites,omitempty"`
}

// YAMLSettingsStore keeps user preferences in a hand-editable YAML file.
// Missing sections fall back to defaults; sites are enabled unless the file
// says otherwise.
type YAMLSettingsStore struct {
	path string

	mu sync.Mutex
}

func NewYAMLSettingsStore(path string) deckout.SettingsStore {
	return &YAMLSettingsStore{path: path}
}

func (s *YAMLSettingsStore) SessionConfig(_ context.Context) (domain.SessionConfig, error) {
	doc, err := s.load()
	if err != nil {
		return domain.SessionConfig{}, err
	}
	if doc.Session == nil {
		return domain.DefaultSessionConfig(), nil
	}
	return doc.Session.Normalize(), nil
}

func (s *YAMLSettingsStore) SetSessionConfig(_ context.Context, cfg domain.SessionConfig) error {
	return s.update(func(doc *settingsDocument) {
		normalized := cfg.Normalize()
		doc.Session = &normalized
	})
}

func (s *YAMLSettingsStore) DailyLimits(_ context.Context) (domain.DailyLimitsConfig, error) {
	doc, err := s.load()
	if err != nil {
		return domain.DailyLimitsConfig{}, err
	}
	return domain.NormalizeLimits(doc.DailyLimits), nil
}

func (s *YAMLSettingsStore) SetDailyLimits(_ context.Context, limits domain.DailyLimitsConfig) (domain.DailyLimitsConfig, error) {
	normalized := domain.NormalizeLimits(limits)
	for site, rule := range normalized.PerSite {
		if rule.MaxPosts == 0 {
			delete(normalized.PerSite, site)
		}
	}
	err := s.update(func(doc *settingsDocument) { doc.DailyLimits = normalized })
	if err != nil {
		return domain.DailyLimitsConfig{}, err
	}
	return normalized, nil
}

func (s *YAMLSettingsStore) SiteSettings(_ context.Context, siteID string) (deckout.SiteSettings, error) {
	doc, err := s.load()
	if err != nil {
		return deckout.SiteSettings{}, err
	}
	site := doc.Sites[siteID]
	out := deckout.SiteSettings{Enabled: true, SuppressPromptDate: site.SuppressPromptDate}
	if site.Enabled != nil {
		out.Enabled = *site.Enabled
	}
	return out, nil
}

func (s *YAMLSettingsStore) SetSiteSettings(_ context.Context, siteID string, settings deckout.SiteSettings) error {
	return s.update(func(doc *settingsDocument) {
		if doc.Sites == nil {
			doc.Sites = map[string]siteDocument{}
		}
		enabled := settings.Enabled
		doc.Sites[siteID] = siteDocument{Enabled: &enabled, SuppressPromptDate: settings.SuppressPromptDate}
	})
}

func (s *YAMLSettingsStore) load() (settingsDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *YAMLSettingsStore) update(fn func(*settingsDocument)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	fn(&doc)
	return s.write(doc)
}

func (s *YAMLSettingsStore) read() (settingsDocument, error) {
	doc := settingsDocument{}
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return doc, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(payload, &doc); err != nil {
		return settingsDocument{}, fmt.Errorf("decode settings %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *YAMLSettingsStore) write(doc settingsDocument) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	payload, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(s.path, payload, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
