package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"focusdeck/internal/modules/site/domain"
	"focusdeck/internal/modules/site/dto"
	siteout "focusdeck/internal/modules/site/port/out"
	apperrors "focusdeck/internal/platform/errors"
)

type SiteService struct {
	manifests siteout.ManifestStore
	host      siteout.Host
	bookmarks siteout.BookmarkStore
}

func NewSiteService(manifests siteout.ManifestStore, host siteout.Host, bookmarks siteout.BookmarkStore) *SiteService {
	return &SiteService{manifests: manifests, host: host, bookmarks: bookmarks}
}

func (s *SiteService) Plugins(ctx context.Context) ([]dto.PluginInfo, error) {
	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PluginInfo, 0, len(manifests))
	for _, m := range manifests {
		out = append(out, dto.PluginInfo{Name: m.Name, SiteID: m.SiteID, Version: m.Version, Enabled: m.Enabled, Binary: m.Binary})
	}
	return out, nil
}

// Doctor checks every manifest, and starts the enabled plugins whose binary
// matches its checksum.
func (s *SiteService) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	manifests, err := s.manifests.Load(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]dto.DoctorResult, 0, len(manifests))
	for _, m := range manifests {
		result := dto.DoctorResult{Name: m.Name}
		if err := m.Validate(); err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}
		result.BinaryReachable = fileExists(m.Binary)
		if result.BinaryReachable {
			result.ChecksumValid = checksumMatches(m.Binary, m.SHA256) == nil
		}
		switch {
		case !result.BinaryReachable:
			result.Error = fmt.Sprintf("binary does not exist: %s", m.Binary)
		case !result.ChecksumValid:
			result.Error = "checksum mismatch"
		case m.Enabled && s.host != nil:
			feed, err := s.host.Open(ctx, m)
			if err != nil {
				result.Error = err.Error()
				break
			}
			result.SiteID = feed.Metadata().SiteID
			feed.Close()
			if err := checkServes(m, result.SiteID); err != nil {
				result.Error = err.Error()
				break
			}
			result.LifecycleOK = true
		}
		results = append(results, result)
	}
	return results, nil
}

// OpenPlugin starts the named plugin after checking it may run.
func (s *SiteService) OpenPlugin(ctx context.Context, name string) (siteout.PluginFeed, error) {
	if s.host == nil {
		return nil, fmt.Errorf("site plugins are not configured")
	}
	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return nil, err
	}
	var manifest *domain.Manifest
	for i := range manifests {
		if manifests[i].Name == name {
			manifest = &manifests[i]
			break
		}
	}
	if manifest == nil {
		return nil, fmt.Errorf("site plugin %q: %w", name, apperrors.ErrNotFound)
	}
	if !manifest.Enabled {
		return nil, fmt.Errorf("%w: %s", domain.ErrPluginDisabled, name)
	}
	if err := checksumMatches(manifest.Binary, manifest.SHA256); err != nil {
		return nil, err
	}
	feed, err := s.host.Open(ctx, *manifest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPluginTimeout, name)
		}
		return nil, err
	}
	if err := checkServes(*manifest, feed.Metadata().SiteID); err != nil {
		feed.Close()
		return nil, err
	}
	return feed, nil
}

func checkServes(m domain.Manifest, siteID string) error {
	if siteID != m.SiteID {
		return fmt.Errorf("%w: %s reports %q, manifest says %q", domain.ErrSiteMismatch, m.Name, siteID, m.SiteID)
	}
	return nil
}

func (s *SiteService) Bookmarks(ctx context.Context, limit int) ([]dto.BookmarkOutput, error) {
	if s.bookmarks == nil {
		return nil, nil
	}
	bookmarks, err := s.bookmarks.ListBookmarks(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.BookmarkOutput, 0, len(bookmarks))
	for _, b := range bookmarks {
		out = append(out, dto.BookmarkOutput{
			SiteID:    b.SiteID,
			PostID:    b.PostID,
			Author:    b.Author,
			Text:      b.Text,
			Permalink: b.Permalink,
			SavedAt:   b.SavedAt,
		})
	}
	return out, nil
}

func (s *SiteService) RemoveBookmark(ctx context.Context, siteID, postID string) error {
	if siteID == "" || postID == "" {
		return fmt.Errorf("bookmark %q/%q: %w", siteID, postID, apperrors.ErrInvalidInput)
	}
	if s.bookmarks == nil {
		return fmt.Errorf("bookmarks are not configured")
	}
	return s.bookmarks.DeleteBookmark(ctx, siteID, postID)
}

func (s *SiteService) loadValidated(ctx context.Context) ([]domain.Manifest, error) {
	if s.manifests == nil {
		return nil, nil
	}
	manifests, err := s.manifests.Load(ctx)
	if err != nil {
		return nil, err
	}
	seenNames := map[string]struct{}{}
	seenSites := map[string]string{}
	for _, manifest := range manifests {
		if err := manifest.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seenNames[manifest.Name]; ok {
			return nil, fmt.Errorf("duplicate site plugin name: %s", manifest.Name)
		}
		if other, ok := seenSites[manifest.SiteID]; ok {
			return nil, fmt.Errorf("site %s is claimed by both %s and %s", manifest.SiteID, other, manifest.Name)
		}
		seenNames[manifest.Name] = struct{}{}
		seenSites[manifest.SiteID] = manifest.Name
	}
	return manifests, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func checksumMatches(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open plugin binary: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash plugin binary: %w", err)
	}
	if hex.EncodeToString(h.Sum(nil)) != expected {
		return domain.ErrChecksumMismatch
	}
	return nil
}
