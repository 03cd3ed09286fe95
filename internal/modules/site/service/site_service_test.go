package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"focusdeck/internal/modules/site/domain"
	siteout "focusdeck/internal/modules/site/port/out"
	"focusdeck/internal/modules/site/service"
	apperrors "focusdeck/internal/platform/errors"

	"github.com/stretchr/testify/require"
)

type staticManifests []domain.Manifest

func (m staticManifests) Load(context.Context) ([]domain.Manifest, error) {
	return append([]domain.Manifest(nil), m...), nil
}

type fakeFeed struct {
	meta   domain.Metadata
	closed bool
}

func (f *fakeFeed) Fetch(context.Context, string) (domain.Batch, error) { return domain.Batch{}, nil }
func (f *fakeFeed) Metadata() domain.Metadata                           { return f.meta }
func (f *fakeFeed) Close()                                              { f.closed = true }

type fakeHost struct {
	opened []string
	feeds  []*fakeFeed
}

func (h *fakeHost) Open(_ context.Context, manifest domain.Manifest) (siteout.PluginFeed, error) {
	h.opened = append(h.opened, manifest.Name)
	feed := &fakeFeed{meta: domain.Metadata{SiteID: manifest.Name + "-site"}}
	h.feeds = append(h.feeds, feed)
	return feed, nil
}

func writeBinary(t *testing.T, content string) (string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plugin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	sum := sha256.Sum256([]byte(content))
	return path, hex.EncodeToString(sum[:])
}

func TestDoctorReportsEachManifest(t *testing.T) {
	good, goodSum := writeBinary(t, "good")
	bad, _ := writeBinary(t, "bad")
	manifests := staticManifests{
		{Name: "good", SiteID: "good-site", Version: "1", Binary: good, SHA256: goodSum, Enabled: true},
		{Name: "tampered", SiteID: "tampered-site", Version: "1", Binary: bad, SHA256: strings.Repeat("0", 64), Enabled: true},
		{Name: "missing", SiteID: "missing-site", Version: "1", Binary: filepath.Join(t.TempDir(), "nope"), SHA256: goodSum, Enabled: true},
		{Name: "Invalid Name", SiteID: "invalid", Version: "1", Binary: good, SHA256: goodSum},
		{Name: "liar", SiteID: "elsewhere", Version: "1", Binary: good, SHA256: goodSum, Enabled: true},
	}
	host := &fakeHost{}
	svc := service.NewSiteService(manifests, host, nil)

	results, err := svc.Doctor(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 5)

	require.True(t, results[0].LifecycleOK)
	require.Equal(t, "good-site", results[0].SiteID)
	require.Empty(t, results[0].Error)

	require.True(t, results[1].BinaryReachable)
	require.False(t, results[1].ChecksumValid)
	require.Equal(t, "checksum mismatch", results[1].Error)

	require.False(t, results[2].BinaryReachable)
	require.NotEmpty(t, results[3].Error)

	require.False(t, results[4].LifecycleOK)
	require.Equal(t, "liar-site", results[4].SiteID)
	require.Contains(t, results[4].Error, "serves another site")

	require.Equal(t, []string{"good", "liar"}, host.opened)
	require.True(t, host.feeds[0].closed)
	require.True(t, host.feeds[1].closed)
}

func TestOpenPluginChecksRunnable(t *testing.T) {
	good, goodSum := writeBinary(t, "good")
	manifests := staticManifests{
		{Name: "good", SiteID: "good-site", Version: "1", Binary: good, SHA256: goodSum, Enabled: true},
		{Name: "off", SiteID: "off-site", Version: "1", Binary: good, SHA256: goodSum},
		{Name: "tampered", SiteID: "tampered-site", Version: "1", Binary: good, SHA256: strings.Repeat("a", 64), Enabled: true},
		{Name: "liar", SiteID: "elsewhere", Version: "1", Binary: good, SHA256: goodSum, Enabled: true},
	}
	host := &fakeHost{}
	svc := service.NewSiteService(manifests, host, nil)
	ctx := context.Background()

	feed, err := svc.OpenPlugin(ctx, "good")
	require.NoError(t, err)
	require.Equal(t, "good-site", feed.Metadata().SiteID)

	_, err = svc.OpenPlugin(ctx, "off")
	require.ErrorIs(t, err, domain.ErrPluginDisabled)

	_, err = svc.OpenPlugin(ctx, "tampered")
	require.ErrorIs(t, err, domain.ErrChecksumMismatch)

	_, err = svc.OpenPlugin(ctx, "ghost")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.OpenPlugin(ctx, "liar")
	require.ErrorIs(t, err, domain.ErrSiteMismatch)
	require.True(t, host.feeds[len(host.feeds)-1].closed)
}

func TestPluginsRejectsDuplicateNames(t *testing.T) {
	good, goodSum := writeBinary(t, "good")
	manifests := staticManifests{
		{Name: "dup", SiteID: "dup-a", Version: "1", Binary: good, SHA256: goodSum},
		{Name: "dup", SiteID: "dup-b", Version: "2", Binary: good, SHA256: goodSum},
	}
	_, err := service.NewSiteService(manifests, nil, nil).Plugins(context.Background())
	require.ErrorContains(t, err, "duplicate")

	manifests = staticManifests{
		{Name: "one", SiteID: "shared", Version: "1", Binary: good, SHA256: goodSum},
		{Name: "two", SiteID: "shared", Version: "1", Binary: good, SHA256: goodSum},
	}
	_, err = service.NewSiteService(manifests, nil, nil).Plugins(context.Background())
	require.ErrorContains(t, err, "claimed by both one and two")
}

func TestRemoveBookmarkValidatesInput(t *testing.T) {
	svc := service.NewSiteService(nil, nil, nil)
	require.ErrorIs(t, svc.RemoveBookmark(context.Background(), "", "1"), apperrors.ErrInvalidInput)

	bookmarks, err := svc.Bookmarks(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, bookmarks)
}
