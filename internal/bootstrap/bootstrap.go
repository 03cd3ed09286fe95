package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	hclog "github.com/hashicorp/go-hclog"

	deckinadapter "focusdeck/internal/modules/deck/adapter/in"
	deckoutadapter "focusdeck/internal/modules/deck/adapter/out"
	deckout "focusdeck/internal/modules/deck/port/out"
	deckservice "focusdeck/internal/modules/deck/service"
	deckusecase "focusdeck/internal/modules/deck/usecase"
	siteinadapter "focusdeck/internal/modules/site/adapter/in"
	siteoutadapter "focusdeck/internal/modules/site/adapter/out"
	siteservice "focusdeck/internal/modules/site/service"
	siteusecase "focusdeck/internal/modules/site/usecase"
	"focusdeck/internal/platform/clock"
	"focusdeck/internal/platform/config"
	"focusdeck/internal/platform/id"
	"focusdeck/internal/platform/logging"
	uiapp "focusdeck/internal/ui/app"
)

type App struct {
	DeckCLI deckinadapter.CLIHandler
	DeckTUI deckinadapter.TUIHandler
	SiteCLI siteinadapter.CLIHandler
	Logger  hclog.Logger

	registry *deckservice.Registry
	sites    *siteservice.SiteService
	pageOpts siteoutadapter.PageOptions

	mu      sync.Mutex
	closers []func() error
}

// SiteOptions pick the feed a session runs on. At most one of Feed and
// Plugin may be set; with neither, Site names a built-in site.
type SiteOptions struct {
	Feed   string
	Site   string
	Plugin string
}

func New(cfg config.Config) (*App, error) {
	logger, logCloser, err := logging.NewFile(cfg.LogLevel, cfg.LogPath)
	if err != nil {
		return nil, err
	}
	app := &App{Logger: logger}
	app.onClose(logCloser.Close)

	clk := clock.SystemClock{}
	scheduler := clock.SystemScheduler{}

	history, err := deckoutadapter.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("new session store: %w", err)
	}
	app.onClose(history.Close)

	var sessions deckout.SessionStore = history
	if cfg.Storage == config.StorageFile {
		sessions = deckoutadapter.NewFileSessionStore(cfg.SnapshotPath)
	}

	bookmarks, err := siteoutadapter.NewSQLiteBookmarkStore(cfg.DBPath)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("new bookmark store: %w", err)
	}
	app.onClose(bookmarks.Close)

	app.sites = siteservice.NewSiteService(
		siteoutadapter.NewFileManifestStore(cfg.PluginDir),
		siteoutadapter.NewGRPCHost(logger),
		bookmarks,
	)
	app.pageOpts = siteoutadapter.PageOptions{Bookmarks: bookmarks, Clock: clk, Logger: logger}

	// Hacker News is always known so it can be listed and toggled; its feed
	// loads when a session starts on it.
	app.registry = deckservice.NewRegistry(
		siteoutadapter.NewHNAdapter(siteoutadapter.NewHNSource(siteoutadapter.DefaultHNBaseURL, http.DefaultClient), app.pageOpts),
	)

	deckUC := deckusecase.NewInteractor(deckusecase.Deps{
		Registry:   app.registry,
		Dispatcher: deckservice.NewActionDispatcher(clk, scheduler, cfg.ActionRateLimit, logger),
		Sessions:   sessions,
		Settings:   deckoutadapter.NewYAMLSettingsStore(cfg.SettingsPath),
		History:    history,
		Journal:    deckoutadapter.NewMarkdownJournal(cfg.JournalDir),
		Clock:      clk,
		Scheduler:  scheduler,
		IDs:        id.NewULID(),
		Logger:     logger,
		Options: deckusecase.Options{
			StartTimeout:    cfg.StartTimeout,
			StartPoll:       cfg.StartPoll,
			TickInterval:    cfg.TickInterval,
			PersistDebounce: cfg.PersistDebounce,
		},
	})

	app.DeckCLI = deckinadapter.NewCLIHandler(deckUC)
	app.DeckTUI = deckinadapter.NewTUIHandler(deckUC)
	app.SiteCLI = siteinadapter.NewCLIHandler(siteusecase.NewInteractor(app.sites))
	return app, nil
}

// OpenSite makes the chosen feed available to sessions and returns its site
// id. Plugin processes are stopped by Close.
func (a *App) OpenSite(ctx context.Context, opts SiteOptions) (string, error) {
	switch {
	case opts.Feed != "" && opts.Plugin != "":
		return "", errors.New("--feed and --plugin are mutually exclusive")
	case opts.Feed != "":
		adapter, err := siteoutadapter.NewFixtureAdapter(ctx, opts.Feed, a.pageOpts)
		if err != nil {
			return "", fmt.Errorf("open feed %s: %w", opts.Feed, err)
		}
		a.registry.Register(adapter)
		a.onClose(func() error { adapter.WaitLoads(); return nil })
		return adapter.ID(), nil
	case opts.Plugin != "":
		feed, err := a.sites.OpenPlugin(ctx, opts.Plugin)
		if err != nil {
			return "", err
		}
		adapter, err := siteoutadapter.NewPluginAdapter(ctx, feed, a.pageOpts)
		if err != nil {
			return "", fmt.Errorf("open plugin %s: %w", opts.Plugin, err)
		}
		a.registry.Register(adapter)
		a.onClose(func() error { adapter.Close(); return nil })
		return adapter.ID(), nil
	}
	siteID := strings.TrimSpace(opts.Site)
	if siteID == "" {
		siteID = siteoutadapter.HNSiteID
	}
	if _, ok := a.registry.Get(siteID); !ok {
		return "", fmt.Errorf("unknown site %q", siteID)
	}
	return siteID, nil
}

func (a *App) onClose(fn func() error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, fn)
}

// Close releases stores and plugin processes in reverse order of creation.
func (a *App) Close() error {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func RunTUI(app *App, opts uiapp.Options, output io.Writer) error {
	model := uiapp.NewModel(app.DeckTUI, opts)
	program := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithReportFocus(),
		tea.WithOutput(output),
	)
	_, err := program.Run()
	if err != nil {
		app.Logger.Error("tui exited", "error", err)
	}
	return err
}
