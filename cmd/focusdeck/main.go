package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"focusdeck/internal/bootstrap"
	deckdto "focusdeck/internal/modules/deck/dto"
	"focusdeck/internal/platform/config"
	uiapp "focusdeck/internal/ui/app"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dataDir string

	root := &cobra.Command{
		Use:           "focusdeck",
		Short:         "Bounded, distraction-free feed sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "directory for settings, state and journal")

	root.AddCommand(newRunCmd(&dataDir))
	root.AddCommand(newSessionCmd(&dataDir))
	root.AddCommand(newUsageCmd(&dataDir))
	root.AddCommand(newLimitsCmd(&dataDir))
	root.AddCommand(newConfigCmd(&dataDir))
	root.AddCommand(newSitesCmd(&dataDir))
	root.AddCommand(newJournalCmd(&dataDir))
	root.AddCommand(newBookmarksCmd(&dataDir))
	root.AddCommand(newPluginsCmd(&dataDir))
	return root
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "focusdeck")
	}
	return ".focusdeck"
}

func loadApp(dataDir string) (*bootstrap.App, error) {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(cfg)
}

// withApp runs fn against a freshly loaded app and closes it afterwards.
func withApp(dataDir *string, fn func(ctx context.Context, app *bootstrap.App) error) error {
	app, err := loadApp(*dataDir)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	return fn(context.Background(), app)
}

func newRunCmd(dataDir *string) *cobra.Command {
	var opts bootstrap.SiteOptions
	var limit int
	var fresh bool

	run := &cobra.Command{
		Use:   "run",
		Short: "Run a focus session in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(dataDir, func(ctx context.Context, app *bootstrap.App) error {
				siteID, err := app.OpenSite(ctx, opts)
				if err != nil {
					return err
				}
				return bootstrap.RunTUI(app, uiapp.Options{SiteID: siteID, PostLimit: limit, Fresh: fresh}, cmd.OutOrStdout())
			})
		},
	}
	run.Flags().StringVar(&opts.Feed, "feed", "", "YAML feed file to read")
	run.Flags().StringVar(&opts.Site, "site", "hn", "built-in site")
	run.Flags().StringVar(&opts.Plugin, "plugin", "", "site plugin name")
	run.Flags().IntVar(&limit, "limit", 0, "post limit for this session (default from config)")
	run.Flags().BoolVar(&fresh, "fresh", false, "ignore the saved session")
	return run
}

func newSessionCmd(dataDir *string) *cobra.Command {
	session := &cobra.Command{Use: "session", Short: "Saved session state"}

	session.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the saved session snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(dataDir, func(ctx context.Context, app *bootstrap.App) error {
				status, err := app.DeckCLI.Status(ctx)
				if err != nil {
					return err
				}
				snap := status.Persisted
				if snap == nil {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no saved session")
					return nil
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "site: %s\nphase: %s\nviewed: %d/%d\nstarted: %s\nupdated: %s\n",
					snap.AdapterID, snap.Phase, snap.Stats.ViewedCount, snap.Config.PostLimit,
					formatTime(snap.StartedAt), formatTime(snap.UpdatedAt))
				if snap.PauseReason != "" {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "paused: %s\n", snap.PauseReason)
				}
				return nil
			})
		},
	})
	session.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(dataDir, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.DeckCLI.ClearSnapshot(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "session cleared")
				return nil
			})
		},
	})
	return session
}

func newUsageCmd(dataDir *string) *cobra.Command {
	usage := &cobra.Command{Use: "usage", Short: "Today's post usage"}

	usage.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show posts viewed today",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(dataDir, func(ctx context.Context, app *bootstrap.App) error {
				status, err := app.DeckCLI.Status(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(w, "date: %s\nall sites: %d%s\n", status.DateKey,
					status.Usage.Global.PostsViewed, limitSuffix(status.Limits.Global.MaxPosts))
				for _, site := range sortedKeys(status.Usage.PerSite) {
					_, _ = fmt.Fprintf(w, "%s: %d%s\n", site, status.Usage.PerSite[site].PostsViewed,
						limitSuffix(status.Limits.PerSite[site].MaxPosts))
				}
				if status.LimitHit {
					_, _ = fmt.Fprintln(w, "daily limit reached")
				}
				return nil
			})
		},
	})
	usage.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Reset today's usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(dataDir, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.DeckCLI.ClearUsage(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "usage cleared")
				return nil
			})
		},
	})
	return usage
}

func newLimitsCmd(dataDir *string) *cobra.Command {
	limits := &cobra.Command{Use: "limits", Short: "Daily post limits"}

	limits.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show daily limits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(dataDir, func(ctx context.Context, app *bootstrap.App) error {
				settings, err := app.DeckCLI.Settings(ctx)
				if err != nil {
					return err
				}
				printLimits(cmd, settings)
				return nil
			})
		},
	})

	var site string
	set := &cobra.Command{
		Use:   "set <max-posts>",
		Short: "Set the daily limit (0 removes it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxPosts, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("max posts must be a number: %q", args[0])
			}
			return withApp(dataDir, func(ctx context.Context, app *bootstrap.App) error {
				var settings deckdto.SettingsOutput
				if strings.TrimSpace(site) == "" {
					settings, err = app.DeckCLI.SetGlobalLimit(ctx, maxPosts)
				} else {
					settings, err = app.DeckCLI.SetSiteLimit(ctx, site, maxPosts)
				}
				if err != nil {
					return err
				}
				printLimits(cmd, settings)
				return nil
			})
		},
	}
	set.Flags().StringVar(&site, "site", "", "apply to one site instead of all")
	limits.AddCommand(set)
	return limits
}

func printLimits(cmd *cobra.Command, settings deckdto.SettingsOutput) {
	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "all sites: %s\n", limitText(settings.Limits.Global.MaxPosts))
	for _, site := range sortedKeys(settings.Limits.PerSite) {
		_, _ = fmt.Fprintf(w, "%s: %s\n", site, limitText(settings.Limits.PerSite[site].MaxPosts))
	}
}

func newConfigCmd(dataDir *string) *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Session defaults"}

	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show session defaults",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(dataDir, func(ctx context.Context, app *bootstrap.App) error {
				settings, err := app.DeckCLI.Settings(ctx)
				if err != nil {
					return err
				}
				printConfig(cmd, settings)
				return nil
			})
		},
	})

	var postLimit int
	var themeMode string
	var minimal bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Change session defaults",
		RunE: func(cmd *cobra.Command, _ []string) error {
			input := deckdto.ConfigInput{}
			if cmd.Flags().Changed("post-limit") {
				input.PostLimit = &postLimit
			}
			if cmd.Flags().Changed("theme") {
				input.ThemeMode = &themeMode
			}
			if cmd.Flags().Changed("minimal") {
				input.MinimalMode = &minimal
			}
			if input.PostLimit == nil && input.ThemeMode == nil && input.MinimalMode == nil {
				return fmt.Errorf("nothing to change: use --post-limit, --theme or --minimal")
			}
			return withApp(dataDir, func(ctx context.Context, app *bootstrap.App) error {
				settings, err := app.DeckCLI.UpdateConfig(ctx, input)
				if err != nil {
					return err
				}
				printConfig(cmd, settings)
				return nil
			})
		},
	}
	set.Flags().IntVar(&postLimit, "post-limit", 0, "posts per session")
	set.Flags().StringVar(&themeMode, "theme", "", "system|light|dark")
	set.Flags().BoolVar(&minimal, "minimal", true, "hide the feed mini-map")
	cfg.AddCommand(set)
	return cfg
}

func printConfig(cmd *cobra.Command, settings deckdto.SettingsOutput) {
	s := settings.Session
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "post limit: %d\ntheme: %s\nminimal: %t\n", s.PostLimit, s.ThemeMode, s.MinimalMode)
}

func newSitesCmd(dataDir *string) *cobra.Command {
	sites := &cobra.Command{Use: "sites", Short: "Known sites"}

	sites.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sites and whether sessions may run on them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(dataDir, func(ctx context.Context, app *bootstrap.App) error {
				list, err := app.DeckCLI.Sites(ctx)
				if err != nil {
					return err
				}
				for _, s := range list {
					state := "enabled"
					if !s.Enabled {
						state = "disabled"
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", s.ID, s.Name, state)
				}
				return nil
			})
		},
	})
	for _, enabled := range []bool{true, false} {
		verb := "enable"
		if !enabled {
			verb = "disable"
		}
		sites.AddCommand(&cobra.Command{
			Use:   verb + " <site-id>",
			Short: strings.ToUpper(verb[:1]) + verb[1:] + " sessions on a site",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(dataDir, func(ctx context.Context, app *bootstrap.App) error {
					if err := app.DeckCLI.SetSiteEnabled(ctx, args[0], enabled); err != nil {
						return err
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %sd\n", args[0], verb)
					return nil
				})
			},
		})
	}
	return sites
}

func newJournalCmd(dataDir *string) *cobra.Command {
	journal := &cobra.Command{Use: "journal", Short: "Finished sessions"}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List finished sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(dataDir, func(ctx context.Context, app *bootstrap.App) error {
				records, err := app.DeckCLI.History(ctx, limit)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no sessions yet")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "STARTED\tSITE\tPOSTS\tDURATION\tREASON")
				for _, r := range records {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", formatTime(r.StartedAt), r.AdapterID, r.ViewedCount,
						(time.Duration(r.DurationMs) * time.Millisecond).Round(time.Second), r.Reason)
				}
				return w.Flush()
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum sessions to list (0 lists all)")
	journal.AddCommand(list)
	return journal
}

func newBookmarksCmd(dataDir *string) *cobra.Command {
	bookmarks := &cobra.Command{Use: "bookmarks", Short: "Saved posts"}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List bookmarks, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(dataDir, func(ctx context.Context, app *bootstrap.App) error {
				saved, err := app.SiteCLI.Bookmarks(ctx, limit)
				if err != nil {
					return err
				}
				if len(saved) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no bookmarks")
					return nil
				}
				for _, b := range saved {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", b.SiteID, b.PostID, b.Author, b.Permalink)
				}
				return nil
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "maximum bookmarks to list (0 lists all)")
	bookmarks.AddCommand(list)

	bookmarks.AddCommand(&cobra.Command{
		Use:   "remove <site-id> <post-id>",
		Short: "Delete a bookmark",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(dataDir, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.SiteCLI.RemoveBookmark(ctx, args[0], args[1]); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "bookmark removed")
				return nil
			})
		},
	})
	return bookmarks
}

func newPluginsCmd(dataDir *string) *cobra.Command {
	plugins := &cobra.Command{Use: "plugins", Short: "Site plugins"}

	plugins.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List plugin manifests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(dataDir, func(ctx context.Context, app *bootstrap.App) error {
				list, err := app.SiteCLI.Plugins(ctx)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no plugins configured")
					return nil
				}
				for _, p := range list {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\tsite=%s\t%s\tenabled=%t\t%s\n", p.Name, p.SiteID, p.Version, p.Enabled, p.Binary)
				}
				return nil
			})
		},
	})
	plugins.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "Validate plugin checksums and start each enabled plugin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(dataDir, func(ctx context.Context, app *bootstrap.App) error {
				results, err := app.SiteCLI.Doctor(ctx)
				if err != nil {
					return err
				}
				if len(results) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no plugins configured")
					return nil
				}
				for _, r := range results {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\tsite=%s\tchecksum=%t\tbinary=%t\tlifecycle=%t",
						r.Name, r.SiteID, r.ChecksumValid, r.BinaryReachable, r.LifecycleOK)
					if r.Error != "" {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\terror=%s", r.Error)
					}
					_, _ = fmt.Fprintln(cmd.OutOrStdout())
				}
				return nil
			})
		},
	})
	return plugins
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func limitText(maxPosts int) string {
	if maxPosts <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d posts", maxPosts)
}

func limitSuffix(maxPosts int) string {
	if maxPosts <= 0 {
		return ""
	}
	return fmt.Sprintf("/%d", maxPosts)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
