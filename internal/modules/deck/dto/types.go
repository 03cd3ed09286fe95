package dto

import (
	"time"

	"focusdeck/internal/modules/deck/domain"
)

// Aliases let inbound adapters name domain values without importing the
// domain package.
type (
	Phase       = domain.SessionPhase
	PauseReason = domain.PauseReason
	ActionKind  = domain.ActionKind
	ThemeMode   = domain.ThemeMode

	ViewportInput = domain.ViewportInput
)

const (
	PhaseIdle      = domain.PhaseIdle
	PhasePrompting = domain.PhasePrompting
	PhaseActive    = domain.PhaseActive
	PhasePaused    = domain.PhasePaused
	PhaseCompleted = domain.PhaseCompleted

	PauseManual     = domain.PauseManual
	PauseDetails    = domain.PauseDetails
	PauseNavigation = domain.PauseNavigation
	PauseLimit      = domain.PauseLimit

	ActionNotInterested = domain.ActionNotInterested
	ActionBookmark      = domain.ActionBookmark
	ActionOpenOriginal  = domain.ActionOpenOriginal

	InputScroll  = domain.InputScroll
	InputWheel   = domain.InputWheel
	InputKeyDown = domain.InputKeyDown
	InputResize  = domain.InputResize
	InputFocus   = domain.InputFocus
	InputBlur    = domain.InputBlur
)

// ViewState is what subscribers see after every engine state change. The
// snapshot is a deep copy.
type ViewState struct {
	Snapshot      domain.SessionSnapshot
	FocusedHandle *domain.PostHandle
	FocusedMeta   *domain.PostMeta
	FeedCount     int
	// Feed lists the rendered posts in order.
	Feed []domain.HandleKey
	// LoadError is set while the adapter's latest feed load has failed.
	LoadError string
}

// ViewedMarks reports, per entry of Feed, whether the post has been counted.
func (v ViewState) ViewedMarks() []bool {
	viewed := make(map[string]struct{}, len(v.Snapshot.Stats.ViewedPostIDs))
	for _, id := range v.Snapshot.Stats.ViewedPostIDs {
		viewed[id] = struct{}{}
	}
	viewed = domain.ExpandViewedKeys(viewed, v.Feed)
	marks := make([]bool, len(v.Feed))
	for i, h := range v.Feed {
		marks[i] = domain.IsHandleViewed(viewed, h.HandleID, h.ProgressKey)
	}
	return marks
}

type StartInput struct {
	// URL selects the adapter through the registry; SiteID selects it
	// directly and wins when both are set.
	URL       string
	SiteID    string
	Overrides ConfigInput
	// Fresh ignores any persisted snapshot.
	Fresh bool
}

// ConfigInput carries optional session config changes; nil keeps the
// current value.
type ConfigInput struct {
	PostLimit   *int
	ThemeMode   *string
	MinimalMode *bool
}

type StartOutput struct {
	AdapterID          string
	AdapterName        string
	Config             domain.SessionConfig
	Resumed            bool
	CappedByDailyLimit bool
	RemainingPosts     int
	Attempts           int
}

type StopOutput struct {
	SessionID   string
	Summary     domain.SessionSummary
	JournalPath string
}

type ActionInput struct {
	Kind        ActionKind
	UserGesture bool
}

type ActionOutput struct {
	OK      bool
	Message string
	// CanUndo is true when the site returned an undo handle.
	CanUndo bool
}

type EventKind string

const (
	EventView       EventKind = "view"
	EventCompleted  EventKind = "completed"
	EventStopped    EventKind = "stopped"
	EventDailyLimit EventKind = "daily-limit"
	EventUsage      EventKind = "usage"
)

// Event is delivered to usecase subscribers. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind    EventKind
	View    ViewState
	Summary domain.SessionSummary
	Usage   domain.DailyUsage
}

type PromptOutput struct {
	Show           bool
	SiteID         string
	SiteName       string
	Suppressed     bool
	LimitReached   bool
	RemainingPosts int
}

type NavigateOutput struct {
	Phase       domain.SessionPhase
	PauseReason domain.PauseReason
	Resumed     bool
	Paused      bool
}

type StatusOutput struct {
	Active    bool
	AdapterID string
	View      ViewState
	Usage     domain.DailyUsage
	Limits    domain.DailyLimitsConfig
	LimitHit  bool
	Persisted *domain.SessionSnapshot
	DateKey   string
	CheckedAt time.Time
}

// LimitsInput changes daily limits; nil fields keep the current rule.
// SiteMaxPosts applies to Site.
type LimitsInput struct {
	GlobalMaxPosts *int
	Site           string
	SiteMaxPosts   *int
}

type SettingsOutput struct {
	Session domain.SessionConfig
	Limits  domain.DailyLimitsConfig
}

type SiteOutput struct {
	ID      string
	Name    string
	Enabled bool
}

type HistoryOutput struct {
	ID          string
	AdapterID   string
	StartedAt   time.Time
	EndedAt     time.Time
	Reason      domain.CompletionReason
	ViewedCount int
	DurationMs  int64
	ActiveMs    int64
}
