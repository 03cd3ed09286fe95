package domain

import (
	"time"
)

const SchemaVersion = 1

type ThemeMode string

const (
	ThemeSystem ThemeMode = "system"
	ThemeLight  ThemeMode = "light"
	ThemeDark   ThemeMode = "dark"
)

func (m ThemeMode) Valid() bool {
	switch m {
	case ThemeSystem, ThemeLight, ThemeDark:
		return true
	default:
		return false
	}
}

type SessionPhase string

const (
	PhaseIdle      SessionPhase = "idle"
	PhasePrompting SessionPhase = "prompting"
	PhaseActive    SessionPhase = "active"
	PhasePaused    SessionPhase = "paused"
	PhaseCompleted SessionPhase = "completed"
)

// PauseReason is empty when the session is not paused.
type PauseReason string

const (
	PauseNone       PauseReason = ""
	PauseManual     PauseReason = "manual"
	PauseDetails    PauseReason = "details"
	PauseNavigation PauseReason = "navigation"
	PauseLimit      PauseReason = "limit"
)

// IsRoute reports whether the pause was caused by leaving the feed and may
// be resumed automatically when the user returns.
func (r PauseReason) IsRoute() bool {
	return r == PauseDetails || r == PauseNavigation
}

type CompletionReason string

const (
	CompletionPostsLimit CompletionReason = "posts-limit"
	CompletionManual     CompletionReason = "manual"
)

type SessionConfig struct {
	PostLimit   int       `json:"post_limit" yaml:"post_limit"`
	ThemeMode   ThemeMode `json:"theme_mode" yaml:"theme_mode"`
	MinimalMode bool      `json:"minimal_mode" yaml:"minimal_mode"`
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{PostLimit: 20, ThemeMode: ThemeSystem, MinimalMode: true}
}

// Normalize replaces out-of-range fields with defaults.
func (c SessionConfig) Normalize() SessionConfig {
	def := DefaultSessionConfig()
	if c.PostLimit < 1 {
		c.PostLimit = def.PostLimit
	}
	if !c.ThemeMode.Valid() {
		c.ThemeMode = def.ThemeMode
	}
	return c
}

// ConfigOverrides carries the fields a caller wants to change; nil fields
// keep the base value.
type ConfigOverrides struct {
	PostLimit   *int
	ThemeMode   *ThemeMode
	MinimalMode *bool
}

func (o ConfigOverrides) Apply(c SessionConfig) SessionConfig {
	if o.PostLimit != nil {
		c.PostLimit = *o.PostLimit
	}
	if o.ThemeMode != nil {
		c.ThemeMode = *o.ThemeMode
	}
	if o.MinimalMode != nil {
		c.MinimalMode = *o.MinimalMode
	}
	return c
}

type ActionCounters struct {
	NotInterested int `json:"not_interested"`
	Bookmarked    int `json:"bookmarked"`
	OpenedDetails int `json:"opened_details"`
}

type SessionStats struct {
	ViewedCount   int            `json:"viewed_count"`
	ViewedPostIDs []string       `json:"viewed_post_ids"`
	ActiveMs      int64          `json:"active_ms"`
	Actions       ActionCounters `json:"actions"`
}

type SessionSnapshot struct {
	Phase         SessionPhase  `json:"phase"`
	AdapterID     string        `json:"adapter_id"`
	Config        SessionConfig `json:"config"`
	StartedAt     time.Time     `json:"started_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	FocusedPostID string        `json:"focused_post_id,omitempty"`
	PauseReason   PauseReason   `json:"pause_reason,omitempty"`
	Stats         SessionStats  `json:"stats"`
}

// Clone returns a deep copy; mutating it never affects the original.
func (s SessionSnapshot) Clone() SessionSnapshot {
	out := s
	out.Stats.ViewedPostIDs = append([]string(nil), s.Stats.ViewedPostIDs...)
	return out
}

// NormalizeSnapshot repairs a snapshot read from storage: unknown phases
// become idle, counters are clamped, viewed ids are de-duplicated and the
// viewed count is recomputed from them.
func NormalizeSnapshot(s SessionSnapshot) SessionSnapshot {
	switch s.Phase {
	case PhaseIdle, PhasePrompting, PhaseActive, PhasePaused, PhaseCompleted:
	default:
		s.Phase = PhaseIdle
	}
	switch s.PauseReason {
	case PauseNone, PauseManual, PauseDetails, PauseNavigation, PauseLimit:
	default:
		s.PauseReason = PauseNone
	}
	s.Config = s.Config.Normalize()
	seen := make(map[string]struct{}, len(s.Stats.ViewedPostIDs))
	ids := make([]string, 0, len(s.Stats.ViewedPostIDs))
	for _, id := range s.Stats.ViewedPostIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	s.Stats.ViewedPostIDs = ids
	s.Stats.ViewedCount = len(ids)
	s.Stats.ActiveMs = max(0, s.Stats.ActiveMs)
	s.Stats.Actions.NotInterested = max(0, s.Stats.Actions.NotInterested)
	s.Stats.Actions.Bookmarked = max(0, s.Stats.Actions.Bookmarked)
	s.Stats.Actions.OpenedDetails = max(0, s.Stats.Actions.OpenedDetails)
	return s
}

type SessionSummary struct {
	Reason      CompletionReason `json:"reason"`
	ViewedCount int              `json:"viewed_count"`
	DurationMs  int64            `json:"duration_ms"`
}

// SessionRecord is a finished session as kept in the history.
type SessionRecord struct {
	ID        string
	AdapterID string
	StartedAt time.Time
	EndedAt   time.Time
	Summary   SessionSummary
	Stats     SessionStats
}
