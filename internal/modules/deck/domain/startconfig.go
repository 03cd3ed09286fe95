package domain

type ResolvedStartConfig struct {
	Config             SessionConfig
	Resumed            bool
	CappedByDailyLimit bool
	// RemainingPosts is -1 when there is no global daily limit.
	RemainingPosts int
}

// ResolveStartConfig picks the config a session starts with. A resumed
// session keeps its snapshot config (overrides still apply) and is never
// re-capped; a fresh session is capped to the posts left in the global daily
// limit.
func ResolveStartConfig(base SessionConfig, overrides ConfigOverrides, resume *SessionSnapshot, limits DailyLimitsConfig, usage DailyUsage) ResolvedStartConfig {
	resumed := resume != nil
	source := base
	if resumed {
		source = resume.Config
	}
	next := overrides.Apply(source).Normalize()

	remaining, limited := RemainingPosts(limits, usage)
	out := ResolvedStartConfig{Config: next, Resumed: resumed, RemainingPosts: -1}
	if limited {
		out.RemainingPosts = remaining
	}
	if !resumed && limited && remaining > 0 && next.PostLimit > remaining {
		out.Config.PostLimit = remaining
		out.CappedByDailyLimit = true
	}
	return out
}
