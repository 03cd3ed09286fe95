package domain

import "time"

// DateKeyLayout is the calendar-day key used by DailyUsage.
const DateKeyLayout = "2006-01-02"

type DailyUsageBucket struct {
	PostsViewed int `json:"posts_viewed" yaml:"posts_viewed"`
}

type DailyUsage struct {
	DateKey string                      `json:"date_key" yaml:"date_key"`
	Global  DailyUsageBucket            `json:"global" yaml:"global"`
	PerSite map[string]DailyUsageBucket `json:"per_site" yaml:"per_site"`
}

type DailyLimitRule struct {
	MaxPosts int `json:"max_posts" yaml:"max_posts"`
}

// DailyLimitsConfig caps posts per calendar day. MaxPosts 0 means no limit.
type DailyLimitsConfig struct {
	Global  DailyLimitRule            `json:"global" yaml:"global"`
	PerSite map[string]DailyLimitRule `json:"per_site" yaml:"per_site"`
}

type UsageDelta struct {
	PostsViewed int
}

// DateKey formats t as a local calendar day.
func DateKey(t time.Time) string {
	return t.Local().Format(DateKeyLayout)
}

// NormalizeUsageForDate returns zeroed usage stamped dateKey when usage is nil
// or belongs to another day; otherwise a copy with counters clamped to >= 0.
func NormalizeUsageForDate(usage *DailyUsage, dateKey string) DailyUsage {
	if usage == nil || usage.DateKey != dateKey {
		return DailyUsage{DateKey: dateKey, PerSite: map[string]DailyUsageBucket{}}
	}
	out := DailyUsage{
		DateKey: usage.DateKey,
		Global:  DailyUsageBucket{PostsViewed: max(0, usage.Global.PostsViewed)},
		PerSite: make(map[string]DailyUsageBucket, len(usage.PerSite)),
	}
	for site, bucket := range usage.PerSite {
		out.PerSite[site] = DailyUsageBucket{PostsViewed: max(0, bucket.PostsViewed)}
	}
	return out
}

// ApplyUsageDelta adds delta to the global and site buckets without
// mutating usage. Negative deltas count as zero.
func ApplyUsageDelta(usage DailyUsage, siteID string, delta UsageDelta) DailyUsage {
	posts := max(0, delta.PostsViewed)
	out := DailyUsage{
		DateKey: usage.DateKey,
		Global:  DailyUsageBucket{PostsViewed: usage.Global.PostsViewed + posts},
		PerSite: make(map[string]DailyUsageBucket, len(usage.PerSite)+1),
	}
	for site, bucket := range usage.PerSite {
		out.PerSite[site] = bucket
	}
	site := out.PerSite[siteID]
	site.PostsViewed += posts
	out.PerSite[siteID] = site
	return out
}

// IsDailyLimitReached checks the global rule and, only when one exists, the
// rule for siteID.
func IsDailyLimitReached(limits DailyLimitsConfig, usage DailyUsage, siteID string) bool {
	if limits.Global.MaxPosts > 0 && usage.Global.PostsViewed >= limits.Global.MaxPosts {
		return true
	}
	rule, ok := limits.PerSite[siteID]
	if !ok {
		return false
	}
	return rule.MaxPosts > 0 && usage.PerSite[siteID].PostsViewed >= rule.MaxPosts
}

// RemainingPosts reports how many posts the global rule still allows today.
// ok is false when there is no global limit.
func RemainingPosts(limits DailyLimitsConfig, usage DailyUsage) (int, bool) {
	if limits.Global.MaxPosts <= 0 {
		return 0, false
	}
	return max(0, limits.Global.MaxPosts-usage.Global.PostsViewed), true
}

// NormalizeLimits clamps negative rules to zero and drops nil maps.
func NormalizeLimits(limits DailyLimitsConfig) DailyLimitsConfig {
	out := DailyLimitsConfig{
		Global:  DailyLimitRule{MaxPosts: max(0, limits.Global.MaxPosts)},
		PerSite: make(map[string]DailyLimitRule, len(limits.PerSite)),
	}
	for site, rule := range limits.PerSite {
		out.PerSite[site] = DailyLimitRule{MaxPosts: max(0, rule.MaxPosts)}
	}
	return out
}
