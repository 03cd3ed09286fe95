package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"focusdeck/internal/modules/deck/domain"
)

func usageWith(date string, global int, site map[string]int) domain.DailyUsage {
	u := domain.DailyUsage{DateKey: date, Global: domain.DailyUsageBucket{PostsViewed: global}, PerSite: map[string]domain.DailyUsageBucket{}}
	for k, v := range site {
		u.PerSite[k] = domain.DailyUsageBucket{PostsViewed: v}
	}
	return u
}

func TestNormalizeUsageRollsOverOnNewDate(t *testing.T) {
	t.Parallel()
	for _, prev := range []string{"2026-02-20", "2025-12-31", "", "garbage"} {
		u := usageWith(prev, 40, map[string]int{"x": 30, "hn": 10})
		got := domain.NormalizeUsageForDate(&u, "2026-02-21")
		require.Equal(t, "2026-02-21", got.DateKey)
		require.Zero(t, got.Global.PostsViewed)
		require.Empty(t, got.PerSite)
	}
	got := domain.NormalizeUsageForDate(nil, "2026-02-21")
	require.Equal(t, "2026-02-21", got.DateKey)
	require.NotNil(t, got.PerSite)
}

func TestNormalizeUsageClampsCorruptCounters(t *testing.T) {
	t.Parallel()
	u := usageWith("2026-02-21", -5, map[string]int{"x": -1, "hn": 3})
	got := domain.NormalizeUsageForDate(&u, "2026-02-21")
	require.Zero(t, got.Global.PostsViewed)
	require.Zero(t, got.PerSite["x"].PostsViewed)
	require.Equal(t, 3, got.PerSite["hn"].PostsViewed)

	got.PerSite["hn"] = domain.DailyUsageBucket{PostsViewed: 99}
	require.Equal(t, 3, u.PerSite["hn"].PostsViewed, "normalize must copy")
}

func TestApplyUsageDeltaIsNonMutating(t *testing.T) {
	t.Parallel()
	u := usageWith("2026-02-21", 2, map[string]int{"hn": 2})
	next := domain.ApplyUsageDelta(u, "x", domain.UsageDelta{PostsViewed: 1})
	require.Equal(t, 3, next.Global.PostsViewed)
	require.Equal(t, 1, next.PerSite["x"].PostsViewed)
	require.Equal(t, 2, next.PerSite["hn"].PostsViewed)
	require.Equal(t, 2, u.Global.PostsViewed)
	_, ok := u.PerSite["x"]
	require.False(t, ok)

	same := domain.ApplyUsageDelta(u, "hn", domain.UsageDelta{PostsViewed: -4})
	require.Equal(t, 2, same.Global.PostsViewed)
}

func TestIsDailyLimitReached(t *testing.T) {
	t.Parallel()
	limits := domain.DailyLimitsConfig{
		Global:  domain.DailyLimitRule{MaxPosts: 10},
		PerSite: map[string]domain.DailyLimitRule{"x": {MaxPosts: 3}, "hn": {MaxPosts: 0}},
	}
	require.False(t, domain.IsDailyLimitReached(limits, usageWith("d", 2, map[string]int{"x": 2}), "x"))
	require.True(t, domain.IsDailyLimitReached(limits, usageWith("d", 3, map[string]int{"x": 3}), "x"))
	require.True(t, domain.IsDailyLimitReached(limits, usageWith("d", 10, nil), "reddit"))
	require.False(t, domain.IsDailyLimitReached(limits, usageWith("d", 9, map[string]int{"hn": 9}), "hn"), "zero site rule means no limit")
	require.False(t, domain.IsDailyLimitReached(limits, usageWith("d", 5, map[string]int{"reddit": 500}), "reddit"), "no site rule never blocks")

	none := domain.DailyLimitsConfig{}
	require.False(t, domain.IsDailyLimitReached(none, usageWith("d", 1000, map[string]int{"x": 1000}), "x"))
}

func TestIsDailyLimitReachedIsMonotonic(t *testing.T) {
	t.Parallel()
	limits := domain.DailyLimitsConfig{
		Global:  domain.DailyLimitRule{MaxPosts: 12},
		PerSite: map[string]domain.DailyLimitRule{"x": {MaxPosts: 5}},
	}
	for _, site := range []string{"x", "hn"} {
		reached := false
		u := usageWith("d", 0, nil)
		for i := 0; i < 30; i++ {
			now := domain.IsDailyLimitReached(limits, u, site)
			if reached {
				require.True(t, now, "limit flipped back at %d posts on %s", i, site)
			}
			reached = now
			u = domain.ApplyUsageDelta(u, site, domain.UsageDelta{PostsViewed: 1})
		}
		require.True(t, reached)
	}
}

func TestRemainingPosts(t *testing.T) {
	t.Parallel()
	_, ok := domain.RemainingPosts(domain.DailyLimitsConfig{}, usageWith("d", 3, nil))
	require.False(t, ok)
	left, ok := domain.RemainingPosts(domain.DailyLimitsConfig{Global: domain.DailyLimitRule{MaxPosts: 12}}, usageWith("d", 15, nil))
	require.True(t, ok)
	require.Zero(t, left)
}
