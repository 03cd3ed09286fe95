package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"focusdeck/internal/modules/deck/domain"
)

type staticElement domain.Rect

func (s staticElement) Rect() domain.Rect { return domain.Rect(s) }

func handles(rects ...domain.Rect) []domain.PostHandle {
	out := make([]domain.PostHandle, 0, len(rects))
	for i, r := range rects {
		out = append(out, domain.PostHandle{ID: string(rune('a' + i)), Element: staticElement(r)})
	}
	return out
}

func TestVisibility(t *testing.T) {
	t.Parallel()
	require.True(t, isVisible(domain.Rect{Top: -100, Height: 120}, 600))
	require.False(t, isVisible(domain.Rect{Top: -120, Height: 120}, 600))
	require.False(t, isVisible(domain.Rect{Top: 600, Height: 120}, 600))
	require.False(t, isVisible(domain.Rect{Top: 10, Height: 20}, 600))
}

func TestNearCenterBand(t *testing.T) {
	t.Parallel()
	// 600px viewport: band is max(140, 120) = 140.
	require.True(t, isNearCenter(domain.Rect{Top: 380, Height: 120}, 600))
	require.False(t, isNearCenter(domain.Rect{Top: 390, Height: 120}, 600))
	// 1000px viewport: band is 200.
	require.True(t, isNearCenter(domain.Rect{Top: 640, Height: 120}, 1000))
}

func TestPickFocus(t *testing.T) {
	t.Parallel()
	items := handles(
		domain.Rect{Top: -150, Height: 120},
		domain.Rect{Top: 130, Height: 120},
		domain.Rect{Top: 410, Height: 120},
	)
	best, ok := pickFocus(items, 600, 150)
	require.True(t, ok)
	require.Equal(t, "b", best.ID)

	best, ok = pickFocus(items, 600, -1)
	require.True(t, ok)
	require.Equal(t, "b", best.ID)

	// At the top the first visible post wins even if another is closer.
	best, ok = pickFocus(handles(
		domain.Rect{Top: 0, Height: 120},
		domain.Rect{Top: 240, Height: 120},
	), 600, 0)
	require.True(t, ok)
	require.Equal(t, "a", best.ID)

	// Ties go to the earlier post.
	best, ok = pickFocus(handles(
		domain.Rect{Top: 90, Height: 120},
		domain.Rect{Top: 390, Height: 120},
	), 600, 50)
	require.True(t, ok)
	require.Equal(t, "a", best.ID)

	_, ok = pickFocus(handles(domain.Rect{Top: 700, Height: 120}), 600, 200)
	require.False(t, ok)
}
