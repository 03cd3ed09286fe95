package service

import (
	"math"

	"focusdeck/internal/modules/deck/domain"
)

const (
	// minVisibleHeight filters out collapsed placeholders.
	minVisibleHeight = 20

	minCenterBand   = 140
	centerBandRatio = 0.2

	// topTolerance is how close to zero a scroll offset must be to count as
	// the top of the feed.
	topTolerance = 1
)

func isVisible(r domain.Rect, viewportHeight float64) bool {
	return r.Bottom() > 0 && r.Top < viewportHeight && r.Height > minVisibleHeight
}

func isNearCenter(r domain.Rect, viewportHeight float64) bool {
	band := math.Max(minCenterBand, viewportHeight*centerBandRatio)
	return math.Abs(r.Center()-viewportHeight/2) <= band
}

// pickFocus chooses the post that should hold focus. At the top of the feed
// the first visible post wins; otherwise the visible post whose center is
// closest to the viewport center, earliest on ties. scrollTop < 0 means the
// offset is unknown.
func pickFocus(items []domain.PostHandle, viewportHeight, scrollTop float64) (domain.PostHandle, bool) {
	atTop := scrollTop >= 0 && scrollTop <= topTolerance
	center := viewportHeight / 2
	best, bestDist, found := domain.PostHandle{}, math.Inf(1), false
	for _, item := range items {
		if item.Element == nil {
			continue
		}
		r := item.Element.Rect()
		if !isVisible(r, viewportHeight) {
			continue
		}
		if atTop {
			return item, true
		}
		if d := math.Abs(r.Center() - center); d < bestDist {
			best, bestDist, found = item, d, true
		}
	}
	return best, found
}
