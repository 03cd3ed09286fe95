package apperrors

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrNoActiveSession   = errors.New("no active session")
	ErrNoAdapter         = errors.New("no site adapter supports this url")
	ErrFeedNotLoaded     = errors.New("feed did not load")
	ErrSiteDisabled      = errors.New("focus sessions are disabled for this site")
	ErrDailyLimitReached = errors.New("daily limit reached")
	ErrPromptSuppressed  = errors.New("prompt suppressed for today")
)
