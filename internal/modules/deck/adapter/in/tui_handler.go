package in

import (
	"context"

	deckdto "focusdeck/internal/modules/deck/dto"
	deckin "focusdeck/internal/modules/deck/port/in"
)

// TUIHandler is what the terminal UI drives a session through.
type TUIHandler struct {
	usecase deckin.Usecase
}

func NewTUIHandler(usecase deckin.Usecase) TUIHandler {
	return TUIHandler{usecase: usecase}
}

func (h TUIHandler) Start(ctx context.Context, siteID string, postLimit int, fresh bool) (deckdto.StartOutput, error) {
	input := deckdto.StartInput{SiteID: siteID, Fresh: fresh}
	if postLimit > 0 {
		input.Overrides.PostLimit = &postLimit
	}
	return h.usecase.Start(ctx, input)
}

func (h TUIHandler) Stop(ctx context.Context) (deckdto.StopOutput, error) {
	return h.usecase.Stop(ctx)
}

func (h TUIHandler) Pause(ctx context.Context) error  { return h.usecase.Pause(ctx) }
func (h TUIHandler) Resume(ctx context.Context) error { return h.usecase.Resume(ctx) }

func (h TUIHandler) Next(ctx context.Context) (bool, error) {
	return h.usecase.Next(ctx)
}

func (h TUIHandler) Previous(ctx context.Context) (bool, error) {
	return h.usecase.Previous(ctx)
}

// Act runs a post action in response to a key press.
func (h TUIHandler) Act(ctx context.Context, kind deckdto.ActionKind) (deckdto.ActionOutput, error) {
	return h.usecase.RunAction(ctx, deckdto.ActionInput{Kind: kind, UserGesture: true})
}

func (h TUIHandler) Extend(ctx context.Context, additionalPosts int) error {
	return h.usecase.Extend(ctx, additionalPosts)
}

func (h TUIHandler) Back(ctx context.Context) (deckdto.NavigateOutput, error) {
	return h.usecase.Back(ctx)
}

func (h TUIHandler) Navigate(ctx context.Context, url string) (deckdto.NavigateOutput, error) {
	return h.usecase.Navigate(ctx, url)
}

func (h TUIHandler) Prompt(ctx context.Context, url string) (deckdto.PromptOutput, error) {
	return h.usecase.ShowPrompt(ctx, url)
}

func (h TUIHandler) SuppressPromptToday(ctx context.Context, siteID string) error {
	return h.usecase.SuppressPromptToday(ctx, siteID)
}

func (h TUIHandler) Scroll(ctx context.Context, delta float64) error {
	return h.usecase.Viewport(ctx, deckdto.ViewportInput{Kind: deckdto.InputWheel, Delta: delta})
}

// KeyDown reports a key press that is not a session command.
func (h TUIHandler) KeyDown(ctx context.Context) error {
	return h.usecase.Viewport(ctx, deckdto.ViewportInput{Kind: deckdto.InputKeyDown})
}

// PageScroll scrolls the feed from the keyboard, the way page up and page
// down do in a browser.
func (h TUIHandler) PageScroll(ctx context.Context, delta float64) error {
	if err := h.KeyDown(ctx); err != nil {
		return err
	}
	return h.usecase.Viewport(ctx, deckdto.ViewportInput{Kind: deckdto.InputScroll, Delta: delta})
}

func (h TUIHandler) Resize(ctx context.Context, height float64) error {
	return h.usecase.Viewport(ctx, deckdto.ViewportInput{Kind: deckdto.InputResize, Height: height})
}

// Focus reports whether the terminal has focus, which the page treats as
// its visibility.
func (h TUIHandler) Focus(ctx context.Context, focused bool) error {
	kind := deckdto.InputBlur
	if focused {
		kind = deckdto.InputFocus
	}
	return h.usecase.Viewport(ctx, deckdto.ViewportInput{Kind: kind})
}

func (h TUIHandler) Status(ctx context.Context) (deckdto.StatusOutput, error) {
	return h.usecase.Status(ctx)
}

func (h TUIHandler) Subscribe(fn func(deckdto.Event)) func() {
	return h.usecase.Subscribe(fn)
}
