package browser

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pennyhq/penny-companion/internal/detect"
	"github.com/pennyhq/penny-companion/internal/dispatch"
	"github.com/pennyhq/penny-companion/internal/modal"
	"github.com/pennyhq/penny-companion/internal/model"
)

// TabSession is what the pipeline needs from an attached tab: page access
// plus the two binding callbacks.
type TabSession interface {
	PageDriver
	OnIntercept(fn func())
	OnAction(fn func(action string))
}

// Pipeline wires one observed tab to the interception flow: observer finds
// and arms the control, the controller drives the overlay, the dispatcher
// does the privileged work.
type Pipeline struct {
	sess       TabSession
	observer   *Observer
	controller *modal.Controller

	mu  sync.Mutex
	ctx context.Context
}

// NewPipeline assembles the pipeline over an attached session.
func NewPipeline(sess TabSession, observer *Observer, dispatcher *dispatch.Dispatcher, user model.UserProfile, flow modal.Flow) *Pipeline {
	p := &Pipeline{
		sess:     sess,
		observer: observer,
	}

	p.controller = modal.NewController(modal.Config{
		Surface: NewOverlay(sess),
		Clicker: observer,
		Send:    dispatcher.Dispatch,
		User:    user,
		Flow:    flow,
	})

	sess.OnIntercept(p.handleIntercept)
	sess.OnAction(p.handleAction)
	observer.OnNavigate(p.handleNavigate)
	return p
}

// Controller exposes the modal controller, mainly for status reporting.
func (p *Pipeline) Controller() *modal.Controller {
	return p.controller
}

// Run watches the page until ctx is done.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
	return p.observer.Watch(ctx)
}

// handleNavigate fires when the observed page's URL changes. The modal,
// listeners, and window flags died with the old document, so the flow
// starts over: a stale interception flag would otherwise suppress the new
// page's first checkout click with no overlay to recover through.
func (p *Pipeline) handleNavigate() {
	p.controller.Reset()
	p.mirrorFlag(p.runCtx())
}

// handleIntercept fires when the armed control's click was captured in the
// page. The overlay opens synchronously from the page's point of view; the
// snapshot feeds the legacy flow's price and product name.
func (p *Pipeline) handleIntercept() {
	ctx := p.runCtx()

	snap, err := p.sess.Snapshot(ctx)
	if err != nil {
		slog.Debug("Snapshot at interception failed", "error", err)
		snap = detect.PageSnapshot{}
	}

	page := modal.PageInfo{
		ProductName: detect.ExtractProductName(snap),
		Price:       detect.ExtractPrice(snap),
	}

	if p.controller.Intercept(ctx, page) {
		p.mirrorFlag(ctx)
	}
}

// handleAction routes overlay button presses to controller transitions.
func (p *Pipeline) handleAction(action string) {
	ctx := p.runCtx()

	var err error
	switch action {
	case ActionCancel:
		err = p.controller.Cancel(ctx)
	case ActionKeep:
		err = p.controller.KeepIt(ctx)
	case ActionRetry:
		err = p.controller.Retry(ctx)
	case ActionTrack:
		err = p.controller.ConfirmTracking(ctx)
	case ActionSkip:
		err = p.controller.SkipTracking(ctx)
	case ActionProceed:
		// Pass-through must be set before the replayed click lands.
		p.mirrorFlag(ctx)
		err = p.controller.Proceed(ctx)
	default:
		slog.Debug("Unknown overlay action", "action", action)
		return
	}

	if err != nil {
		slog.Warn("Overlay action failed", "action", action, "error", err)
	}
	p.mirrorFlag(ctx)
}

// mirrorFlag reflects the controller's interception flag into the page so
// the capturing listener can decide synchronously whether to suppress.
func (p *Pipeline) mirrorFlag(ctx context.Context) {
	if err := p.observer.SetPassThrough(ctx, p.controller.WarningShown()); err != nil {
		slog.Debug("Failed to mirror interception flag", "error", err)
	}
}

func (p *Pipeline) runCtx() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx != nil {
		return p.ctx
	}
	return context.Background()
}
