package common

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"

	"github.com/marionet/marionet/log"
)

// LifecycleEvent is a page lifecycle milestone a navigation can wait
// on.
type LifecycleEvent int

const (
	// LifecycleEventLoad waits for the window load event.
	LifecycleEventLoad LifecycleEvent = iota
	// LifecycleEventDOMContentLoad waits for the DOMContentLoaded event.
	LifecycleEventDOMContentLoad
)

func (l LifecycleEvent) String() string {
	switch l {
	case LifecycleEventDOMContentLoad:
		return "domcontentloaded"
	default:
		return "load"
	}
}

// eventName maps the lifecycle milestone to the CDP event that
// announces it.
func (l LifecycleEvent) eventName() string {
	if l == LifecycleEventDOMContentLoad {
		return cdproto.EventPageDomContentEventFired
	}
	return cdproto.EventPageLoadEventFired
}

// GotoOptions customizes a navigation. The zero value waits for the
// load event with the page's default navigation timeout.
type GotoOptions struct {
	Timeout   time.Duration
	WaitUntil LifecycleEvent
}

// Page drives a single browser page over its CDP connection.
type Page struct {
	ctx      context.Context
	conn     *Connection
	logger   *log.Logger
	timeouts *TimeoutSettings

	frameID cdp.FrameID

	// Keyboard is this page's keyboard input device.
	Keyboard *Keyboard

	screencast *Screencast
}

// NewPage attaches to the target behind conn: it enables the Page,
// Runtime and Network domains so their events start flowing, and reads
// the frame tree for the main frame ID. Domains are enabled before
// returning so no caller can race a wait against an event stream that
// is not yet on.
//
// The page runs on the connection's context, which is canceled with
// ErrConnectionClosed on teardown; every wait on the page therefore
// resolves with that error when the connection closes under it.
func NewPage(conn *Connection, logger *log.Logger, parentTimeouts *TimeoutSettings) (*Page, error) {
	ctx := conn.Context()
	p := Page{
		ctx:      ctx,
		conn:     conn,
		logger:   logger,
		timeouts: NewTimeoutSettings(parentTimeouts),
	}
	p.Keyboard = NewKeyboard(ctx, conn)
	p.screencast = newScreencast(&p)

	if err := cdppage.Enable().Do(p.execCtx()); err != nil {
		return nil, fmt.Errorf("enabling page domain: %w", err)
	}
	if err := runtime.Enable().Do(p.execCtx()); err != nil {
		return nil, fmt.Errorf("enabling runtime domain: %w", err)
	}
	if err := p.enableNetwork(); err != nil {
		return nil, err
	}

	tree, err := cdppage.GetFrameTree().Do(cdp.WithExecutor(ctx, conn))
	if err != nil {
		return nil, fmt.Errorf("getting frame tree: %w", err)
	}
	p.frameID = tree.Frame.ID

	return &p, nil
}

// Context returns the page's context.
func (p *Page) Context() context.Context { return p.ctx }

// Connection returns the page's CDP connection.
func (p *Page) Connection() *Connection { return p.conn }

// MainFrameID returns the ID of the page's main frame.
func (p *Page) MainFrameID() cdp.FrameID { return p.frameID }

// Timeouts returns the page's timeout settings.
func (p *Page) Timeouts() *TimeoutSettings { return p.timeouts }

// Screencast returns the page's frame capture pipeline.
func (p *Page) Screencast() *Screencast { return p.screencast }

// Close tears down the page's connection.
func (p *Page) Close() {
	p.conn.Close()
}

func (p *Page) execCtx() context.Context {
	return cdp.WithExecutor(p.ctx, p.conn)
}

// Goto navigates the page to url and blocks until the requested
// lifecycle event fires.
func (p *Page) Goto(url string, opts GotoOptions) error {
	p.logger.Debugf("Page:Goto", "fid:%v url:%q waitUntil:%s", p.frameID, url, opts.WaitUntil)

	evCh, evCancel := p.waitForLifecycle(opts.WaitUntil)

	_, _, errorText, err := cdppage.Navigate(url).Do(p.execCtx())
	if err != nil {
		evCancel()
		return fmt.Errorf("navigating to %q: %w", url, err)
	}
	if errorText != "" {
		evCancel()
		return fmt.Errorf("navigating to %q: %s", url, errorText)
	}

	return p.waitLoad(evCh, evCancel, opts)
}

// Reload reloads the page and blocks until the requested lifecycle
// event fires.
func (p *Page) Reload(opts GotoOptions) error {
	p.logger.Debugf("Page:Reload", "fid:%v waitUntil:%s", p.frameID, opts.WaitUntil)

	evCh, evCancel := p.waitForLifecycle(opts.WaitUntil)

	if err := cdppage.Reload().Do(p.execCtx()); err != nil {
		evCancel()
		return fmt.Errorf("reloading page: %w", err)
	}

	return p.waitLoad(evCh, evCancel, opts)
}

// GoBack navigates one entry back in the page's session history. At
// the start of history it is a no-op and returns nil immediately.
func (p *Page) GoBack(opts GotoOptions) error {
	return p.navigateHistory(-1, opts)
}

// GoForward navigates one entry forward in the page's session history.
// At the end of history it is a no-op and returns nil immediately.
func (p *Page) GoForward(opts GotoOptions) error {
	return p.navigateHistory(+1, opts)
}

func (p *Page) navigateHistory(direction int64, opts GotoOptions) error {
	current, entries, err := cdppage.GetNavigationHistory().Do(p.execCtx())
	if err != nil {
		return fmt.Errorf("getting navigation history: %w", err)
	}
	idx := current + direction
	if idx < 0 || idx >= int64(len(entries)) {
		// Nowhere to go in that direction.
		return nil
	}

	evCh, evCancel := p.waitForLifecycle(opts.WaitUntil)

	if err := cdppage.NavigateToHistoryEntry(entries[idx].ID).Do(p.execCtx()); err != nil {
		evCancel()
		return fmt.Errorf("navigating history: %w", err)
	}

	return p.waitLoad(evCh, evCancel, opts)
}

// waitForLifecycle subscribes to the lifecycle event before the
// triggering command is sent, so a fast navigation cannot fire it
// into the void.
func (p *Page) waitForLifecycle(until LifecycleEvent) (<-chan any, context.CancelFunc) {
	return createWaitForEventHandler(p.conn,
		[]string{until.eventName()},
		func(any) bool { return true })
}

func (p *Page) waitLoad(evCh <-chan any, evCancel context.CancelFunc, opts GotoOptions) error {
	timeout := p.timeouts.normalizeNavigation(opts.Timeout)
	_, err := waitForEvent(p.ctx, evCh, evCancel, timeout, fmt.Sprintf("%s event", opts.WaitUntil))
	return err
}
