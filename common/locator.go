package common

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/runtime"
)

// Locator identifies an element by CSS selector, by its text content,
// or by its accessibility role. Exactly one field is set.
type Locator struct {
	Selector string
	Text     string
	Role     string
}

// ByCSS locates the first element matching a CSS selector.
func ByCSS(selector string) Locator { return Locator{Selector: selector} }

// ByText locates the first element whose trimmed text content equals
// text.
func ByText(text string) Locator { return Locator{Text: text} }

// ByRole locates the first element with the given ARIA role, explicit
// or implied by its tag.
func ByRole(role string) Locator { return Locator{Role: role} }

func (l Locator) String() string {
	switch {
	case l.Text != "":
		return fmt.Sprintf("text=%q", l.Text)
	case l.Role != "":
		return fmt.Sprintf("role=%q", l.Role)
	default:
		return fmt.Sprintf("css=%q", l.Selector)
	}
}

// expression builds a JavaScript expression evaluating to the first
// matching element, or null when nothing matches.
func (l Locator) expression() string {
	switch {
	case l.Text != "":
		return fmt.Sprintf(`(() => {
			const want = %s.trim();
			for (const el of document.querySelectorAll('*')) {
				if (el.children.length === 0 && el.textContent.trim() === want) return el;
			}
			return null;
		})()`, strconv.Quote(l.Text))
	case l.Role != "":
		return fmt.Sprintf(`(() => {
			const role = %s;
			const implied = {
				a: 'link', button: 'button', h1: 'heading', h2: 'heading',
				h3: 'heading', h4: 'heading', h5: 'heading', h6: 'heading',
				img: 'image', input: 'textbox', nav: 'navigation',
				select: 'combobox', textarea: 'textbox',
			};
			const explicit = document.querySelector('[role=' + JSON.stringify(role) + ']');
			if (explicit) return explicit;
			for (const el of document.querySelectorAll('*')) {
				if (implied[el.tagName.toLowerCase()] === role) return el;
			}
			return null;
		})()`, strconv.Quote(l.Role))
	default:
		return fmt.Sprintf(`document.querySelector(%s)`, strconv.Quote(l.Selector))
	}
}

// WaitForSelectorOptions customizes WaitForSelector. Visible and
// Hidden are mutually exclusive.
type WaitForSelectorOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
	Visible      bool
	Hidden       bool
}

// WaitForSelector polls for an element matching loc until the
// condition implied by opts holds or the timeout elapses.
//
// With default options any match succeeds. With Visible the match must
// also be visible per ElementHandle.visible. With Hidden the poll
// succeeds when no element matches, or a match is not visible; a
// selector that never matched anything therefore succeeds on the
// first poll.
//
// On success with Hidden set the returned handle is nil. The caller
// owns any non-nil handle and should Dispose of it.
func (p *Page) WaitForSelector(loc Locator, opts WaitForSelectorOptions) (*ElementHandle, error) {
	p.logger.Debugf("Page:WaitForSelector", "fid:%v loc:%s visible:%t hidden:%t",
		p.frameID, loc, opts.Visible, opts.Hidden)

	if opts.Visible && opts.Hidden {
		return nil, fmt.Errorf("waiting for %s: visible and hidden are mutually exclusive", loc)
	}

	var found *ElementHandle
	probe := func() (bool, error) {
		handle, err := p.resolve(loc)
		if err != nil {
			// The page may be mid-navigation or the execution context
			// recycled between polls. Try again on the next tick.
			var protoErr *cdproto.Error
			if errors.As(err, &protoErr) {
				p.logger.Debugf("Page:WaitForSelector", "retrying after %v", err)
				return false, nil
			}
			return false, err
		}

		switch {
		case opts.Hidden:
			if handle == nil {
				return true, nil
			}
			visible, err := handle.visible()
			handle.Dispose()
			if err != nil {
				return false, err
			}
			return !visible, nil

		case opts.Visible:
			if handle == nil {
				return false, nil
			}
			visible, err := handle.visible()
			if err != nil {
				handle.Dispose()
				return false, err
			}
			if !visible {
				handle.Dispose()
				return false, nil
			}
			found = handle
			return true, nil

		default:
			if handle == nil {
				return false, nil
			}
			found = handle
			return true, nil
		}
	}

	timeout := p.timeouts.normalize(opts.Timeout)
	err := pollUntil(p.ctx, probe, opts.PollInterval, timeout, loc.String())
	if err != nil {
		return nil, err
	}
	return found, nil
}

// resolve evaluates the locator once and returns a handle to the
// match, or nil when nothing matches.
func (p *Page) resolve(loc Locator) (*ElementHandle, error) {
	ro, exc, err := runtime.Evaluate(loc.expression()).Do(p.execCtx())
	if err != nil {
		return nil, err
	}
	if exc != nil {
		return nil, fmt.Errorf("resolving %s: %w", loc, exc)
	}
	if ro == nil || ro.ObjectID == "" {
		// null result: no match.
		return nil, nil
	}
	return &ElementHandle{page: p, objectID: ro.ObjectID}, nil
}
