package common

import (
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/tidwall/gjson"
)

// visibleFn computes visibility for the element it is called on:
// attached to the document, not display:none or visibility:hidden,
// non-zero opacity, and a non-zero rendered box.
const visibleFn = `function() {
	if (!this.isConnected) return false;
	const style = window.getComputedStyle(this);
	if (style.display === 'none' || style.visibility === 'hidden') return false;
	if (parseFloat(style.opacity) === 0) return false;
	const rect = this.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
}`

// ElementHandle is a reference to a remote DOM element, valid until
// disposed or the element's execution context is destroyed.
type ElementHandle struct {
	page     *Page
	objectID runtime.RemoteObjectID
}

// ObjectID returns the remote object ID backing the handle.
func (h *ElementHandle) ObjectID() runtime.RemoteObjectID { return h.objectID }

// visible reports whether the element is currently rendered visibly.
func (h *ElementHandle) visible() (bool, error) {
	ro, exc, err := runtime.CallFunctionOn(visibleFn).
		WithObjectID(h.objectID).
		WithReturnByValue(true).
		Do(h.page.execCtx())
	if err != nil {
		return false, fmt.Errorf("checking visibility: %w", err)
	}
	if exc != nil {
		return false, fmt.Errorf("checking visibility: %w", exc)
	}
	return gjson.ParseBytes(ro.Value).Bool(), nil
}

// TextContent returns the element's text content.
func (h *ElementHandle) TextContent() (string, error) {
	ro, exc, err := runtime.CallFunctionOn(`function() { return this.textContent; }`).
		WithObjectID(h.objectID).
		WithReturnByValue(true).
		Do(h.page.execCtx())
	if err != nil {
		return "", fmt.Errorf("getting text content: %w", err)
	}
	if exc != nil {
		return "", fmt.Errorf("getting text content: %w", exc)
	}
	return gjson.ParseBytes(ro.Value).String(), nil
}

// Focus gives the element keyboard focus, making it the target of
// subsequent Keyboard input.
func (h *ElementHandle) Focus() error {
	_, exc, err := runtime.CallFunctionOn(`function() { this.focus(); }`).
		WithObjectID(h.objectID).
		Do(h.page.execCtx())
	if err != nil {
		return fmt.Errorf("focusing element: %w", err)
	}
	if exc != nil {
		return fmt.Errorf("focusing element: %w", exc)
	}
	return nil
}

// Dispose releases the remote object. The handle must not be used
// afterwards. Errors are ignored; the browser reclaims the object when
// the context goes away regardless.
func (h *ElementHandle) Dispose() {
	_ = runtime.ReleaseObject(h.objectID).Do(h.page.execCtx())
}
