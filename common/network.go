package common

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/network"
)

// URLMatcher decides whether a network event's URL is the one being
// waited for.
type URLMatcher func(url string) bool

// MatchURL builds a URLMatcher from pattern: a string matches by
// substring, a *regexp.Regexp by regexp match, and a func(string) bool
// (or URLMatcher) is used as-is.
func MatchURL(pattern any) (URLMatcher, error) {
	switch p := pattern.(type) {
	case string:
		return func(url string) bool { return strings.Contains(url, p) }, nil
	case *regexp.Regexp:
		return p.MatchString, nil
	case URLMatcher:
		return p, nil
	case func(string) bool:
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported URL pattern type %T", pattern)
	}
}

// NetworkRequest is the subset of a request-sent event a waiter
// resolves with.
type NetworkRequest struct {
	URL     string
	Method  string
	Headers map[string]string
}

// NetworkResponse is the subset of a response-received event a waiter
// resolves with.
type NetworkResponse struct {
	URL     string
	Status  int64
	Headers map[string]string
}

func (p *Page) enableNetwork() error {
	if err := network.Enable().Do(p.execCtx()); err != nil {
		return fmt.Errorf("enabling network domain: %w", err)
	}
	return nil
}

// WaitForRequest blocks until the page issues a request whose URL
// passes match, and resolves with that request's URL, method and
// headers.
func (p *Page) WaitForRequest(match URLMatcher, timeout time.Duration) (*NetworkRequest, error) {
	p.logger.Debugf("Page:WaitForRequest", "fid:%v", p.frameID)

	evCh, evCancel := createWaitForEventHandler(p.conn,
		[]string{cdproto.EventNetworkRequestWillBeSent},
		func(data any) bool {
			ev, ok := data.(*network.EventRequestWillBeSent)
			return ok && ev.Request != nil && match(ev.Request.URL)
		})

	data, err := waitForEvent(p.ctx, evCh, evCancel, p.timeouts.normalize(timeout), "request")
	if err != nil {
		return nil, err
	}
	ev := data.(*network.EventRequestWillBeSent)
	return &NetworkRequest{
		URL:     ev.Request.URL,
		Method:  ev.Request.Method,
		Headers: headerStrings(ev.Request.Headers),
	}, nil
}

// WaitForResponse blocks until the page receives a response whose URL
// passes match, and resolves with that response's URL, status and
// headers.
func (p *Page) WaitForResponse(match URLMatcher, timeout time.Duration) (*NetworkResponse, error) {
	p.logger.Debugf("Page:WaitForResponse", "fid:%v", p.frameID)

	evCh, evCancel := createWaitForEventHandler(p.conn,
		[]string{cdproto.EventNetworkResponseReceived},
		func(data any) bool {
			ev, ok := data.(*network.EventResponseReceived)
			return ok && ev.Response != nil && match(ev.Response.URL)
		})

	data, err := waitForEvent(p.ctx, evCh, evCancel, p.timeouts.normalize(timeout), "response")
	if err != nil {
		return nil, err
	}
	ev := data.(*network.EventResponseReceived)
	return &NetworkResponse{
		URL:     ev.Response.URL,
		Status:  ev.Response.Status,
		Headers: headerStrings(ev.Response.Headers),
	}, nil
}

// headerStrings flattens CDP's loosely typed header map. Non-string
// values (CDP allows them) are formatted.
func headerStrings(h network.Headers) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
