package common

import (
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/mailru/easyjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marionet/marionet/tests/ws"
)

func TestMatchURL(t *testing.T) {
	t.Parallel()

	t.Run("substring", func(t *testing.T) {
		t.Parallel()
		m, err := MatchURL("/api/")
		require.NoError(t, err)
		assert.True(t, m("https://test.local/api/users"))
		assert.False(t, m("https://test.local/static/app.js"))
	})

	t.Run("regexp", func(t *testing.T) {
		t.Parallel()
		m, err := MatchURL(regexp.MustCompile(`/users/\d+$`))
		require.NoError(t, err)
		assert.True(t, m("https://test.local/users/42"))
		assert.False(t, m("https://test.local/users/new"))
	})

	t.Run("func", func(t *testing.T) {
		t.Parallel()
		m, err := MatchURL(func(url string) bool { return strings.HasSuffix(url, ".png") })
		require.NoError(t, err)
		assert.True(t, m("https://test.local/logo.png"))
		assert.False(t, m("https://test.local/logo.svg"))
	})

	t.Run("unsupported type", func(t *testing.T) {
		t.Parallel()
		_, err := MatchURL(42)
		require.Error(t, err)
	})
}

// trafficHandler pushes a burst of request and response events after
// answering Network.enable.
func trafficHandler(urls []string) func(msg *cdproto.Message, writeCh chan cdproto.Message) bool {
	return func(msg *cdproto.Message, writeCh chan cdproto.Message) bool {
		if msg.Method != cdproto.CommandNetworkEnable {
			return false
		}
		writeCh <- cdproto.Message{
			ID:     msg.ID,
			Result: easyjson.RawMessage([]byte("{}")),
		}
		for i, url := range urls {
			req := fmt.Sprintf(`{
				"requestId": "req_%d",
				"loaderId": "loader_id_0123456789",
				"documentURL": "https://test.local/",
				"request": {"url": %q, "method": "GET", "headers": {"Accept": "*/*"}},
				"timestamp": 1,
				"wallTime": 1,
				"initiator": {"type": "other"}
			}`, i, url)
			writeCh <- cdproto.Message{
				Method: cdproto.EventNetworkRequestWillBeSent,
				Params: easyjson.RawMessage([]byte(req)),
			}
			resp := fmt.Sprintf(`{
				"requestId": "req_%d",
				"loaderId": "loader_id_0123456789",
				"timestamp": 2,
				"type": "Fetch",
				"response": {"url": %q, "status": 200, "statusText": "OK", "headers": {"Content-Type": "application/json"}}
			}`, i, url)
			writeCh <- cdproto.Message{
				Method: cdproto.EventNetworkResponseReceived,
				Params: easyjson.RawMessage([]byte(resp)),
			}
		}
		return true
	}
}

func TestWaitForRequest(t *testing.T) {
	urls := []string{
		"https://test.local/static/app.js",
		"https://test.local/static/app.css",
		"https://test.local/api/users",
		"https://test.local/static/logo.png",
		"https://test.local/favicon.ico",
	}
	server := ws.NewServer(t, ws.WithCDPHandler("/cdp", targetHandler(trafficHandler(urls)), nil))
	p := newTestPage(t, server)

	match, err := MatchURL("/api/")
	require.NoError(t, err)

	type result struct {
		req *NetworkRequest
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		req, err := p.WaitForRequest(match, time.Second)
		resCh <- result{req, err}
	}()

	// The handler replays the burst on every Network.enable; trigger
	// one once the waiter's subscription is in place.
	require.Eventually(t, func() bool {
		return p.Connection().handlerCount(cdproto.EventNetworkRequestWillBeSent) > 0
	}, time.Second, time.Millisecond)
	require.NoError(t, p.enableNetwork())

	select {
	case res := <-resCh:
		require.NoError(t, res.err)
		assert.Equal(t, "https://test.local/api/users", res.req.URL)
		assert.Equal(t, "GET", res.req.Method)
		assert.Equal(t, "*/*", res.req.Headers["Accept"])
	case <-time.After(2 * time.Second):
		t.Fatal("request waiter did not resolve")
	}
}

func TestWaitForResponse(t *testing.T) {
	// A burst of five where only the third matches; the waiter must
	// resolve with exactly that one.
	urls := []string{
		"https://test.local/static/app.js",
		"https://test.local/static/app.css",
		"https://test.local/api/orders",
		"https://test.local/static/logo.png",
		"https://test.local/favicon.ico",
	}
	server := ws.NewServer(t, ws.WithCDPHandler("/cdp", targetHandler(trafficHandler(urls)), nil))
	p := newTestPage(t, server)

	match, err := MatchURL(regexp.MustCompile(`/api/`))
	require.NoError(t, err)

	type result struct {
		resp *NetworkResponse
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		resp, err := p.WaitForResponse(match, time.Second)
		resCh <- result{resp, err}
	}()

	require.Eventually(t, func() bool {
		return p.Connection().handlerCount(cdproto.EventNetworkResponseReceived) > 0
	}, time.Second, time.Millisecond)
	require.NoError(t, p.enableNetwork())

	select {
	case res := <-resCh:
		require.NoError(t, res.err)
		assert.Equal(t, "https://test.local/api/orders", res.resp.URL)
		assert.Equal(t, int64(200), res.resp.Status)
		assert.Equal(t, "application/json", res.resp.Headers["Content-Type"])
	case <-time.After(2 * time.Second):
		t.Fatal("response waiter did not resolve")
	}
}

func TestWaitForRequestTimeout(t *testing.T) {
	server := ws.NewServer(t, ws.WithCDPHandler("/cdp", targetHandler(nil), nil))
	p := newTestPage(t, server)

	match, err := MatchURL("/never/")
	require.NoError(t, err)

	start := time.Now()
	_, err = p.WaitForRequest(match, 100*time.Millisecond)

	var terr *TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Zero(t, p.Connection().handlerCount(cdproto.EventNetworkRequestWillBeSent))
}
