package common

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"

	"github.com/marionet/marionet/log"
)

const wsWriteBufferSize = 1 << 20

// Ensure Connection implements the EventEmitter and Executor interfaces.
var _ EventEmitter = &Connection{}
var _ cdp.Executor = &Connection{}

/*
Connection is the session to a single browser target: it owns the
WebSocket, correlates command responses to callers by message ID, and
fans unsolicited CDP events out to registered handlers.

	┌───────────────────────────────────────────────┐
	│                Browser Target                 │
	└───────────────────────────────────────────────┘
	                  │         ▲
	                  ▼         │
	┌───────────────────────────────────────────────┐
	│             WebSocket Connection              │
	└───────────────────────────────────────────────┘
	      │ recvLoop                  ▲ sendLoop
	      ▼                           │
	┌──────────────────┐    ┌──────────────────────┐
	│ id → pending map │    │  Execute / no-reply  │
	│ method → emit    │    │  writers via sendCh  │
	└──────────────────┘    └──────────────────────┘

Frames carrying an id resolve exactly one pending slot; the slot is
removed before delivery so a stray duplicate is dropped, never
double-delivered. Frames carrying a method and no id are delivered
synchronously to every handler of that event, in registration order.
*/
type Connection struct {
	BaseEventEmitter

	ctx    context.Context
	cancel context.CancelCauseFunc
	wsURL  string
	logger *log.Logger
	conn   *websocket.Conn
	sendCh chan *cdproto.Message
	done   chan struct{}

	shutdownOnce sync.Once
	msgID        int64

	pendingMu sync.Mutex
	pending   map[int64]chan *cdproto.Message
	// pendingClosed marks teardown; set under pendingMu so no new slot
	// can slip in after the sweep that fails the outstanding ones.
	pendingClosed bool

	// Reuse the easyjson structs to avoid allocs per Read/Write.
	decoder jlexer.Lexer
	encoder jwriter.Writer
}

// NewConnection dials the target's WebSocket endpoint and starts the
// send and receive loops. The dial blocking until the handshake
// completes is the open signal: no command can be written to a socket
// that is not yet confirmed open.
func NewConnection(ctx context.Context, wsURL string, logger *log.Logger) (*Connection, error) {
	var header http.Header
	wsd := websocket.Dialer{
		HandshakeTimeout: time.Second * 60,
		Proxy:            http.ProxyFromEnvironment,
		WriteBufferSize:  wsWriteBufferSize,
	}

	conn, _, err := wsd.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, err
	}

	connCtx, connCancel := context.WithCancelCause(ctx)
	c := Connection{
		BaseEventEmitter: NewBaseEventEmitter(),
		ctx:              connCtx,
		cancel:           connCancel,
		wsURL:            wsURL,
		logger:           logger,
		conn:             conn,
		sendCh:           make(chan *cdproto.Message, 32), // Avoid blocking in Execute
		done:             make(chan struct{}),
		pending:          make(map[int64]chan *cdproto.Message),
	}

	go c.recvLoop()
	go c.sendLoop()

	return &c, nil
}

// Context returns the connection's context. It is canceled with
// ErrConnectionClosed as its cause when the connection is torn down.
func (c *Connection) Context() context.Context { return c.ctx }

// Close tears the connection down without waiting for the remote end:
// every still-pending call fails with ErrConnectionClosed and all
// event handlers are removed.
func (c *Connection) Close() {
	_ = c.closeConnection(websocket.CloseGoingAway)
}

// closeConnection terminates the WebSocket connection. The close
// control frame is best effort; teardown never blocks on the peer.
func (c *Connection) closeConnection(code int) error {
	var err error

	c.shutdownOnce.Do(func() {
		c.logger.Debugf("Connection:closeConnection", "wsURL:%q code:%d", c.wsURL, code)

		err = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, ""),
			time.Now().Add(time.Second),
		)

		close(c.done)
		_ = c.conn.Close()

		c.cancel(ErrConnectionClosed)
		c.failPending()

		c.emit(EventConnectionClose, nil)
		c.removeAllHandlers()
	})

	return err
}

// failPending resolves every outstanding call with ErrConnectionClosed
// (delivered as a closed result channel) and refuses new ones.
func (c *Connection) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.pendingClosed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Connection) addPending(id int64, ch chan *cdproto.Message) error {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.pendingClosed {
		return ErrConnectionClosed
	}
	c.pending[id] = ch
	return nil
}

func (c *Connection) deletePending(id int64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// takePending removes and returns the slot for id, claiming the sole
// right to resolve it.
func (c *Connection) takePending(id int64) (chan *cdproto.Message, bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return ch, ok
}

func (c *Connection) handleIOError(err error) {
	select {
	case <-c.done:
		// Teardown in progress; the read/write error is a consequence.
		return
	default:
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Errorf("cdp", "communicating with browser: %v", err)
	}
	code := websocket.CloseGoingAway
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		code = closeErr.Code
	}
	_ = c.closeConnection(code)
}

func (c *Connection) recvLoop() {
	for {
		_, buf, err := c.conn.ReadMessage()
		if err != nil {
			c.handleIOError(err)
			return
		}

		c.logger.Debugf("cdp:recv", "<- %s", buf)

		var msg cdproto.Message
		c.decoder = jlexer.Lexer{Data: buf}
		msg.UnmarshalEasyJSON(&c.decoder)
		if err := c.decoder.Error(); err != nil {
			// One malformed frame must not take the dispatch loop or
			// any unrelated pending call down with it.
			c.logger.Errorf("cdp", "dropping malformed incoming message: %v", err)
			continue
		}

		switch {
		case msg.ID != 0:
			ch, ok := c.takePending(msg.ID)
			if !ok {
				// Stray or duplicate response; its call timed out or
				// the id was already delivered.
				c.logger.Debugf("cdp", "dropping response with no pending call: id:%d", msg.ID)
				continue
			}
			ch <- &msg

		case msg.Method != "":
			ev, err := cdproto.UnmarshalMessage(&msg)
			if err != nil {
				var uerr cdp.ErrUnknownCommandOrEvent
				if errors.As(err, &uerr) {
					// Most likely an event from a browser version this
					// cdproto doesn't know. Emit the raw message.
					c.emit(string(msg.Method), &msg)
					continue
				}
				c.logger.Errorf("cdp", "%s", err)
				continue
			}
			c.emit(string(msg.Method), ev)

		default:
			c.logger.Errorf("cdp", "ignoring malformed incoming message (missing id or method): %#v", msg)
		}
	}
}

func (c *Connection) sendLoop() {
	for {
		select {
		case msg := <-c.sendCh:
			c.encoder = jwriter.Writer{}
			msg.MarshalEasyJSON(&c.encoder)
			if err := c.encoder.Error; err != nil {
				c.logger.Errorf("cdp", "encoding message: %v", err)
				continue
			}

			buf, _ := c.encoder.BuildBytes()
			c.logger.Debugf("cdp:send", "-> %s", buf)
			writer, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				c.handleIOError(err)
				return
			}
			if _, err := writer.Write(buf); err != nil {
				c.handleIOError(err)
				return
			}
			if err := writer.Close(); err != nil {
				c.handleIOError(err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// send writes msg to the socket and, when recvCh is given, blocks
// until the correlated response arrives, the caller's context is done,
// or the connection is torn down.
func (c *Connection) send(ctx context.Context, msg *cdproto.Message, recvCh chan *cdproto.Message, res easyjson.Unmarshaler) error {
	select {
	case c.sendCh <- msg:
	case <-ctx.Done():
		c.deletePending(msg.ID)
		return ctx.Err()
	case <-c.done:
		return ErrConnectionClosed
	}

	if recvCh == nil {
		return nil
	}

	select {
	case resp := <-recvCh:
		switch {
		case resp == nil:
			// Channel closed by teardown.
			return ErrConnectionClosed
		case resp.Error != nil:
			return resp.Error
		case res != nil:
			return easyjson.Unmarshal(resp.Result, res)
		}
		return nil
	case <-ctx.Done():
		// CDP has no cancel primitive; the call is detached and its
		// late response, if any, dropped by the dispatch loop.
		c.deletePending(msg.ID)
		return ctx.Err()
	case <-c.done:
		return ErrConnectionClosed
	}
}

// Execute implements cdp.Executor with a synchronous send and receive.
func (c *Connection) Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	id := atomic.AddInt64(&c.msgID, 1)

	buf, err := marshalParams(params)
	if err != nil {
		return err
	}

	ch := make(chan *cdproto.Message, 1)
	if err := c.addPending(id, ch); err != nil {
		return err
	}

	msg := &cdproto.Message{
		ID:     id,
		Method: cdproto.MethodType(method),
		Params: buf,
	}
	return c.send(ctx, msg, ch, res)
}

// ExecuteWithoutExpectationOnReply sends a command and does not wait
// for its response. Used where blocking on a reply would stall the
// dispatch loop, such as acknowledging screencast frames from an event
// handler.
func (c *Connection) ExecuteWithoutExpectationOnReply(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	id := atomic.AddInt64(&c.msgID, 1)

	buf, err := marshalParams(params)
	if err != nil {
		return err
	}

	msg := &cdproto.Message{
		ID:     id,
		Method: cdproto.MethodType(method),
		Params: buf,
	}
	return c.send(ctx, msg, nil, res)
}

func marshalParams(params easyjson.Marshaler) (easyjson.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	buf, err := easyjson.Marshal(params)
	if err != nil {
		return nil, err
	}
	return buf, nil
}
