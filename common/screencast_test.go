package common

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/mailru/easyjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marionet/marionet/tests/ws"
)

// screencastTarget pushes one frame after start and one more after
// each ack, up to total frames. Frames only flow when acked, which is
// exactly the flow control the pipeline must drive.
func screencastTarget(total int) func(msg *cdproto.Message, writeCh chan cdproto.Message) bool {
	var sent int
	frame := func() cdproto.Message {
		sent++
		data := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("frame-%d", sent)))
		params := fmt.Sprintf(`{
			"data": %q,
			"metadata": {
				"offsetTop": 0, "pageScaleFactor": 1,
				"deviceWidth": 800, "deviceHeight": 600,
				"scrollOffsetX": 0, "scrollOffsetY": 0,
				"timestamp": %d
			},
			"sessionId": %d
		}`, data, sent, sent)
		return cdproto.Message{
			Method: cdproto.EventPageScreencastFrame,
			Params: easyjson.RawMessage([]byte(params)),
		}
	}
	return func(msg *cdproto.Message, writeCh chan cdproto.Message) bool {
		switch msg.Method {
		case cdproto.CommandPageStartScreencast:
			writeCh <- cdproto.Message{ID: msg.ID, Result: easyjson.RawMessage([]byte("{}"))}
			if sent < total {
				writeCh <- frame()
			}
		case cdproto.CommandPageScreencastFrameAck:
			// No reply expected for the ack itself.
			if sent < total {
				writeCh <- frame()
			}
		case cdproto.CommandPageStopScreencast:
			writeCh <- cdproto.Message{ID: msg.ID, Result: easyjson.RawMessage([]byte("{}"))}
		default:
			return false
		}
		return true
	}
}

func TestScreencast(t *testing.T) {
	cmds := make([]cdproto.MethodType, 0)
	server := ws.NewServer(t, ws.WithCDPHandler("/cdp", targetHandler(screencastTarget(3)), &cmds))
	p := newTestPage(t, server)
	sc := p.Screencast()

	require.False(t, sc.Recording())

	require.NoError(t, sc.Start(ScreencastOptions{EveryNthFrame: 1}))
	require.True(t, sc.Recording())

	// All three frames arrive only if every one of them is acked.
	require.Eventually(t, func() bool {
		return sc.FrameCount() == 3
	}, 2*time.Second, 5*time.Millisecond)

	frames, err := sc.Stop()
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.False(t, sc.Recording())

	for i, f := range frames {
		assert.Equal(t, fmt.Sprintf("frame-%d", i+1), string(f.Data))
		assert.False(t, f.Timestamp.IsZero())
		require.NotNil(t, f.Metadata)
		assert.Equal(t, int64(800), int64(f.Metadata.DeviceWidth))
	}

	// The count of the finished capture stays readable.
	assert.Equal(t, 3, sc.FrameCount())

	acks := 0
	for _, m := range cmds {
		if m == cdproto.MethodType(cdproto.CommandPageScreencastFrameAck) {
			acks++
		}
	}
	assert.Equal(t, 3, acks)
}

func TestScreencastStopErrorKeepsFrames(t *testing.T) {
	// Same stream as screencastTarget, but the stop command fails.
	inner := screencastTarget(2)
	target := func(msg *cdproto.Message, writeCh chan cdproto.Message) bool {
		if msg.Method == cdproto.CommandPageStopScreencast {
			writeCh <- cdproto.Message{
				ID:    msg.ID,
				Error: &cdproto.Error{Code: -32000, Message: "target crashed"},
			}
			return true
		}
		return inner(msg, writeCh)
	}
	server := ws.NewServer(t, ws.WithCDPHandler("/cdp", targetHandler(target), nil))
	p := newTestPage(t, server)
	sc := p.Screencast()

	require.NoError(t, sc.Start(ScreencastOptions{}))
	require.Eventually(t, func() bool {
		return sc.FrameCount() == 2
	}, 2*time.Second, 5*time.Millisecond)

	// The capture is already torn down when the stop command fails,
	// so the buffered frames still hand over to the caller.
	frames, err := sc.Stop()
	require.Error(t, err)
	assert.ErrorContains(t, err, "target crashed")
	require.Len(t, frames, 2)
	assert.Equal(t, "frame-1", string(frames[0].Data))
	assert.False(t, sc.Recording())
}

func TestScreencastStateErrors(t *testing.T) {
	server := ws.NewServer(t, ws.WithCDPHandler("/cdp", targetHandler(screencastTarget(0)), nil))
	p := newTestPage(t, server)
	sc := p.Screencast()

	t.Run("stop before start", func(t *testing.T) {
		_, err := sc.Stop()
		require.ErrorIs(t, err, ErrScreencastStopped)
	})

	t.Run("double start", func(t *testing.T) {
		require.NoError(t, sc.Start(ScreencastOptions{}))
		err := sc.Start(ScreencastOptions{})
		require.ErrorIs(t, err, ErrScreencastRunning)

		_, err = sc.Stop()
		require.NoError(t, err)
	})

	t.Run("restart begins an empty buffer", func(t *testing.T) {
		require.NoError(t, sc.Start(ScreencastOptions{}))
		assert.Zero(t, sc.FrameCount())
		_, err := sc.Stop()
		require.NoError(t, err)
	})
}
