package common

import (
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/page"
)

// ScreencastOptions configures a capture stream. The zero value
// captures every frame as JPEG at DefaultScreencastQuality with no
// size cap.
type ScreencastOptions struct {
	Format        page.ScreencastFormat
	Quality       int64
	MaxWidth      int64
	MaxHeight     int64
	EveryNthFrame int64
}

// Frame is one captured screencast frame.
type Frame struct {
	Data      []byte
	Timestamp time.Time
	Metadata  *page.ScreencastFrameMetadata
}

// Screencast buffers the frame stream pushed by the browser while
// recording.
//
// Every incoming frame is acknowledged as soon as it is buffered: the
// browser pauses the stream until each frame is acked, so the ack is
// the flow control. The ack is sent on the connection's no-reply path
// because the frame handler runs on the dispatch loop, which cannot
// wait for its own next read.
type Screencast struct {
	page *Page

	mu        sync.Mutex
	recording bool
	frames    []Frame
	off       func()
}

func newScreencast(p *Page) *Screencast {
	return &Screencast{page: p}
}

// Start begins capturing. It fails with ErrScreencastRunning when a
// capture is already in progress. Any frames from a previous capture
// are discarded.
//
// The mutex is never held across a blocking CDP call: the frame
// handler runs on the connection's dispatch loop and takes the same
// mutex, so holding it while waiting for a response from that loop
// would deadlock.
func (s *Screencast) Start(opts ScreencastOptions) error {
	s.mu.Lock()
	if s.recording {
		s.mu.Unlock()
		return ErrScreencastRunning
	}
	// Subscribe and flip state before the start command so the first
	// pushed frame cannot arrive without a handler to ack and buffer
	// it.
	s.frames = nil
	s.recording = true
	s.off = s.page.conn.on(cdproto.EventPageScreencastFrame, s.onFrame)
	s.mu.Unlock()

	s.page.logger.Debugf("Screencast:Start", "fid:%v format:%s", s.page.frameID, opts.Format)

	format := opts.Format
	if format == "" {
		format = page.ScreencastFormatJpeg
	}
	quality := opts.Quality
	if quality <= 0 {
		quality = DefaultScreencastQuality
	}
	cmd := page.StartScreencast().WithFormat(format).WithQuality(quality)
	if opts.MaxWidth > 0 {
		cmd = cmd.WithMaxWidth(opts.MaxWidth)
	}
	if opts.MaxHeight > 0 {
		cmd = cmd.WithMaxHeight(opts.MaxHeight)
	}
	if opts.EveryNthFrame > 0 {
		cmd = cmd.WithEveryNthFrame(opts.EveryNthFrame)
	}
	if err := cmd.Do(s.page.execCtx()); err != nil {
		s.mu.Lock()
		s.off()
		s.off = nil
		s.recording = false
		s.mu.Unlock()
		return fmt.Errorf("starting screencast: %w", err)
	}
	return nil
}

// Stop ends the capture and returns the buffered frames. It fails
// with ErrScreencastStopped when no capture is in progress. Ownership
// of the returned slice transfers to the caller; the next Start begins
// an empty buffer. The frames are returned even when the stop command
// fails, since the capture is already torn down by then.
func (s *Screencast) Stop() ([]Frame, error) {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return nil, ErrScreencastStopped
	}
	s.off()
	s.off = nil
	s.recording = false
	frames := s.frames
	s.mu.Unlock()

	s.page.logger.Debugf("Screencast:Stop", "fid:%v frames:%d", s.page.frameID, len(frames))

	if err := page.StopScreencast().Do(s.page.execCtx()); err != nil {
		return frames, fmt.Errorf("stopping screencast: %w", err)
	}
	return frames, nil
}

// Recording reports whether a capture is in progress.
func (s *Screencast) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// FrameCount returns the number of frames buffered so far. It remains
// readable after Stop.
func (s *Screencast) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// onFrame runs on the connection's dispatch loop.
func (s *Screencast) onFrame(data any) {
	ev, ok := data.(*page.EventScreencastFrame)
	if !ok {
		return
	}

	// Ack first, unconditionally. A frame that fails to decode must
	// still be acked or the producer stalls for good.
	ackErr := s.page.conn.ExecuteWithoutExpectationOnReply(
		s.page.ctx,
		page.CommandScreencastFrameAck,
		&page.ScreencastFrameAckParams{SessionID: ev.SessionID},
		nil,
	)
	if ackErr != nil {
		s.page.logger.Errorf("Screencast:onFrame", "acking frame: %v", ackErr)
	}

	buf, err := base64.StdEncoding.DecodeString(ev.Data)
	if err != nil {
		s.page.logger.Errorf("Screencast:onFrame", "decoding frame: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording {
		// Late frame after Stop already unsubscribed racing this
		// delivery.
		return
	}
	s.frames = append(s.frames, Frame{
		Data:      buf,
		Timestamp: time.Now(),
		Metadata:  ev.Metadata,
	})
}
