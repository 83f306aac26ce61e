package models

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	callmediaservice "github.com/callvox/callvox-server/pkg/services/callmedia"
	"github.com/gofiber/contrib/websocket"
	"github.com/sirupsen/logrus"
)

type channelState int

const (
	ChannelOpen channelState = iota
	ChannelClosing
	ChannelClosed
)

// FrameSource yields transport frames of the streaming connection. A frame
// with endOfMessage=false is a fragment; the channel accumulates fragments
// until a terminal frame completes the logical message.
type FrameSource interface {
	ReadFrame(deadline time.Time) (payload []byte, endOfMessage bool, err error)
	Close() error
}

// StreamingChannel is the per-connection state. It is owned exclusively by
// the loop goroutine; nothing here needs locking.
type StreamingChannel struct {
	id             string
	correlationId  string
	conversationId string
	partialBuffer  strings.Builder
	handle         callmediaservice.MediaHandle
	state          channelState
	src            FrameSource
	m              *TranscriptionModel
	idleTimeout    time.Duration
	eagerMinChars  int
	logger         *logrus.Entry
}

func (c *StreamingChannel) State() channelState {
	return c.state
}

// RunLoop drives the channel until the connection closes, errors out or goes
// idle past the timeout. One receive is in flight at a time; failures while
// processing a completed message never terminate the loop.
func (c *StreamingChannel) RunLoop() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer c.release()

	for c.state == ChannelOpen || c.state == ChannelClosing {
		payload, endOfMessage, err := c.src.ReadFrame(time.Now().Add(c.idleTimeout))
		if err != nil {
			c.classifyExit(err)
			return
		}

		text := string(payload)
		if !endOfMessage {
			c.partialBuffer.WriteString(text)
			continue
		}

		msg := c.partialBuffer.String() + text
		c.partialBuffer.Reset()

		if perr := c.processMessage(ctx, msg); perr != nil {
			c.logger.WithError(perr).Warnln("dropped one streaming message")
		}
	}
}

func (c *StreamingChannel) processMessage(ctx context.Context, raw string) error {
	ev, err := ParseLogicalMessage(raw)
	if err != nil {
		return err
	}
	c.dispatch(ctx, ev)
	return nil
}

// classifyExit maps a receive failure onto the closing transition.
func (c *StreamingChannel) classifyExit(err error) {
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.state = ChannelClosing
		c.logger.Infoln("close frame received, draining channel")
	case isTimeoutError(err):
		c.logger.Warnf("no frame within %s, closing idle channel", c.idleTimeout)
	default:
		c.logger.WithError(err).Warnln("transport failure, closing channel")
	}
}

func isTimeoutError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// release runs on every exit path, including panics in message handling.
func (c *StreamingChannel) release() {
	if r := recover(); r != nil {
		c.logger.Errorln("unexpected panic in channel loop:", r)
	}

	graceful := c.state == ChannelClosing
	c.state = ChannelClosed
	c.handle = nil
	c.partialBuffer.Reset()
	_ = c.src.Close()
	c.m.app.RemoveOpenChannel(c.id)

	c.logger.WithField("graceful", graceful).Infoln("transcription channel closed")
}

// wsFrameSource adapts a websocket connection to frame-level reads. Each call
// pulls at most bufSize bytes of the current message, so a fragmented or
// oversized message surfaces as several frames with the last one terminal.
type wsFrameSource struct {
	conn    *websocket.Conn
	r       io.Reader
	bufSize int
}

func NewWebsocketFrameSource(conn *websocket.Conn, bufSize int) FrameSource {
	return &wsFrameSource{conn: conn, bufSize: bufSize}
}

func (s *wsFrameSource) ReadFrame(deadline time.Time) ([]byte, bool, error) {
	// every read restarts the idle window, continuation frames included
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return nil, false, err
	}
	if s.r == nil {
		_, r, err := s.conn.NextReader()
		if err != nil {
			return nil, false, err
		}
		s.r = r
	}

	// receive buffer is scoped to this single read
	buf := make([]byte, s.bufSize)
	n, err := s.r.Read(buf)
	switch {
	case errors.Is(err, io.EOF):
		s.r = nil
		return buf[:n], true, nil
	case err != nil:
		s.r = nil
		return nil, false, err
	}
	return buf[:n], false, nil
}

func (s *wsFrameSource) Close() error {
	s.r = nil
	return s.conn.Close()
}
