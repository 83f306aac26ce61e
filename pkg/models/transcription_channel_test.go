package models

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/callvox/callvox-server/pkg/config"
	callmediaservice "github.com/callvox/callvox-server/pkg/services/callmedia"
	registryservice "github.com/callvox/callvox-server/pkg/services/registry"
	fwebsocket "github.com/fasthttp/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedFrame struct {
	payload      string
	endOfMessage bool
	err          error
}

// scriptedSource feeds a fixed frame sequence, then a close frame.
type scriptedSource struct {
	frames  []scriptedFrame
	i       int
	exitErr error
	closed  bool
}

func (s *scriptedSource) ReadFrame(_ time.Time) ([]byte, bool, error) {
	if s.i >= len(s.frames) {
		if s.exitErr != nil {
			return nil, false, s.exitErr
		}
		return nil, false, &fwebsocket.CloseError{Code: fwebsocket.CloseNormalClosure}
	}
	f := s.frames[s.i]
	s.i++
	return []byte(f.payload), f.endOfMessage, f.err
}

func (s *scriptedSource) Close() error {
	s.closed = true
	return nil
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type stubRegistry struct {
	mu      sync.Mutex
	record  *registryservice.CallRecord
	lookups int
}

func (s *stubRegistry) Lookup(_ context.Context, _ string) (*registryservice.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	return s.record, nil
}

func (s *stubRegistry) set(r *registryservice.CallRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = r
}

type forwardedMsg struct {
	conversationId string
	text           string
}

type stubForwarder struct {
	mu   sync.Mutex
	sent []forwardedMsg
}

func (s *stubForwarder) SendMessage(_ context.Context, conversationId, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, forwardedMsg{conversationId, text})
	return nil
}

func (s *stubForwarder) messages() []forwardedMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]forwardedMsg, len(s.sent))
	copy(out, s.sent)
	return out
}

type stubHandle struct {
	id      string
	cancels int
}

func (h *stubHandle) CallConnectionId() string { return h.id }

func (h *stubHandle) CancelAllMediaOperations(_ context.Context) error {
	h.cancels++
	return nil
}

type stubResolver struct {
	handles map[string]*stubHandle
}

func (s *stubResolver) ResolveHandle(callConnectionId string) callmediaservice.MediaHandle {
	if h, ok := s.handles[callConnectionId]; ok {
		return h
	}
	return nil
}

func newTestModel(t *testing.T, reg registryservice.CallRegistry, media callmediaservice.MediaResolver, fwd *stubForwarder) *TranscriptionModel {
	t.Helper()

	appCnf, err := config.New(&config.AppConfig{})
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	return NewTranscriptionModel(appCnf, reg, media, fwd, nil, logger)
}

func TestChannelReassemblesFragmentedMessage(t *testing.T) {
	reg := &stubRegistry{record: &registryservice.CallRecord{
		CorrelationId:  "abc",
		ConversationId: "conv-1",
	}}
	fwd := &stubForwarder{}
	m := newTestModel(t, reg, &stubResolver{}, fwd)

	src := &scriptedSource{frames: []scriptedFrame{
		{payload: `{"kind":"TranscriptionData","text":"Hel`, endOfMessage: false},
		{payload: `lo world","resultState":"Final"}`, endOfMessage: true},
	}}
	ch := m.NewChannel("abc", "", src)
	ch.RunLoop()

	msgs := fwd.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "conv-1", msgs[0].conversationId)
	assert.Equal(t, "Hello world", msgs[0].text)
	assert.Equal(t, ChannelClosed, ch.State())
	assert.True(t, src.closed)
}

func TestChannelMalformedMessageDoesNotTerminateLoop(t *testing.T) {
	reg := &stubRegistry{record: &registryservice.CallRecord{ConversationId: "conv-1"}}
	fwd := &stubForwarder{}
	m := newTestModel(t, reg, &stubResolver{}, fwd)

	src := &scriptedSource{frames: []scriptedFrame{
		{payload: `totally broken payload`, endOfMessage: true},
		{payload: `{"kind":"TranscriptionData","text":"still here","resultState":"Final"}`, endOfMessage: true},
	}}
	ch := m.NewChannel("abc", "", src)
	ch.RunLoop()

	msgs := fwd.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "still here", msgs[0].text)
}

func TestChannelFastPathTriggersBargeIn(t *testing.T) {
	handle := &stubHandle{id: "cc-1"}
	media := &stubResolver{handles: map[string]*stubHandle{"cc-1": handle}}
	fwd := &stubForwarder{}
	m := newTestModel(t, &stubRegistry{}, media, fwd)

	// not a structurally valid message, the marker alone must cancel playback
	src := &scriptedSource{frames: []scriptedFrame{
		{payload: `>>> Intermediate <<<`, endOfMessage: true},
	}}
	ch := m.NewChannel("abc", "cc-1", src)
	ch.RunLoop()

	assert.Equal(t, 1, handle.cancels)
	assert.Empty(t, fwd.messages())
}

func TestChannelEagerForwardAndDuplicateFinal(t *testing.T) {
	handle := &stubHandle{id: "cc-1"}
	media := &stubResolver{handles: map[string]*stubHandle{"cc-1": handle}}
	reg := &stubRegistry{record: &registryservice.CallRecord{ConversationId: "conv-1"}}
	fwd := &stubForwarder{}
	m := newTestModel(t, reg, media, fwd)

	src := &scriptedSource{frames: []scriptedFrame{
		{payload: `{"kind":"TranscriptionData","text":"what is my account balance","resultState":"Intermediate"}`, endOfMessage: true},
		{payload: `{"kind":"TranscriptionData","text":"what is my account balance please","resultState":"Final"}`, endOfMessage: true},
	}}
	ch := m.NewChannel("abc", "cc-1", src)
	ch.RunLoop()

	// the overlapping partial and final are both delivered, no dedup
	msgs := fwd.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "what is my account balance", msgs[0].text)
	assert.Equal(t, "what is my account balance please", msgs[1].text)
	assert.Equal(t, 1, handle.cancels)
}

func TestChannelShortPartialNotForwarded(t *testing.T) {
	reg := &stubRegistry{record: &registryservice.CallRecord{ConversationId: "conv-1"}}
	fwd := &stubForwarder{}
	m := newTestModel(t, reg, &stubResolver{}, fwd)

	src := &scriptedSource{frames: []scriptedFrame{
		{payload: `{"kind":"TranscriptionData","text":"hi","resultState":"Intermediate"}`, endOfMessage: true},
	}}
	ch := m.NewChannel("abc", "", src)
	ch.RunLoop()

	assert.Empty(t, fwd.messages())
}

func TestChannelMetadataRebindsHandle(t *testing.T) {
	first := &stubHandle{id: "cc-1"}
	second := &stubHandle{id: "cc-2"}
	media := &stubResolver{handles: map[string]*stubHandle{"cc-1": first, "cc-2": second}}
	fwd := &stubForwarder{}
	m := newTestModel(t, &stubRegistry{}, media, fwd)

	src := &scriptedSource{frames: []scriptedFrame{
		{payload: `{"kind":"TranscriptionMetadata","callConnectionId":"cc-2"}`, endOfMessage: true},
		{payload: `no json but Intermediate marker`, endOfMessage: true},
	}}
	ch := m.NewChannel("abc", "cc-1", src)
	ch.RunLoop()

	assert.Equal(t, 0, first.cancels)
	assert.Equal(t, 1, second.cancels)
}

func TestChannelFinalDroppedWithoutCallRecord(t *testing.T) {
	reg := &stubRegistry{} // registry never learns about this call
	fwd := &stubForwarder{}
	m := newTestModel(t, reg, &stubResolver{}, fwd)

	src := &scriptedSource{frames: []scriptedFrame{
		{payload: `{"kind":"TranscriptionData","text":"hello","resultState":"Final"}`, endOfMessage: true},
	}}
	ch := m.NewChannel("abc", "", src)
	ch.RunLoop()

	assert.Empty(t, fwd.messages())
	// accept-time miss plus the lazy re-lookup
	assert.Equal(t, 2, reg.lookups)
}

func TestChannelLazyRegistryResolution(t *testing.T) {
	reg := &stubRegistry{}
	fwd := &stubForwarder{}
	m := newTestModel(t, reg, &stubResolver{}, fwd)

	src := &scriptedSource{frames: []scriptedFrame{
		{payload: `{"kind":"TranscriptionData","text":"hello","resultState":"Final"}`, endOfMessage: true},
	}}
	// the control plane populates the record only after the channel opened
	ch := m.NewChannel("abc", "", src)
	reg.set(&registryservice.CallRecord{CorrelationId: "abc", ConversationId: "conv-9"})
	ch.RunLoop()

	msgs := fwd.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "conv-9", msgs[0].conversationId)
}

func TestChannelIdleTimeoutClosesChannel(t *testing.T) {
	fwd := &stubForwarder{}
	m := newTestModel(t, &stubRegistry{}, &stubResolver{}, fwd)

	src := &scriptedSource{exitErr: timeoutErr{}}
	ch := m.NewChannel("abc", "", src)

	require.Equal(t, 1, m.app.CountOpenChannels())
	ch.RunLoop()

	assert.Equal(t, ChannelClosed, ch.State())
	assert.Equal(t, 0, m.app.CountOpenChannels())
	assert.True(t, src.closed)
}

func TestChannelGracefulClose(t *testing.T) {
	fwd := &stubForwarder{}
	m := newTestModel(t, &stubRegistry{}, &stubResolver{}, fwd)

	src := &scriptedSource{} // immediate close frame
	ch := m.NewChannel("abc", "", src)
	ch.RunLoop()

	assert.Equal(t, ChannelClosed, ch.State())
	assert.True(t, src.closed)
}
