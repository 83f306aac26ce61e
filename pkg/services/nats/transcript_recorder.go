package natsservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/callvox/callvox-server/pkg/config"
	"github.com/gammazero/workerpool"
	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
)

const (
	Prefix = "callvox-"

	transcriptBucketFormat = Prefix + "transcript-%s"
	recorderWorkers        = 2
)

// TranscriptChunk is one forwarded utterance as stored for live monitoring.
type TranscriptChunk struct {
	ConversationId string `json:"conversation_id"`
	Text           string `json:"text"`
	IsPartial      bool   `json:"is_partial"`
}

// TranscriptRecorder fans forwarded utterances out into a TTL'd per-call
// JetStream KV bucket. Strictly best effort: writes happen off the receive
// loop and failures are only logged. It offers no replay guarantee.
type TranscriptRecorder struct {
	ctx    context.Context
	app    *config.AppConfig
	js     jetstream.JetStream
	wp     *workerpool.WorkerPool
	logger *logrus.Entry
}

func NewTranscriptRecorder(app *config.AppConfig, logger *logrus.Logger) *TranscriptRecorder {
	if app == nil {
		app = config.GetConfig()
	}
	if app.JetStream == nil {
		return nil
	}

	return &TranscriptRecorder{
		ctx:    context.Background(),
		app:    app,
		js:     app.JetStream,
		wp:     workerpool.New(recorderWorkers),
		logger: logger.WithField("service", "transcript_recorder"),
	}
}

// Record submits the chunk for asynchronous storage. Safe to call on a nil
// recorder, which makes the fan-out a no-op when NATS is not configured.
func (s *TranscriptRecorder) Record(correlationId, conversationId, text string, isPartial bool) {
	if s == nil {
		return
	}
	s.wp.Submit(func() {
		if err := s.addChunk(correlationId, conversationId, text, isPartial); err != nil {
			s.logger.WithError(err).WithField("correlationId", correlationId).
				Warnln("failed to store transcript chunk")
		}
	})
}

func (s *TranscriptRecorder) addChunk(correlationId, conversationId, text string, isPartial bool) error {
	kv, err := s.js.CreateOrUpdateKeyValue(s.ctx, jetstream.KeyValueConfig{
		Replicas: s.app.NatsInfo.NumReplicas,
		Bucket:   fmt.Sprintf(transcriptBucketFormat, correlationId),
		TTL:      *s.app.NatsInfo.TranscriptTTL,
	})
	if err != nil {
		return err
	}

	chunk := TranscriptChunk{
		ConversationId: conversationId,
		Text:           text,
		IsPartial:      isPartial,
	}
	jsonData, err := json.Marshal(chunk)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%d", time.Now().UnixNano())
	_, err = kv.Put(s.ctx, key, jsonData)
	return err
}

// GetTranscriptChunks retrieves all stored chunks for a call, keyed by the
// nanosecond timestamp they arrived at.
func (s *TranscriptRecorder) GetTranscriptChunks(correlationId string) (map[string][]byte, error) {
	if s == nil {
		return nil, nil
	}
	kv, err := s.js.KeyValue(s.ctx, fmt.Sprintf(transcriptBucketFormat, correlationId))
	if err != nil {
		if errors.Is(err, jetstream.ErrBucketNotFound) {
			return nil, nil
		}
		return nil, err
	}

	keys, err := kv.ListKeys(s.ctx)
	if err != nil {
		return nil, err
	}

	chunks := make(map[string][]byte)
	for k := range keys.Keys() {
		if entry, err := kv.Get(s.ctx, k); err == nil && entry != nil {
			chunks[k] = entry.Value()
		}
	}
	return chunks, nil
}

// Stop drains pending writes. Called on shutdown.
func (s *TranscriptRecorder) Stop() {
	if s == nil {
		return
	}
	s.wp.StopWait()
}
