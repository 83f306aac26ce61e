package models

import (
	"context"
	"time"

	"github.com/callvox/callvox-server/pkg/config"
	agentservice "github.com/callvox/callvox-server/pkg/services/agent"
	callmediaservice "github.com/callvox/callvox-server/pkg/services/callmedia"
	natsservice "github.com/callvox/callvox-server/pkg/services/nats"
	registryservice "github.com/callvox/callvox-server/pkg/services/registry"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TranscriptionModel owns the collaborators every streaming channel needs.
// Channels themselves are created per connection and never shared.
type TranscriptionModel struct {
	app       *config.AppConfig
	registry  registryservice.CallRegistry
	media     callmediaservice.MediaResolver
	forwarder agentservice.Forwarder
	recorder  *natsservice.TranscriptRecorder
	logger    *logrus.Entry
}

func NewTranscriptionModel(app *config.AppConfig, registry registryservice.CallRegistry, media callmediaservice.MediaResolver, forwarder agentservice.Forwarder, recorder *natsservice.TranscriptRecorder, logger *logrus.Logger) *TranscriptionModel {
	if app == nil {
		app = config.GetConfig()
	}
	return &TranscriptionModel{
		app:       app,
		registry:  registry,
		media:     media,
		forwarder: forwarder,
		recorder:  recorder,
		logger:    logger.WithField("model", "transcription"),
	}
}

// NewChannel builds the state for one accepted connection. The correlation id
// has already been validated as non-empty by the acceptor.
func (m *TranscriptionModel) NewChannel(correlationId, callConnectionId string, src FrameSource) *StreamingChannel {
	c := &StreamingChannel{
		id:            uuid.NewString(),
		correlationId: correlationId,
		state:         ChannelOpen,
		src:           src,
		m:             m,
		idleTimeout:   *m.app.Transcription.IdleTimeout,
		eagerMinChars: *m.app.Transcription.EagerForwardMinChars,
	}
	c.logger = m.logger.WithFields(logrus.Fields{
		"channelId":     c.id,
		"correlationId": correlationId,
	})

	// Best-effort binding to the call record. The control plane may still be
	// setting the call up, so a miss here is tolerated; the channel re-looks
	// the record up lazily once it has something to forward.
	ctx, cancel := context.WithTimeout(context.Background(), registryLookupTimeout)
	defer cancel()
	record, err := m.registry.Lookup(ctx, correlationId)
	switch {
	case err != nil:
		c.logger.WithError(err).Warnln("call registry lookup failed on accept")
	case record == nil:
		c.logger.Warnln("no call record found on accept, will retry lazily")
	default:
		c.conversationId = record.ConversationId
		if callConnectionId == "" {
			callConnectionId = record.CallConnectionId
		}
	}

	if callConnectionId != "" {
		c.handle = m.media.ResolveHandle(callConnectionId)
	}

	m.app.AddOpenChannel(c.id, correlationId)
	c.logger.Infoln("transcription channel opened")
	return c
}

const registryLookupTimeout = 3 * time.Second
