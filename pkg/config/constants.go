package config

import "time"

const (
	// HeaderCallCorrelationId links a streaming connection to its call record.
	HeaderCallCorrelationId = "x-ms-call-correlation-id"
	// HeaderCallConnectionId optionally carries the initial call-media handle id.
	HeaderCallConnectionId = "x-ms-call-connection-id"

	// TranscriptionStreamPath is the upgrade endpoint the telephony platform
	// streams recognition events to. Any other path falls through to the
	// regular HTTP routes.
	TranscriptionStreamPath = "/ws/transcription"

	DefaultChannelIdleTimeout     = 1200 * time.Second
	DefaultEagerForwardMinChars   = 10
	DefaultReadBufferSize         = 4 * 1024
	DefaultUpstreamRequestTimeout = 10 * time.Second
	DefaultTranscriptTTL          = 6 * time.Hour
	DefaultCallMediaApiVersion    = "2024-09-15"

	AgentProviderWebhook = "webhook"
	AgentProviderOpenAI  = "openai"
)
