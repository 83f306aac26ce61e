package registryservice

import (
	"context"
)

// CallRecord is the control-plane owned record for one active call.
// The relay never writes these; it performs point lookups only.
type CallRecord struct {
	CorrelationId    string
	ConversationId   string
	CallConnectionId string
}

// CallRegistry resolves a correlation id to its call record. Implementations
// must be safe for concurrent use; the registry is shared by every channel.
type CallRegistry interface {
	// Lookup returns the call record for the correlation id, or nil when the
	// control plane has not (yet) created one. A miss is not an error.
	Lookup(ctx context.Context, correlationId string) (*CallRecord, error)
}
