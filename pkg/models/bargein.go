package models

import (
	"context"
)

// dispatch routes one decoded event. Partial utterances preempt the agent's
// playback (barge-in) and may be forwarded early; metadata events rebind the
// media handle; final utterances are forwarded to the conversation.
func (c *StreamingChannel) dispatch(ctx context.Context, ev *UtteranceEvent) {
	switch ev.Kind {
	case EventPartial:
		c.onPartial(ctx, ev.Text)
	case EventMetadata:
		c.onMetadata(ev.CallConnectionId)
	case EventFinal:
		c.onFinal(ctx, ev.Text)
	}
}

// onPartial is the latency-sensitive path: the caller has started talking, so
// whatever the agent is saying gets cancelled first, before any forwarding.
func (c *StreamingChannel) onPartial(ctx context.Context, text string) {
	if c.handle != nil {
		if err := c.handle.CancelAllMediaOperations(ctx); err != nil {
			c.logger.WithError(err).Warnln("failed to cancel active media operations")
		}
	}

	// Speculative forward of a long enough partial. The final result for the
	// same utterance will be forwarded again; duplicates are tolerated.
	if len(text) <= c.eagerMinChars {
		return
	}
	conversationId := c.resolveConversationId(ctx)
	if conversationId == "" {
		c.logger.Debugln("partial utterance not forwarded, conversation unresolved")
		return
	}
	if err := c.m.forwarder.SendMessage(ctx, conversationId, text); err != nil {
		c.logger.WithError(err).Warnln("failed to forward partial utterance")
		return
	}
	c.m.recorder.Record(c.correlationId, conversationId, text, true)
}

// onMetadata rebinds the call-media handle; the platform can refresh the
// call connection id any number of times during a call.
func (c *StreamingChannel) onMetadata(callConnectionId string) {
	if callConnectionId == "" {
		c.logger.Warnln("metadata event without call connection id")
		return
	}
	handle := c.m.media.ResolveHandle(callConnectionId)
	if handle == nil {
		c.logger.WithField("callConnectionId", callConnectionId).
			Warnln("could not resolve call media handle")
		return
	}
	c.handle = handle
	c.logger.WithField("callConnectionId", callConnectionId).
		Debugln("call media handle rebound")
}

// onFinal forwards a completed utterance exactly once. When the conversation
// id cannot be resolved the utterance is dropped; there is no buffering for
// later resolution.
func (c *StreamingChannel) onFinal(ctx context.Context, text string) {
	conversationId := c.resolveConversationId(ctx)
	if conversationId == "" {
		c.logger.Warnln("dropping final utterance, no conversation for call")
		return
	}
	if err := c.m.forwarder.SendMessage(ctx, conversationId, text); err != nil {
		c.logger.WithError(err).Warnln("failed to forward final utterance")
		return
	}
	c.m.recorder.Record(c.correlationId, conversationId, text, false)
}

// resolveConversationId returns the cached conversation id or re-queries the
// registry. The control plane may have populated the record only after this
// channel opened.
func (c *StreamingChannel) resolveConversationId(ctx context.Context) string {
	if c.conversationId != "" {
		return c.conversationId
	}
	record, err := c.m.registry.Lookup(ctx, c.correlationId)
	if err != nil {
		c.logger.WithError(err).Warnln("call registry lookup failed")
		return ""
	}
	if record == nil || record.ConversationId == "" {
		return ""
	}
	c.conversationId = record.ConversationId
	return c.conversationId
}
