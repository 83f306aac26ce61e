package models

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

type EventKind int

const (
	EventMetadata EventKind = iota
	EventPartial
	EventFinal
)

func (k EventKind) String() string {
	switch k {
	case EventMetadata:
		return "metadata"
	case EventPartial:
		return "partial"
	case EventFinal:
		return "final"
	default:
		return "unknown"
	}
}

// UtteranceEvent is one decoded speech-recognition event. It lives for a
// single iteration of the channel loop.
type UtteranceEvent struct {
	Kind             EventKind
	Text             string
	CallConnectionId string
}

const (
	kindTranscriptionMetadata = "TranscriptionMetadata"
	kindTranscriptionData     = "TranscriptionData"

	resultStateIntermediate = "Intermediate"
	resultStateFinal        = "Final"

	// fastPathPartialMarker classifies a message as a partial utterance
	// before any structural decode. The substring can in principle occur
	// inside unrelated final text; that false barge-in is an accepted cost
	// of reacting to the caller with minimal latency.
	fastPathPartialMarker = resultStateIntermediate
)

// streamingMessage is the wire shape of the platform's transcription events.
type streamingMessage struct {
	Kind             string `json:"kind"`
	Text             string `json:"text"`
	ResultState      string `json:"resultState"`
	CallConnectionId string `json:"callConnectionId"`
}

// ParseLogicalMessage decodes one reassembled message in two stages: a
// substring scan that flags partial utterances immediately, then the full
// structural decode for everything else.
func ParseLogicalMessage(raw string) (*UtteranceEvent, error) {
	if strings.Contains(raw, fastPathPartialMarker) {
		ev := &UtteranceEvent{Kind: EventPartial}
		// best effort text extraction, only needed for eager forwarding
		var msg streamingMessage
		if err := json.Unmarshal([]byte(raw), &msg); err == nil && msg.Kind == kindTranscriptionData {
			ev.Text = msg.Text
		}
		return ev, nil
	}

	var msg streamingMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("undecodable streaming message: %w", err)
	}

	switch msg.Kind {
	case kindTranscriptionMetadata:
		return &UtteranceEvent{Kind: EventMetadata, CallConnectionId: msg.CallConnectionId}, nil
	case kindTranscriptionData:
		switch msg.ResultState {
		case resultStateFinal:
			return &UtteranceEvent{Kind: EventFinal, Text: msg.Text}, nil
		case resultStateIntermediate:
			// normally caught by the marker scan above
			return &UtteranceEvent{Kind: EventPartial, Text: msg.Text}, nil
		default:
			return nil, fmt.Errorf("unknown transcription result state %q", msg.ResultState)
		}
	default:
		return nil, fmt.Errorf("unknown streaming message kind %q", msg.Kind)
	}
}
