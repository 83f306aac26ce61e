package agentservice

import (
	"context"
	"fmt"

	"github.com/callvox/callvox-server/pkg/config"
	"github.com/sirupsen/logrus"
)

// Forwarder delivers a caller's utterance into an agent conversation.
// Delivery is fire-and-forget: callers log failures and never retry.
type Forwarder interface {
	SendMessage(ctx context.Context, conversationId, text string) error
}

// NewForwarder is a factory that returns the configured forwarder implementation.
func NewForwarder(cnf *config.AgentInfo, logger *logrus.Logger) (Forwarder, error) {
	log := logger.WithFields(logrus.Fields{
		"service":  "agent_forwarder",
		"provider": cnf.Provider,
	})
	switch cnf.Provider {
	case config.AgentProviderWebhook:
		return newWebhookForwarder(cnf, log)
	case config.AgentProviderOpenAI:
		return newOpenAIForwarder(cnf, log)
	default:
		return nil, fmt.Errorf("unknown agent provider type: %s", cnf.Provider)
	}
}
